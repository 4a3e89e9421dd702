/*
Package recordstore provides RecordStore implementations that run inside
the server process.

MemoryStore keeps every record, access list and index in maps behind a
single mutex. BadgerStore keeps the same structures in a badger database
so they survive restarts; every operation runs in one badger transaction
while the store mutex is held, so a failed call commits nothing.

InstrumentedStore wraps any RecordStore, including the on-chain one in the
registry package, and reports per-operation outcomes to prometheus.

# Example Usage

	store := recordstore.NewMemoryStore()
	err := store.Store(ctx, owner, "d1", cipherHash, metadataHash)

	db, err := badger.Open(badger.DefaultOptions(dir))
	durable := recordstore.NewBadgerStore(db, logger)
*/
package recordstore
