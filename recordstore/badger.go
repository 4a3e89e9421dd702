package recordstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ruteri/geodata-registry/interfaces"
)

// Key layout:
//
//	r/<len:4><id>            -> badgerRecord JSON
//	a/<len:4><id><grantee>   -> empty, presence means granted
//	g/<seq:8>                -> id
//	o/<owner><seq:8>         -> id
//	m/seq                    -> next sequence number
var (
	recordPrefix = []byte("r/")
	accessPrefix = []byte("a/")
	globalPrefix = []byte("g/")
	ownerPrefix  = []byte("o/")
	seqKey       = []byte("m/seq")
)

type badgerRecord struct {
	CipherHash   string              `json:"cipher_hash"`
	MetadataHash string              `json:"metadata_hash"`
	Timestamp    int64               `json:"timestamp"`
	Owner        interfaces.Identity `json:"owner"`
	Seq          uint64              `json:"seq"`
}

// BadgerStore is a durable RecordStore on top of a badger database.
// The store must be the only writer of the database.
type BadgerStore struct {
	mutex sync.RWMutex
	db    *badger.DB
	log   *slog.Logger
	now   func() time.Time
}

// OpenBadgerStore opens (or creates) a badger database at path.
func OpenBadgerStore(path string, log *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database at %s: %w", path, err)
	}
	return NewBadgerStore(db, log), nil
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// WithClock replaces the time source used for record timestamps.
func (s *BadgerStore) WithClock(now func() time.Time) *BadgerStore {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.now = now
	return s
}

func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.db.Close()
}

func (s *BadgerStore) Store(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(id))
		if err == nil {
			return interfaces.ErrDuplicateID
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}

		data, err := json.Marshal(badgerRecord{
			CipherHash:   cipherHash,
			MetadataHash: metadataHash,
			Timestamp:    s.now().Unix(),
			Owner:        caller,
			Seq:          seq,
		})
		if err != nil {
			return err
		}

		if err := txn.Set(recordKey(id), data); err != nil {
			return err
		}
		if err := txn.Set(globalKey(seq), []byte(id)); err != nil {
			return err
		}
		return txn.Set(ownerKey(caller, seq), []byte(id))
	})
	if err != nil && !errors.Is(err, interfaces.ErrDuplicateID) {
		s.log.Error("could not store record", "data_id", id, "err", err)
	}
	return err
}

func (s *BadgerStore) Retrieve(ctx context.Context, caller interfaces.Identity, id string) (interfaces.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var res interfaces.Record
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}

		allowed, err := allows(txn, id, rec, caller)
		if err != nil {
			return err
		}
		if !allowed {
			return interfaces.ErrUnauthorized
		}

		res = interfaces.Record{
			ID:           id,
			CipherHash:   rec.CipherHash,
			MetadataHash: rec.MetadataHash,
			Timestamp:    rec.Timestamp,
			Owner:        rec.Owner,
		}
		return nil
	})
	return res, err
}

func (s *BadgerStore) UpdateData(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := getOwnedRecord(txn, caller, id)
		if err != nil {
			return err
		}

		rec.CipherHash = cipherHash
		rec.MetadataHash = metadataHash

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(recordKey(id), data)
	})
}

func (s *BadgerStore) GrantAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getOwnedRecord(txn, caller, id); err != nil {
			return err
		}
		return txn.Set(accessKey(id, grantee), nil)
	})
}

func (s *BadgerStore) RevokeAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getOwnedRecord(txn, caller, id); err != nil {
			return err
		}
		return txn.Delete(accessKey(id, grantee))
	})
}

func (s *BadgerStore) CheckAccess(ctx context.Context, id string, who interfaces.Identity) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var allowed bool
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		allowed, err = allows(txn, id, rec, who)
		return err
	})
	return allowed, err
}

func (s *BadgerStore) ListAllIDs(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.listPrefix(globalPrefix)
}

func (s *BadgerStore) ListMyIDs(ctx context.Context, caller interfaces.Identity) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	prefix := append(append([]byte{}, ownerPrefix...), caller.Bytes()...)
	return s.listPrefix(prefix)
}

// listPrefix returns the values under prefix in key order. Index keys end in
// a big-endian sequence number, so key order is creation order.
func (s *BadgerStore) listPrefix(prefix []byte) ([]string, error) {
	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(val))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func getRecord(txn *badger.Txn, id string) (*badgerRecord, error) {
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec badgerRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding record %q: %w", id, err)
	}
	return &rec, nil
}

func getOwnedRecord(txn *badger.Txn, caller interfaces.Identity, id string) (*badgerRecord, error) {
	rec, err := getRecord(txn, id)
	if err != nil {
		return nil, err
	}
	if rec.Owner != caller {
		return nil, interfaces.ErrUnauthorized
	}
	return rec, nil
}

func allows(txn *badger.Txn, id string, rec *badgerRecord, who interfaces.Identity) (bool, error) {
	if rec.Owner == who {
		return true, nil
	}
	_, err := txn.Get(accessKey(id, who))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get(seqKey)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		err = item.Value(func(val []byte) error {
			if len(val) != 8 {
				return errors.New("corrupt sequence counter")
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	if err := txn.Set(seqKey, binary.BigEndian.AppendUint64(nil, seq+1)); err != nil {
		return 0, err
	}
	return seq, nil
}

func idSegment(prefix []byte, id string) []byte {
	key := make([]byte, 0, len(prefix)+4+len(id)+20)
	key = append(key, prefix...)
	key = binary.BigEndian.AppendUint32(key, uint32(len(id)))
	return append(key, id...)
}

func recordKey(id string) []byte {
	return idSegment(recordPrefix, id)
}

func accessKey(id string, grantee interfaces.Identity) []byte {
	return append(idSegment(accessPrefix, id), grantee.Bytes()...)
}

func globalKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, globalPrefix...), seq)
}

func ownerKey(owner interfaces.Identity, seq uint64) []byte {
	key := append(append([]byte{}, ownerPrefix...), owner.Bytes()...)
	return binary.BigEndian.AppendUint64(key, seq)
}
