// Package registry provides a RecordStore backed by the GeoDataStorage
// smart contract deployed on an Ethereum-compatible chain.
//
// The contract keeps the record table, the per-record access lists and both
// id indexes in ledger state, and the chain executes transactions one at a
// time. OnchainRecordStore translates the RecordStore operations into
// contract calls:
//
//   - Store, UpdateData, GrantAccess, RevokeAccess are transactions
//   - Retrieve, CheckAccess, ListAllIDs, ListMyIDs are eth_calls
//
// Record timestamps are block timestamps.
//
// # Signers
//
// The contract authenticates callers by transaction sender, so each identity
// that mutates records needs a registered transactor:
//
//	auth, _ := registry.NewSigner(privateKey, chainID)
//	store.AddSigner(auth)
//
// Mutations for identities without a signer fail with ErrNoTransactOpts.
// Reads set the call's From address to the caller and need no signer.
//
// # Errors
//
// Contract reverts are mapped to interfaces.ErrDuplicateID,
// interfaces.ErrRecordNotFound and interfaces.ErrUnauthorized by their
// revert reason, so callers can use errors.Is regardless of the backing
// store.
//
// # Usage Example
//
//	ethClient, _ := ethclient.Dial(rpcAddr)
//	store, err := registry.NewOnchainRecordStore(ethClient, ethClient, contractAddress, logger)
//	if err != nil {
//	    return err
//	}
//	owner := store.AddSigner(auth)
//	err = store.Store(ctx, owner, "d1", cipherHash, metadataHash)
package registry
