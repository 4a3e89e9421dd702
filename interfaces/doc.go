// Package interfaces defines core interfaces and types for the geodata
// registry, separating interface definitions from implementations.
//
// # Record Store
//
// RecordStore is the authoritative keyed store of references to encrypted
// geospatial artifacts. Each Record carries two opaque content hashes, the
// creation timestamp and the owning Identity. Access control is per record:
// the owner may update the record and manage its access list, the owner and
// granted identities may read it.
//
// The failure taxonomy is three sentinel errors, compared with errors.Is:
//
//   - ErrDuplicateID: a record with this id already exists
//   - ErrRecordNotFound: no record with this id exists
//   - ErrUnauthorized: the record exists but the caller lacks access
//
// Implementations live in the recordstore (in-memory, badger) and registry
// (on-chain GeoDataStorage contract) packages.
//
// # Storage Interfaces
//
// StorageBackend provides content-addressed storage for encrypted payloads,
// metadata documents and sealed keys across file, S3, IPFS and Vault.
// StorageBackendFactory builds backends from URIs.
//
// # Types
//
//   - Identity: 20-byte account address, the caller credential
//   - ContentID: 32-byte SHA-256 hash for content addressing
package interfaces
