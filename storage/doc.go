/*
Package storage implements content-addressed storage for the artifacts the
encrypt step produces: encrypted payloads, metadata documents and sealed
data keys.

Every artifact is addressed by the SHA-256 of its bytes, the same value that
is recorded as a record's cipher or metadata hash, so anything fetched from
a backend can be checked against the record store.

# Backends

  - FileBackend: local directory, one subdirectory per content type
  - S3Backend: S3 or S3-compatible bucket
  - IPFSBackend: mutable file system of an IPFS node
  - VaultBackend: HashiCorp Vault KV v2, preferred for sealed keys
  - MultiStorageBackend: replicates to every available backend

# Location URIs

	file:///var/lib/geodata/artifacts
	s3://ACCESS_KEY:SECRET_KEY@bucket/prefix?region=us-east-1
	ipfs://localhost:5001/geodata?timeout=30s
	vault://TOKEN@vault.internal:8200/secret/geodata

# Example Usage

	factory := storage.NewStorageBackendFactory(logger)
	backend, err := factory.BackendFromURIs([]string{
	    "file:///var/lib/geodata/artifacts",
	    "s3://bucket/geodata?region=eu-west-1",
	})
	id, err := backend.Store(ctx, envelope, interfaces.EncryptedType)
*/
package storage
