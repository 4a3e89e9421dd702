package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateID is returned when a record is created under an id that already exists.
	ErrDuplicateID = errors.New("data id already exists")

	// ErrRecordNotFound is returned when an operation targets an id that was never stored.
	ErrRecordNotFound = errors.New("data not found")

	// ErrUnauthorized is returned when the caller lacks the required relationship
	// to the record: ownership for mutation, ownership or a grant for retrieval.
	ErrUnauthorized = errors.New("not authorized: caller does not have access")
)

// Record is a stored reference to an encrypted artifact.
// Only the two content hashes are kept, never the payload.
type Record struct {
	ID           string   `json:"data_id"`
	CipherHash   string   `json:"cipher_hash"`
	MetadataHash string   `json:"metadata_hash"`
	Timestamp    int64    `json:"timestamp"`
	Owner        Identity `json:"owner"`
}

// RecordStore is the authoritative keyed store of encrypted-data references.
//
// Records are created once and never deleted. Only the owner may update a
// record or change its access list; the owner and explicitly granted
// identities may retrieve it. Existence is always checked before
// authorization, so ErrRecordNotFound and ErrUnauthorized stay distinguishable.
// A failed call leaves the store unchanged.
type RecordStore interface {
	// Store creates a record owned by caller.
	Store(ctx context.Context, caller Identity, id string, cipherHash string, metadataHash string) error

	// Retrieve returns the record if caller is the owner or has been granted access.
	Retrieve(ctx context.Context, caller Identity, id string) (Record, error)

	// UpdateData replaces both hashes. Timestamp, owner and access list are kept.
	UpdateData(ctx context.Context, caller Identity, id string, cipherHash string, metadataHash string) error

	// GrantAccess adds grantee to the access list. Granting twice is not an error.
	GrantAccess(ctx context.Context, caller Identity, id string, grantee Identity) error

	// RevokeAccess removes grantee from the access list. Revoking a non-member is not an error.
	RevokeAccess(ctx context.Context, caller Identity, id string, grantee Identity) error

	// CheckAccess reports whether who is the owner or currently granted.
	// It is open to any caller.
	CheckAccess(ctx context.Context, id string, who Identity) (bool, error)

	// ListAllIDs returns every stored id in creation order.
	ListAllIDs(ctx context.Context) ([]string, error)

	// ListMyIDs returns the ids created by caller in creation order.
	ListMyIDs(ctx context.Context, caller Identity) ([]string, error)
}
