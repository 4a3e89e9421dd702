package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ContentID addresses a stored artifact by the SHA-256 of its bytes.
// The hex form of an encrypted payload's ContentID is the record's cipher hash.
type ContentID [32]byte

// ComputeID hashes data into its content address.
func ComputeID(data []byte) ContentID {
	return sha256.Sum256(data)
}

// NewContentIDFromHex parses 64 hex characters, 0x prefix optional.
func NewContentIDFromHex(s string) (ContentID, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid content id: %w", err)
	}
	if len(raw) != len(ContentID{}) {
		return ContentID{}, fmt.Errorf("invalid content id: got %d bytes, want 32", len(raw))
	}
	return ContentID(raw), nil
}

func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// ContentType selects the namespace an artifact is kept under.
type ContentType int

const (
	EncryptedType ContentType = iota
	MetadataType
	KeyType
)

var contentTypeNames = map[ContentType]string{
	EncryptedType: "encrypted",
	MetadataType:  "metadata",
	KeyType:       "key",
}

func (ct ContentType) String() string {
	if name, ok := contentTypeNames[ct]; ok {
		return name
	}
	return "unknown"
}

var (
	ErrContentNotFound    = errors.New("content not found")
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI covers both malformed URIs and unknown schemes.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackendLocation is a parsed backend URI of the form
// scheme://[auth@]host[/path][?params].
type StorageBackendLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values
	Auth   string
}

var supportedSchemes = map[string]bool{"file": true, "s3": true, "ipfs": true, "vault": true}

// NewStorageBackendLocation parses uri and rejects schemes no backend serves.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !supportedSchemes[scheme] {
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, u.Scheme)
	}

	loc := StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   u.Host,
		Path:   u.Path,
		Query:  u.Query(),
	}
	if u.User != nil {
		loc.Auth = u.User.String()
	}
	return loc, nil
}

func (loc StorageBackendLocation) String() string { return loc.Raw }

func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool accepts true, 1 and yes.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	switch strings.ToLower(loc.Query.Get(name)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// StorageBackend keeps encrypted payloads, metadata documents and sealed keys.
type StorageBackend interface {
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store writes data and returns ComputeID(data).
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)

	Available(ctx context.Context) bool

	// Name identifies the backend in logs.
	Name() string

	LocationURI() string
}

// StorageBackendFactory builds backends from parsed locations.
type StorageBackendFactory interface {
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend replicates across every location that could be opened.
	CreateMultiBackend(locations []StorageBackendLocation) (StorageBackend, error)
}
