package interfaces

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is the 20-byte account address of a caller.
// It is the only authorization credential the record store knows about.
type Identity [20]byte

// ZeroIdentity is the unset identity. It never owns a record.
var ZeroIdentity Identity

// NewIdentityFromBytes creates an identity from a 20-byte slice.
func NewIdentityFromBytes(addr []byte) (Identity, error) {
	if len(addr) != 20 {
		return Identity{}, errors.New("invalid identity length: must be 20 bytes")
	}

	var res Identity
	copy(res[:], addr)
	return res, nil
}

// NewIdentityFromHex parses a hex address with or without the 0x prefix.
// Checksum casing is accepted but not enforced.
func NewIdentityFromHex(addr string) (Identity, error) {
	clean := strings.TrimSpace(addr)
	if !strings.HasPrefix(clean, "0x") && !strings.HasPrefix(clean, "0X") {
		clean = "0x" + clean
	}
	if !common.IsHexAddress(clean) {
		return Identity{}, errors.New("invalid identity: expected 40 hex characters")
	}
	return Identity(common.HexToAddress(clean)), nil
}

// String returns the EIP-55 checksummed hex form.
func (id Identity) String() string {
	return common.Address(id).Hex()
}

// Bytes returns the raw 20-byte address.
func (id Identity) Bytes() []byte {
	return id[:]
}

// Address converts the identity to a go-ethereum address.
func (id Identity) Address() common.Address {
	return common.Address(id)
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == ZeroIdentity
}

// MarshalText encodes the identity as checksummed hex.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex identity.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := NewIdentityFromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
