package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	MethodMasterKey = "aes-256-gcm+hkdf-master"
	MethodRSA       = "aes-256-gcm+rsa-oaep"
	MethodECIES     = "aes-256-gcm+ecies-p256"
)

// ErrCannotOpen is returned by sealers that only hold a public key.
var ErrCannotOpen = errors.New("sealer cannot open keys: no private key")

// KeySealer wraps data encryption keys for storage next to the ciphertext.
type KeySealer interface {
	SealKey(dataKey []byte) ([]byte, error)
	OpenKey(sealed []byte) ([]byte, error)
	// Method names the scheme; it is recorded in the metadata document.
	Method() string
}

// MasterKeySealer seals keys under a key-encryption key derived from a
// master seed with HKDF-SHA256. Output is nonce || AES-GCM ciphertext.
type MasterKeySealer struct {
	kek []byte
}

// NewMasterKeySealer derives the key-encryption key from seed.
func NewMasterKeySealer(seed []byte) (*MasterKeySealer, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("master seed too short: %d bytes, need at least 32", len(seed))
	}

	kek := make([]byte, DataKeySize)
	r := hkdf.New(sha256.New, seed, nil, []byte("geodata-registry key sealing"))
	if _, err := io.ReadFull(r, kek); err != nil {
		return nil, fmt.Errorf("failed to derive key-encryption key: %w", err)
	}
	return &MasterKeySealer{kek: kek}, nil
}

// DeriveMasterSeed stretches a passphrase into a 32-byte master seed with
// Argon2id.
func DeriveMasterSeed(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

func (s *MasterKeySealer) SealKey(dataKey []byte) ([]byte, error) {
	aead, err := newGCM(s.kek)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, dataKey, nil), nil
}

func (s *MasterKeySealer) OpenKey(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.kek)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed key too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	dataKey, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed key: %w", err)
	}
	return dataKey, nil
}

func (s *MasterKeySealer) Method() string { return MethodMasterKey }

// RSAKeySealer wraps keys with RSA-OAEP-SHA256.
type RSAKeySealer struct {
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// NewRSAKeySealer parses a PEM public key, PKIX or PKCS#1.
func NewRSAKeySealer(publicKeyPEM []byte) (*RSAKeySealer, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode RSA public key PEM")
	}

	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return &RSAKeySealer{public: pub}, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return &RSAKeySealer{public: pub}, nil
}

// NewRSAKeySealerFromPrivateKey builds a sealer able to open keys as well.
func NewRSAKeySealerFromPrivateKey(key *rsa.PrivateKey) *RSAKeySealer {
	return &RSAKeySealer{public: &key.PublicKey, private: key}
}

func (s *RSAKeySealer) SealKey(dataKey []byte) ([]byte, error) {
	sealed, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, s.public, dataKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to seal key: %w", err)
	}
	return sealed, nil
}

func (s *RSAKeySealer) OpenKey(sealed []byte) ([]byte, error) {
	if s.private == nil {
		return nil, ErrCannotOpen
	}
	dataKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, s.private, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed key: %w", err)
	}
	return dataKey, nil
}

func (s *RSAKeySealer) Method() string { return MethodRSA }

// ECIESKeySealer seals keys to an EC recipient key (P-256 in practice), see EncryptWithPublicKey.
type ECIESKeySealer struct {
	publicKeyPEM  []byte
	privateKeyPEM []byte
}

// NewECIESKeySealer validates the recipient key. privateKeyPEM may be nil.
func NewECIESKeySealer(publicKeyPEM, privateKeyPEM []byte) (*ECIESKeySealer, error) {
	if _, err := parseECPublicKey(publicKeyPEM); err != nil {
		return nil, err
	}
	return &ECIESKeySealer{publicKeyPEM: publicKeyPEM, privateKeyPEM: privateKeyPEM}, nil
}

func (s *ECIESKeySealer) SealKey(dataKey []byte) ([]byte, error) {
	return EncryptWithPublicKey(s.publicKeyPEM, dataKey)
}

func (s *ECIESKeySealer) OpenKey(sealed []byte) ([]byte, error) {
	if s.privateKeyPEM == nil {
		return nil, ErrCannotOpen
	}
	return DecryptWithPrivateKey(s.privateKeyPEM, sealed)
}

func (s *ECIESKeySealer) Method() string { return MethodECIES }
