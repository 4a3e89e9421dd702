package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

// EncryptWithPublicKey encrypts data to an EC public key (PKIX PEM) using
// ECIES: an ephemeral ECDH exchange on the recipient's curve, SHA-256 of the
// shared secret as the AES key, AES-GCM for the payload.
//
// Format: [ephemeral key length (2 bytes)][ephemeral key][iv][ciphertext]
func EncryptWithPublicKey(publicKeyPEM []byte, data []byte) ([]byte, error) {
	recipient, err := parseECPublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	ephemeral, err := recipient.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	aead, err := sharedSecretGCM(ephemeral, recipient)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ephemeralPub := ephemeral.PublicKey().Bytes()

	out := binary.BigEndian.AppendUint16(nil, uint16(len(ephemeralPub)))
	out = append(out, ephemeralPub...)
	out = append(out, iv...)
	return aead.Seal(out, iv, data, nil), nil
}

// DecryptWithPrivateKey decrypts data produced by EncryptWithPublicKey.
// The key may be SEC1 ("EC PRIVATE KEY") or PKCS#8 PEM.
func DecryptWithPrivateKey(privateKeyPEM []byte, encrypted []byte) ([]byte, error) {
	privateKey, err := parseECPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	if len(encrypted) < 2 {
		return nil, errors.New("encrypted data too short")
	}
	keyLen := int(binary.BigEndian.Uint16(encrypted[:2]))
	rest := encrypted[2:]
	if len(rest) < keyLen {
		return nil, errors.New("encrypted data has invalid format")
	}

	ephemeral, err := privateKey.Curve().NewPublicKey(rest[:keyLen])
	if err != nil {
		return nil, fmt.Errorf("invalid ephemeral public key: %w", err)
	}

	aead, err := sharedSecretGCM(privateKey, ephemeral)
	if err != nil {
		return nil, err
	}

	rest = rest[keyLen:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("encrypted data has invalid format")
	}

	plaintext, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func parseECPublicKey(publicKeyPEM []byte) (*ecdh.PublicKey, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode public key PEM")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	switch key := parsed.(type) {
	case *ecdsa.PublicKey:
		return key.ECDH()
	case *ecdh.PublicKey:
		return key, nil
	default:
		return nil, errors.New("not an EC public key")
	}
}

func parseECPrivateKey(privateKeyPEM []byte) (*ecdh.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key.ECDH()
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	switch key := parsed.(type) {
	case *ecdsa.PrivateKey:
		return key.ECDH()
	case *ecdh.PrivateKey:
		return key, nil
	default:
		return nil, errors.New("not an EC private key")
	}
}

func sharedSecretGCM(local *ecdh.PrivateKey, remote *ecdh.PublicKey) (cipher.AEAD, error) {
	shared, err := local.ECDH(remote)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}
	secret := sha256.Sum256(shared)

	block, err := aes.NewCipher(secret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
