// Package cryptoutils encrypts geodata artifacts before they leave the
// service.
//
// Payloads are encrypted with a fresh AES-256-GCM data key per file
// (EncryptEnvelope). The data key is then wrapped by a KeySealer and stored
// next to the ciphertext:
//
//   - MasterKeySealer: AES-GCM under a key derived from a master seed (HKDF-SHA256)
//   - RSAKeySealer: RSA-OAEP-SHA256 to a PEM public key
//   - ECIESKeySealer: ephemeral P-256 ECDH to a recipient key
//
// ECIES wire format:
//
//	[ephemeral key length (2 bytes)][ephemeral key][iv (12 bytes)][ciphertext]
package cryptoutils
