package cryptoutils

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func generateECKeyPEMs(t *testing.T) (publicKeyPEM, privateKeyPEM []byte) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyBytes}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateKeyBytes})
}

func TestEncryptionDecryption(t *testing.T) {
	publicKeyPEM, privateKeyPEM := generateECKeyPEMs(t)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Simple string", data: []byte("latitude,longitude\n52.1,4.3")},
		{name: "Binary data", data: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}},
		{name: "Data key", data: bytes.Repeat([]byte{0x42}, DataKeySize)},
		{name: "Long data", data: make([]byte, 4096)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := EncryptWithPublicKey(publicKeyPEM, tc.data)
			require.NoError(t, err)
			require.Greater(t, len(encrypted), len(tc.data))

			decrypted, err := DecryptWithPrivateKey(privateKeyPEM, encrypted)
			require.NoError(t, err)
			require.Equal(t, tc.data, decrypted)
		})
	}

	t.Run("Wrong key", func(t *testing.T) {
		_, otherPrivatePEM := generateECKeyPEMs(t)
		encrypted, err := EncryptWithPublicKey(publicKeyPEM, []byte("secret"))
		require.NoError(t, err)

		_, err = DecryptWithPrivateKey(otherPrivatePEM, encrypted)
		require.Error(t, err)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := DecryptWithPrivateKey(privateKeyPEM, []byte{0x00})
		require.Error(t, err)

		encrypted, err := EncryptWithPublicKey(publicKeyPEM, []byte("secret"))
		require.NoError(t, err)
		_, err = DecryptWithPrivateKey(privateKeyPEM, encrypted[:2+65+5])
		require.Error(t, err)
	})

	t.Run("Corrupted ephemeral key", func(t *testing.T) {
		encrypted, err := EncryptWithPublicKey(publicKeyPEM, []byte("secret"))
		require.NoError(t, err)
		encrypted[3] ^= 0xFF

		_, err = DecryptWithPrivateKey(privateKeyPEM, encrypted)
		require.Error(t, err)
	})
}

func TestEncryptionWithPKCS8Key(t *testing.T) {
	privateKey, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(privateKey.PublicKey())
	require.NoError(t, err)
	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)

	publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyBytes})
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateKeyBytes})

	encrypted, err := EncryptWithPublicKey(publicKeyPEM, []byte("sealed data key"))
	require.NoError(t, err)
	require.Equal(t, uint16(65), uint16(encrypted[0])<<8|uint16(encrypted[1]))

	decrypted, err := DecryptWithPrivateKey(privateKeyPEM, encrypted)
	require.NoError(t, err)
	require.Equal(t, []byte("sealed data key"), decrypted)
}

func TestEnvelope(t *testing.T) {
	key, err := GenerateDataKey()
	require.NoError(t, err)
	require.Len(t, key, DataKeySize)

	plaintext := []byte(`[{"latitude":"52.1","longitude":"4.3"}]`)
	env, err := EncryptEnvelope(key, plaintext)
	require.NoError(t, err)
	require.Len(t, env.IV, 12)
	require.NotContains(t, string(env.Ciphertext), "latitude")

	encoded, err := env.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(encoded), `"iv":`)
	require.Contains(t, string(encoded), `"ciphertext":`)

	parsed, err := ParseEnvelope(encoded)
	require.NoError(t, err)

	decrypted, err := DecryptEnvelope(key, parsed)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)

	otherKey, err := GenerateDataKey()
	require.NoError(t, err)
	_, err = DecryptEnvelope(otherKey, parsed)
	require.Error(t, err)

	_, err = EncryptEnvelope(key[:16], plaintext)
	require.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"ciphertext":"AA=="}`))
	require.Error(t, err)
}

func TestKeySealers(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	masterSealer, err := NewMasterKeySealer(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)

	ecPub, ecPriv := generateECKeyPEMs(t)
	eciesSealer, err := NewECIESKeySealer(ecPub, ecPriv)
	require.NoError(t, err)

	sealers := map[string]KeySealer{
		MethodMasterKey: masterSealer,
		MethodRSA:       NewRSAKeySealerFromPrivateKey(rsaKey),
		MethodECIES:     eciesSealer,
	}

	for method, sealer := range sealers {
		t.Run(method, func(t *testing.T) {
			require.Equal(t, method, sealer.Method())

			dataKey, err := GenerateDataKey()
			require.NoError(t, err)

			sealed, err := sealer.SealKey(dataKey)
			require.NoError(t, err)
			require.NotEqual(t, dataKey, sealed)

			opened, err := sealer.OpenKey(sealed)
			require.NoError(t, err)
			require.Equal(t, dataKey, opened)
		})
	}
}

func TestMasterKeySealer(t *testing.T) {
	_, err := NewMasterKeySealer([]byte("short"))
	require.Error(t, err)

	seed := DeriveMasterSeed("correct horse", []byte("geodata-salt"))
	require.Len(t, seed, 32)
	require.Equal(t, seed, DeriveMasterSeed("correct horse", []byte("geodata-salt")))
	require.NotEqual(t, seed, DeriveMasterSeed("battery staple", []byte("geodata-salt")))

	a, err := NewMasterKeySealer(seed)
	require.NoError(t, err)
	b, err := NewMasterKeySealer(DeriveMasterSeed("battery staple", []byte("geodata-salt")))
	require.NoError(t, err)

	sealed, err := a.SealKey(make([]byte, DataKeySize))
	require.NoError(t, err)
	_, err = b.OpenKey(sealed)
	require.Error(t, err)

	_, err = a.OpenKey([]byte{0x01})
	require.Error(t, err)
}

func TestRSAKeySealerPublicOnly(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pkix, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	require.NoError(t, err)
	pkcs1 := x509.MarshalPKCS1PublicKey(&rsaKey.PublicKey)

	for name, block := range map[string]*pem.Block{
		"pkix":  {Type: "PUBLIC KEY", Bytes: pkix},
		"pkcs1": {Type: "RSA PUBLIC KEY", Bytes: pkcs1},
	} {
		t.Run(name, func(t *testing.T) {
			sealer, err := NewRSAKeySealer(pem.EncodeToMemory(block))
			require.NoError(t, err)

			sealed, err := sealer.SealKey(make([]byte, DataKeySize))
			require.NoError(t, err)

			_, err = sealer.OpenKey(sealed)
			require.ErrorIs(t, err, ErrCannotOpen)

			opened, err := NewRSAKeySealerFromPrivateKey(rsaKey).OpenKey(sealed)
			require.NoError(t, err)
			require.Equal(t, make([]byte, DataKeySize), opened)
		})
	}

	_, err = NewRSAKeySealer([]byte("not pem"))
	require.Error(t, err)

	ecPub, _ := generateECKeyPEMs(t)
	_, err = NewRSAKeySealer(ecPub)
	require.Error(t, err)
}

func TestMasterSeedShares(t *testing.T) {
	seed, err := GenerateDataKey()
	require.NoError(t, err)

	shares, err := SplitMasterSeed(seed, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	copyOf := func(in [][]byte) [][]byte {
		out := make([][]byte, len(in))
		for i := range in {
			out[i] = append([]byte(nil), in[i]...)
		}
		return out
	}

	recovered, err := CombineMasterSeed(copyOf([][]byte{shares[0], shares[2], shares[4]}))
	require.NoError(t, err)
	require.Equal(t, seed, recovered)

	recovered, err = CombineMasterSeed(copyOf([][]byte{shares[1], shares[3]}))
	if err == nil {
		require.NotEqual(t, seed, recovered)
	}

	input := copyOf(shares[:3])
	_, err = CombineMasterSeed(input)
	require.NoError(t, err)
	require.Equal(t, make([]byte, len(input[0])), input[0])

	_, err = SplitMasterSeed(seed[:16], 5, 3)
	require.Error(t, err)
	_, err = SplitMasterSeed(seed, 5, 1)
	require.Error(t, err)
	_, err = SplitMasterSeed(seed, 2, 3)
	require.Error(t, err)
	_, err = CombineMasterSeed(shares[:1])
	require.Error(t, err)
}
