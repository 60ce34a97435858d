package cryptox

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, secret string) []byte {
	t.Helper()
	key, err := DeriveKey(secret)
	require.NoError(t, err)
	return key
}

func encrypt(t *testing.T, plaintext, key []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, EncryptStream(&out, bytes.NewReader(plaintext), key))
	return out.Bytes()
}

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := testKey(t, "exam-secret")
	key2 := testKey(t, "exam-secret")

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, KeySize)

	// scrypt(N=16384, r=8, p=1, salt="salt") snapshot
	assert.Equal(t, "badf55a784bc1da1513a87e3c020f2542db340b8b34e876307fe4af0871ad43e", hex.EncodeToString(key1))
}

func TestDeriveKey_DifferentSecrets(t *testing.T) {
	assert.NotEqual(t, testKey(t, "secret-1"), testKey(t, "secret-2"))
}

func TestDeriveKey_EmptySecret(t *testing.T) {
	_, err := DeriveKey("")
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestRoundTrip(t *testing.T) {
	key := testKey(t, "k")

	sizes := []int{0, 1, 3, 15, 16, 17, 4096, 3<<20 + 7}
	for _, n := range sizes {
		plaintext := common.GenerateRandByteArray(n)

		blob := encrypt(t, plaintext, key)
		require.Len(t, blob, n+Overhead)

		var out bytes.Buffer
		require.NoError(t, DecryptStream(&out, bytes.NewReader(blob), key), "size %d", n)
		assert.True(t, bytes.Equal(plaintext, out.Bytes()), "size %d: plaintext mismatch", n)
	}
}

func TestEmptyInput_ProducesValidBlob(t *testing.T) {
	key := testKey(t, "k")
	blob := encrypt(t, nil, key)
	assert.Len(t, blob, Overhead)

	var out bytes.Buffer
	require.NoError(t, DecryptStream(&out, bytes.NewReader(blob), key))
	assert.Equal(t, 0, out.Len())
}

func TestNonceUniqueness(t *testing.T) {
	key := testKey(t, "k")
	p := []byte("same plaintext")

	a := encrypt(t, p, key)
	b := encrypt(t, p, key)

	assert.NotEqual(t, a[:NonceSize], b[:NonceSize])
	assert.NotEqual(t, a, b)
}

func TestTamperDetection_EveryByteAfterNonce(t *testing.T) {
	key := testKey(t, "k")

	for _, n := range []int{0, 3, 64} {
		blob := encrypt(t, common.GenerateRandByteArray(n), key)
		for i := NonceSize; i < len(blob); i++ {
			bad := append([]byte(nil), blob...)
			bad[i] ^= 0x01

			var out bytes.Buffer
			err := DecryptStream(&out, bytes.NewReader(bad), key)
			require.ErrorIs(t, err, common.ErrIntegrity, "size %d, byte %d", n, i)
			require.Equal(t, 0, out.Len(), "no partial plaintext may surface")
		}
	}
}

func TestTamperDetection_LargePayload(t *testing.T) {
	key := testKey(t, "k")
	blob := encrypt(t, common.GenerateRandByteArray(4<<20), key)

	for _, i := range []int{NonceSize, len(blob) / 2, len(blob) - 1} {
		bad := append([]byte(nil), blob...)
		bad[i] ^= 0x80

		var out bytes.Buffer
		err := DecryptStream(&out, bytes.NewReader(bad), key)
		require.ErrorIs(t, err, common.ErrIntegrity)
		require.Equal(t, 0, out.Len())
	}
}

func TestTruncated(t *testing.T) {
	key := testKey(t, "k")
	blob := encrypt(t, []byte("abc"), key)

	for _, n := range []int{0, 1, NonceSize - 1, NonceSize, Overhead - 1, len(blob) - 1} {
		var out bytes.Buffer
		err := DecryptStream(&out, bytes.NewReader(blob[:n]), key)
		assert.ErrorIs(t, err, common.ErrIntegrity, "truncated to %d", n)
		assert.Equal(t, 0, out.Len())
	}
}

func TestWrongKey_SameErrorClass(t *testing.T) {
	blob := encrypt(t, []byte("abc"), testKey(t, "right"))

	var out bytes.Buffer
	err := DecryptStream(&out, bytes.NewReader(blob), testKey(t, "wrong"))
	assert.ErrorIs(t, err, common.ErrIntegrity)
	assert.Equal(t, 0, out.Len())
}

func TestInvalidKeyLength(t *testing.T) {
	err := EncryptStream(io.Discard, bytes.NewReader([]byte("x")), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	err = DecryptStream(io.Discard, bytes.NewReader(make([]byte, 64)), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncryptStream_IOErrors(t *testing.T) {
	key := testKey(t, "k")

	err := EncryptStream(io.Discard, failingReader{}, key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")

	err = EncryptStream(failingWriter{}, bytes.NewReader([]byte("abc")), key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDecryptStream_WriteError(t *testing.T) {
	key := testKey(t, "k")
	blob := encrypt(t, []byte("abc"), key)

	err := DecryptStream(failingWriter{}, bytes.NewReader(blob), key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrIntegrity)
}

func TestHashPassword_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	h1 := HashPassword(password, salt)
	h2 := HashPassword(password, salt)
	assert.Equal(t, h1, h2)

	expectedHex := "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39"
	assert.Equal(t, expectedHex, hex.EncodeToString(h1))
}

func TestHashPassword_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")
	assert.NotEqual(t, HashPassword(password, []byte("salt-1")), HashPassword(password, []byte("salt-2")))
}

func TestVerifyPassword(t *testing.T) {
	salt := []byte("0123456789abcdef")
	verifier := HashPassword([]byte("pw"), salt)

	assert.True(t, VerifyPassword(verifier, salt, []byte("pw")))
	assert.False(t, VerifyPassword(verifier, salt, []byte("pw2")))
	assert.False(t, VerifyPassword(verifier, []byte("other-salt-00000"), []byte("pw")))
}
