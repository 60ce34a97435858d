// Package cryptox holds the vault's cryptographic primitives: content-key
// derivation from the deployment secret, whole-file AES-256-GCM encryption of
// byte streams, and argon2id password hashing for user accounts.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/examvault/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// Content-key derivation parameters. Encrypt and decrypt both re-derive the
// key from the secret, so these must never change for an existing vault.
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1

	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length written at the head of every blob.
	NonceSize = 12
	// TagSize is the GCM authentication tag length appended to the ciphertext.
	TagSize = 16
	// Overhead is the number of bytes a blob adds on top of the plaintext.
	Overhead = NonceSize + TagSize

	// MaxPlaintextSize bounds a single document. Files are small; the HTTP
	// layer applies a tighter limit.
	MaxPlaintextSize = 64 << 20
)

// scryptSalt is shared by every file of a deployment.
var scryptSalt = []byte("salt")

// ErrInvalidKeyLength is returned when a key is not KeySize bytes.
var ErrInvalidKeyLength = errors.New("cryptox: invalid key length, must be 32 bytes")

// DeriveKey turns the deployment secret into the 32-byte content key using
// scrypt with fixed parameters. It is deterministic. An empty secret is a
// configuration error.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: encryption secret is empty", common.ErrConfiguration)
	}
	key, err := scrypt.Key([]byte(secret), scryptSalt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", common.ErrConfiguration, err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// readBounded reads src fully, failing once more than limit bytes arrive.
func readBounded(src io.Reader, limit int64) ([]byte, bool, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(src, limit+1))
	if err != nil {
		return nil, false, err
	}
	return buf.Bytes(), n > limit, nil
}

// EncryptStream reads all of src, encrypts it with AES-256-GCM under key and
// writes nonce || ciphertext || tag to dst. A fresh random nonce is drawn for
// every call. Nothing is written to dst until src has been fully consumed.
//
// Empty input is valid and yields an Overhead-sized blob.
func EncryptStream(dst io.Writer, src io.Reader, key []byte) error {
	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, tooBig, err := readBounded(src, MaxPlaintextSize)
	if err != nil {
		return fmt.Errorf("read plaintext: %w", err)
	}
	defer common.WipeByteArray(plaintext)
	if tooBig {
		return fmt.Errorf("%w: document exceeds %d bytes", common.ErrValidation, MaxPlaintextSize)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	// nonce first, then ciphertext with the tag appended by Seal
	blob := gcm.Seal(nonce, nonce, plaintext, nil)
	if _, err := dst.Write(blob); err != nil {
		return fmt.Errorf("write ciphertext: %w", err)
	}
	return nil
}

// DecryptStream reads a whole blob from src, authenticates it and writes the
// plaintext to dst. Truncation, corruption and a wrong key all return
// common.ErrIntegrity with no further detail, and in each case nothing is
// written to dst.
func DecryptStream(dst io.Writer, src io.Reader, key []byte) error {
	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	blob, tooBig, err := readBounded(src, MaxPlaintextSize+Overhead)
	if err != nil {
		return fmt.Errorf("read ciphertext: %w", err)
	}
	if tooBig || len(blob) < Overhead {
		return common.ErrIntegrity
	}

	plaintext, err := gcm.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return common.ErrIntegrity
	}
	defer common.WipeByteArray(plaintext)

	if _, err := dst.Write(plaintext); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}
	return nil
}

// Password hashing parameters (argon2id).
const (
	passwordTime    = 1
	passwordMemory  = 64 * 1024
	passwordThreads = 4
	// PasswordSaltSize is the length of the per-user random salt.
	PasswordSaltSize = 16
)

// HashPassword derives the stored password verifier for a user.
func HashPassword(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, passwordTime, passwordMemory, passwordThreads, KeySize)
}

// VerifyPassword recomputes the verifier for candidate and compares it with
// the stored one in constant time.
func VerifyPassword(verifier, salt, candidate []byte) bool {
	got := HashPassword(candidate, salt)
	defer common.WipeByteArray(got)
	return subtle.ConstantTimeCompare(verifier, got) == 1
}
