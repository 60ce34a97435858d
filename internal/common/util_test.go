package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	require.NoError(t, err)
	assert.Len(t, s, n*2)

	_, err = hex.DecodeString(s)
	assert.NoError(t, err, "string is not valid hex")
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestGenerateRandByteArray_Length(t *testing.T) {
	for _, n := range []int{0, 1, 12, 32} {
		assert.Len(t, GenerateRandByteArray(n), n)
	}
}

func TestGenerateRandByteArray_Differs(t *testing.T) {
	a := GenerateRandByteArray(32)
	b := GenerateRandByteArray(32)
	if string(a) == string(b) {
		t.Logf("warning: two GenerateRandByteArray(32) results are identical; extremely unlikely")
	}
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)

	WipeByteArray(nil)
}

func TestVaultErrors_AreDistinctAndWrappable(t *testing.T) {
	all := []error{ErrConfiguration, ErrValidation, ErrIntegrity, ErrAccessDenied, ErrStorageIO}
	for i, a := range all {
		wrapped := fmt.Errorf("op: %w", a)
		assert.True(t, errors.Is(wrapped, a))
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(wrapped, b), "%v must not match %v", a, b)
			}
		}
	}
}
