package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeal_RoundTrip(t *testing.T) {
	data := []byte(`{"currencyId":"oca"}`)

	sealed, err := Seal(data, "hunter2")
	require.NoError(t, err)
	assert.Len(t, sealed, SaltLen+NonceLen+len(data)+ChecksumLen+16)
	assert.NotContains(t, string(sealed), "currencyId")

	opened, err := Unseal(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, data, opened)
}

func TestSeal_FreshSaltEachTime(t *testing.T) {
	a, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := Seal([]byte("same"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestUnseal_WrongPassword(t *testing.T) {
	sealed, err := Seal([]byte("secret state"), "right")
	require.NoError(t, err)

	_, err = Unseal(sealed, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestUnseal_Malformed(t *testing.T) {
	_, err := Unseal([]byte("short"), "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	sealed, err := Seal([]byte("secret state"), "pw")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff
	_, err = Unseal(sealed, "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSeal_EmptyPassword(t *testing.T) {
	_, err := Seal([]byte("x"), "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
	_, err = Unseal([]byte("x"), "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
}
