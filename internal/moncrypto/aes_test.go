package moncrypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCMRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)

	ctx, err := NewContext(key)
	require.NoError(t, err)

	iv := make([]byte, ctx.GCMNonceSize())
	plaintext := []byte("clientpairingsecret-payload")

	ciphertext, tag, err := ctx.EncryptGCM(plaintext, iv, nil)
	require.NoError(t, err)

	got, err := ctx.DecryptGCM(ciphertext, iv, tag, nil)
	require.NoError(t, err)
	require.True(t, bytes.Equal(got, plaintext))
}

func TestCBCRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	ctx, err := NewContext(key)
	require.NoError(t, err)

	iv := make([]byte, ctx.BlockSize())
	plaintext := []byte("short")

	ciphertext, err := ctx.EncryptCBC(plaintext, iv)
	require.NoError(t, err)
	require.Equal(t, 0, len(ciphertext)%ctx.BlockSize())

	got, err := ctx.DecryptCBC(ciphertext, iv)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestECBRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	ctx, err := NewContext(key)
	require.NoError(t, err)

	plaintext := make([]byte, 16)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	ciphertext, err := ctx.EncryptECB(plaintext)
	require.NoError(t, err)
	// A full pad block is appended when the input is block-aligned.
	require.Equal(t, 32, len(ciphertext))

	got, err := ctx.DecryptECB(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestDecryptECBRejectsPartialBlock(t *testing.T) {
	ctx, err := NewContext(make([]byte, 16))
	require.NoError(t, err)
	_, err = ctx.DecryptECB(make([]byte, 17))
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewContextRejectsBadKeySize(t *testing.T) {
	_, err := NewContext(make([]byte, 5))
	require.ErrorIs(t, err, ErrInvalidKey)
}
