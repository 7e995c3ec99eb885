package aead

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	key := []byte("some ecdh derived field element")
	plaintext := []byte("feldman share bytes")

	env, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	require.Len(t, env.Tag, 12)
	// ciphertext carries the appended GCM tag
	require.Len(t, env.Ciphertext, len(plaintext)+16)

	require.True(t, bytes.Equal(Decrypt(key, env), plaintext))
}

func TestShortKeyIsZeroPadded(t *testing.T) {
	// a short ECDH x coordinate must decrypt against its padded form
	short := []byte{0x01, 0x02}
	padded := make([]byte, 32)
	copy(padded[30:], short)

	env, err := Encrypt(short, []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), Decrypt(padded, env))
}

func TestWrongKeyYieldsEmpty(t *testing.T) {
	env, err := Encrypt([]byte("right key"), []byte("payload"))
	require.NoError(t, err)

	require.Empty(t, Decrypt([]byte("wrong key"), env))
}

func TestTamperedCiphertextYieldsEmpty(t *testing.T) {
	key := []byte("key")
	env, err := Encrypt(key, []byte("payload"))
	require.NoError(t, err)
	env.Ciphertext[0] ^= 0xFF
	require.Empty(t, Decrypt(key, env))
}

func TestOversizedKeyRejected(t *testing.T) {
	_, err := Encrypt(make([]byte, 33), []byte("payload"))
	require.Error(t, err)
}

func TestMalformedEnvelope(t *testing.T) {
	require.Empty(t, Decrypt([]byte("key"), nil))
	require.Empty(t, Decrypt([]byte("key"), &Envelope{Ciphertext: []byte{1}, Tag: []byte{2}}))
}
