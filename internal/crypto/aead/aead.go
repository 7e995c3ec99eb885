// Package aead implements the AES-256-GCM envelope protecting P2P
// share transfer. The 256-bit key is the zero-padded x coordinate of
// an ECDH point; the 96-bit nonce travels in the envelope's Tag field
// and the GCM authentication tag is appended to the ciphertext. The
// 16-byte AAD is all zeros, reserved for future use.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/pkg/errors"
)

const (
	keyLen   = 32
	nonceLen = 12
	aadLen   = 16
)

var zeroAAD = make([]byte, aadLen)

// Envelope is the on-wire AEAD package. Tag carries the nonce.
type Envelope struct {
	Ciphertext []byte `json:"ciphertext"`
	Tag        []byte `json:"tag"`
}

// Encrypt seals plaintext under a key of at most 32 bytes, zero-padded
// on the left to the full AES-256 key size.
func Encrypt(key, plaintext []byte) (*Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "aead: sampling nonce")
	}

	ct := gcm.Seal(nil, nonce, plaintext, zeroAAD)
	return &Envelope{Ciphertext: ct, Tag: nonce}, nil
}

// Decrypt opens an envelope. A wrong key or tampered ciphertext
// yields an empty result, never a panic.
func Decrypt(key []byte, env *Envelope) []byte {
	if env == nil || len(env.Tag) != nonceLen {
		return nil
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil
	}
	out, err := gcm.Open(nil, env.Tag, env.Ciphertext, zeroAAD)
	if err != nil {
		return nil
	}
	return out
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) > keyLen {
		return nil, errors.Errorf("aead: key longer than %d bytes", keyLen)
	}
	full := make([]byte, keyLen)
	copy(full[keyLen-len(key):], key)

	block, err := aes.NewCipher(full)
	if err != nil {
		return nil, errors.Wrap(err, "aead: creating cipher")
	}
	return cipher.NewGCM(block)
}
