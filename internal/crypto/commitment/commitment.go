// Package commitment implements a SHA-256 hash commitment scheme:
// C = H(data || blind) with a 256-bit random blind factor. It is
// binding under collision resistance and hiding while blind stays
// secret, which is all the commit/decommit rounds require.
package commitment

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

// BlindLen is the byte length of the random blind factor.
const BlindLen = 32

// Commitment holds a commitment hash and the blind that opens it.
type Commitment struct {
	C     []byte // commitment value H(data || blind)
	Blind []byte // decommitment randomness
}

// New commits to data under a fresh random blind.
func New(data []byte) (*Commitment, error) {
	blind := make([]byte, BlindLen)
	if _, err := rand.Read(blind); err != nil {
		return nil, err
	}
	return &Commitment{C: Create(data, blind), Blind: blind}, nil
}

// Create computes H(data || blind) with a caller-supplied blind.
func Create(data, blind []byte) []byte {
	h := sha256.New()
	h.Write(data)
	h.Write(blind)
	return h.Sum(nil)
}

// Verify checks that c opens to data under blind.
func Verify(c, blind, data []byte) bool {
	if len(c) != sha256.Size || len(blind) != BlindLen {
		return false
	}
	return bytes.Equal(Create(data, blind), c)
}

// Concat joins message parts into a single commitment payload.
func Concat(parts ...[]byte) []byte {
	var data []byte
	for _, p := range parts {
		data = append(data, p...)
	}
	return data
}

// IntToBytes converts a big.Int for inclusion in a commitment payload.
func IntToBytes(i *big.Int) []byte {
	if i == nil {
		return []byte{}
	}
	return i.Bytes()
}
