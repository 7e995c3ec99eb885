// Package hd implements BIP32 non-hardened public-key derivation for
// the joint key: given the joint public key and its chain code it
// turns a path m/i1/i2/... into an additive tweak delta and the child
// public key y' = y + delta*G. The tweak is applied at signing time
// only; the keystore never learns the child key.
package hd

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math/big"
	"strconv"
	"strings"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

const hardenedOffset = uint32(1) << 31

// ChainCodeLen is the byte length of a BIP32 chain code.
const ChainCodeLen = 32

// Derive walks the non-hardened path from the parent key and returns
// the accumulated tweak and the resulting child public key. An empty
// path yields a zero tweak and the parent itself. Hardened segments
// surface a ChildNumber protocol error before any derivation happens.
func Derive(path string, parent *curves.ECPoint, chainCode []byte) (*big.Int, *curves.ECPoint, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, nil, err
	}

	tweak := big.NewInt(0)
	pk := parent
	cc := make([]byte, ChainCodeLen)
	copy(cc, chainCode)

	for _, idx := range indices {
		mac := hmac.New(sha512.New, cc)
		mac.Write(pk.SerializeCompressed())
		var be [4]byte
		binary.BigEndian.PutUint32(be[:], idx)
		mac.Write(be[:])
		i := mac.Sum(nil)

		il := new(big.Int).SetBytes(i[:32])
		if il.Cmp(curves.Q()) >= 0 {
			return nil, nil, tss.NewError(tss.ChildNumber, "hd", 0, nil)
		}

		child := pk.Add(curves.ScalarBaseMult(il))
		if child.IsIdentity() {
			return nil, nil, tss.NewError(tss.ChildNumber, "hd", 0, nil)
		}

		tweak = curves.AddScalars(tweak, il)
		pk = child
		copy(cc, i[32:])
	}

	return tweak, pk, nil
}

// ParsePath splits a derivation path like "m/0/1" into child indices.
// The leading "m" is optional. Hardened markers (' or h) and indices
// >= 2^31 are rejected with a ChildNumber protocol error.
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "m")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, nil
	}

	segments := strings.Split(path, "/")
	indices := make([]uint32, 0, len(segments))
	for _, seg := range segments {
		if strings.HasSuffix(seg, "'") || strings.HasSuffix(seg, "h") || strings.HasSuffix(seg, "H") {
			return nil, tss.NewError(tss.ChildNumber, "hd", 0, nil)
		}
		v, err := strconv.ParseUint(seg, 10, 32)
		if err != nil {
			return nil, tss.NewError(tss.ChildNumber, "hd", 0, err)
		}
		if uint32(v) >= hardenedOffset {
			return nil, tss.NewError(tss.ChildNumber, "hd", 0, nil)
		}
		indices = append(indices, uint32(v))
	}
	return indices, nil
}

// ChainCodeFromPublicKey derives the fixed chain code of a joint key:
// the left half of SHA-512 over the uncompressed encoding.
func ChainCodeFromPublicKey(y *curves.ECPoint) []byte {
	sum := sha512.Sum512(y.SerializeUncompressed())
	cc := make([]byte, ChainCodeLen)
	copy(cc, sum[:ChainCodeLen])
	return cc
}
