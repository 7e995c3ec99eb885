// Package curves wraps the secp256k1 group operations needed by the
// threshold protocols: scalar arithmetic mod the curve order, point
// arithmetic with an explicit identity element, and the compressed /
// uncompressed encodings used on the wire and in the keystore.
package curves

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
)

// Q returns the order of the secp256k1 group.
func Q() *big.Int {
	return new(big.Int).Set(secp256k1.S256().N)
}

// NewScalar generates a uniformly random scalar in [0, q).
func NewScalar() (*big.Int, error) {
	k, err := rand.Int(rand.Reader, secp256k1.S256().N)
	if err != nil {
		return nil, errors.Wrap(err, "curves: sampling scalar")
	}
	return k, nil
}

// AddScalars returns a + b mod q.
func AddScalars(a, b *big.Int) *big.Int {
	s := new(big.Int).Add(a, b)
	return s.Mod(s, secp256k1.S256().N)
}

// SubScalars returns a - b mod q.
func SubScalars(a, b *big.Int) *big.Int {
	s := new(big.Int).Sub(a, b)
	return s.Mod(s, secp256k1.S256().N)
}

// MulScalars returns a * b mod q.
func MulScalars(a, b *big.Int) *big.Int {
	s := new(big.Int).Mul(a, b)
	return s.Mod(s, secp256k1.S256().N)
}

// InvScalar returns a^-1 mod q, or an error when a == 0 mod q.
func InvScalar(a *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(a, secp256k1.S256().N)
	if inv == nil {
		return nil, errors.New("curves: scalar has no inverse")
	}
	return inv, nil
}

// ScalarFromBytes interprets b as a big-endian integer reduced mod q.
func ScalarFromBytes(b []byte) *big.Int {
	s := new(big.Int).SetBytes(b)
	return s.Mod(s, secp256k1.S256().N)
}

// ScalarBytes encodes s as exactly 32 big-endian bytes.
func ScalarBytes(s *big.Int) []byte {
	var out [32]byte
	s.FillBytes(out[:])
	return out[:]
}

// ScalarEqual compares two scalars in constant time.
func ScalarEqual(a, b *big.Int) bool {
	return subtle.ConstantTimeCompare(ScalarBytes(a), ScalarBytes(b)) == 1
}

// Zeroize overwrites a scalar with zero. math/big gives no guarantee
// about copies made during arithmetic; this clears the final resting
// value so long-lived structs do not retain ephemeral secrets.
func Zeroize(s *big.Int) {
	if s != nil {
		s.SetInt64(0)
	}
}

// ECPoint is a point on secp256k1 in affine coordinates. The zero
// value (nil coordinates) is the identity element, which both Add and
// ScalarMult treat correctly; it appears on the wire during resharing
// as the padding commitment of absent givers.
type ECPoint struct {
	x, y *big.Int
}

// Identity returns the identity (point at infinity).
func Identity() *ECPoint {
	return &ECPoint{}
}

// NewECPoint validates that (x, y) lies on the curve.
func NewECPoint(x, y *big.Int) (*ECPoint, error) {
	if x == nil && y == nil {
		return Identity(), nil
	}
	if x == nil || y == nil || !secp256k1.S256().IsOnCurve(x, y) {
		return nil, errors.New("curves: point not on curve")
	}
	return &ECPoint{x: new(big.Int).Set(x), y: new(big.Int).Set(y)}, nil
}

// ScalarBaseMult returns k * G.
func ScalarBaseMult(k *big.Int) *ECPoint {
	km := new(big.Int).Mod(k, secp256k1.S256().N)
	if km.Sign() == 0 {
		return Identity()
	}
	x, y := secp256k1.S256().ScalarBaseMult(km.Bytes())
	return &ECPoint{x: x, y: y}
}

// Generator returns G.
func Generator() *ECPoint {
	return ScalarBaseMult(big.NewInt(1))
}

// IsIdentity reports whether p is the point at infinity.
func (p *ECPoint) IsIdentity() bool {
	return p == nil || p.x == nil
}

// X returns the affine x coordinate, nil for the identity.
func (p *ECPoint) X() *big.Int {
	if p.IsIdentity() {
		return nil
	}
	return new(big.Int).Set(p.x)
}

// Y returns the affine y coordinate, nil for the identity.
func (p *ECPoint) Y() *big.Int {
	if p.IsIdentity() {
		return nil
	}
	return new(big.Int).Set(p.y)
}

// Add returns p + q.
func (p *ECPoint) Add(q *ECPoint) *ECPoint {
	if p.IsIdentity() {
		return q.clone()
	}
	if q.IsIdentity() {
		return p.clone()
	}
	if p.x.Cmp(q.x) == 0 && p.y.Cmp(q.y) != 0 {
		return Identity()
	}
	x, y := secp256k1.S256().Add(p.x, p.y, q.x, q.y)
	return &ECPoint{x: x, y: y}
}

// Sub returns p - q.
func (p *ECPoint) Sub(q *ECPoint) *ECPoint {
	return p.Add(q.Neg())
}

// Neg returns -p.
func (p *ECPoint) Neg() *ECPoint {
	if p.IsIdentity() {
		return Identity()
	}
	ny := new(big.Int).Sub(secp256k1.S256().P, p.y)
	ny.Mod(ny, secp256k1.S256().P)
	return &ECPoint{x: new(big.Int).Set(p.x), y: ny}
}

// ScalarMult returns k * p.
func (p *ECPoint) ScalarMult(k *big.Int) *ECPoint {
	if p.IsIdentity() {
		return Identity()
	}
	km := new(big.Int).Mod(k, secp256k1.S256().N)
	if km.Sign() == 0 {
		return Identity()
	}
	x, y := secp256k1.S256().ScalarMult(p.x, p.y, km.Bytes())
	return &ECPoint{x: x, y: y}
}

// Equal reports whether p and q are the same point.
func (p *ECPoint) Equal(q *ECPoint) bool {
	if p.IsIdentity() || q.IsIdentity() {
		return p.IsIdentity() && q.IsIdentity()
	}
	return p.x.Cmp(q.x) == 0 && p.y.Cmp(q.y) == 0
}

func (p *ECPoint) clone() *ECPoint {
	if p.IsIdentity() {
		return Identity()
	}
	return &ECPoint{x: new(big.Int).Set(p.x), y: new(big.Int).Set(p.y)}
}

// SerializeCompressed returns the 33-byte SEC compressed encoding.
// The identity has no SEC encoding and serializes as an empty slice.
func (p *ECPoint) SerializeCompressed() []byte {
	if p.IsIdentity() {
		return nil
	}
	out := make([]byte, 33)
	if p.y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	p.x.FillBytes(out[1:])
	return out
}

// SerializeUncompressed returns the 65-byte SEC uncompressed encoding.
func (p *ECPoint) SerializeUncompressed() []byte {
	if p.IsIdentity() {
		return nil
	}
	out := make([]byte, 65)
	out[0] = 0x04
	p.x.FillBytes(out[1:33])
	p.y.FillBytes(out[33:])
	return out
}

// ParsePoint decodes a compressed or uncompressed SEC encoding. An
// empty input decodes to the identity, mirroring SerializeCompressed.
func ParsePoint(b []byte) (*ECPoint, error) {
	if len(b) == 0 {
		return Identity(), nil
	}
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, errors.Wrap(err, "curves: parsing point")
	}
	return &ECPoint{x: pk.X(), y: pk.Y()}, nil
}

type pointJSON struct {
	Point string `json:"point"`
}

// MarshalJSON encodes the point as hex of its compressed form; the
// identity encodes as the empty string.
func (p *ECPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{Point: hex.EncodeToString(p.SerializeCompressed())})
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (p *ECPoint) UnmarshalJSON(data []byte) error {
	var aux pointJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw, err := hex.DecodeString(aux.Point)
	if err != nil {
		return errors.Wrap(err, "curves: decoding point hex")
	}
	pt, err := ParsePoint(raw)
	if err != nil {
		return err
	}
	p.x, p.y = pt.x, pt.y
	return nil
}
