// Package schnorr implements a non-interactive Schnorr proof of
// knowledge of a discrete logarithm over secp256k1 (Fiat-Shamir with
// SHA-256). The proof carries the public point it speaks about, the
// way it travels in the keygen and MtA messages.
package schnorr

import (
	"crypto/sha256"
	"math/big"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
)

// Proof proves knowledge of x such that PK = x * G.
type Proof struct {
	PK         *curves.ECPoint `json:"pk"`
	Commitment *curves.ECPoint `json:"pk_t_rand_commitment"` // R = k * G
	Response   *big.Int        `json:"challenge_response"`   // s = k + e*x
}

// Prove generates a proof for the secret x.
func Prove(x *big.Int) (*Proof, error) {
	if x == nil {
		return nil, errors.New("schnorr: nil secret")
	}

	pk := curves.ScalarBaseMult(x)

	k, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}
	defer curves.Zeroize(k)

	r := curves.ScalarBaseMult(k)

	e := challenge(pk, r)

	// s = k + e*x mod q
	s := curves.AddScalars(k, curves.MulScalars(e, x))

	return &Proof{PK: pk, Commitment: r, Response: s}, nil
}

// Verify checks s*G == R + e*PK.
func (p *Proof) Verify() bool {
	if p == nil || p.PK.IsIdentity() || p.Commitment == nil || p.Response == nil {
		return false
	}
	if p.Response.Sign() < 0 || p.Response.Cmp(curves.Q()) >= 0 {
		return false
	}

	e := challenge(p.PK, p.Commitment)

	lhs := curves.ScalarBaseMult(p.Response)
	rhs := p.Commitment.Add(p.PK.ScalarMult(e))
	return lhs.Equal(rhs)
}

// challenge computes e = H(PK || R) mod q over compressed encodings.
func challenge(pk, r *curves.ECPoint) *big.Int {
	h := sha256.New()
	h.Write(pk.SerializeCompressed())
	h.Write(r.SerializeCompressed())
	return curves.ScalarFromBytes(h.Sum(nil))
}
