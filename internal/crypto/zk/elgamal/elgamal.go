// Package elgamal implements the sigma protocol for correct
// homomorphic ElGamal encryption used by the Phase-5 consistency
// checks of the signing protocol: it proves knowledge of (x, r) such
// that D = x*H + r*Y and E = r*G without revealing either scalar.
package elgamal

import (
	"crypto/sha256"
	"math/big"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
)

// Statement fixes the public points of one proof instance.
type Statement struct {
	G *curves.ECPoint
	H *curves.ECPoint
	Y *curves.ECPoint
	D *curves.ECPoint
	E *curves.ECPoint
}

// Witness holds the secrets: D = X*H + R*Y, E = R*G.
type Witness struct {
	X *big.Int
	R *big.Int
}

// Proof is the Fiat-Shamir transcript.
type Proof struct {
	T  *curves.ECPoint `json:"t"`  // s1*H + s2*Y
	A3 *curves.ECPoint `json:"a3"` // s2*G
	Z1 *big.Int        `json:"z1"` // s1 + e*X
	Z2 *big.Int        `json:"z2"` // s2 + e*R
}

// Prove generates a proof for the witness under the statement.
func Prove(w *Witness, st *Statement) (*Proof, error) {
	if w == nil || w.X == nil || w.R == nil {
		return nil, errors.New("elgamal: nil witness")
	}

	s1, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}
	defer curves.Zeroize(s1)
	s2, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}
	defer curves.Zeroize(s2)

	a1 := st.H.ScalarMult(s1)
	a2 := st.Y.ScalarMult(s2)
	t := a1.Add(a2)
	a3 := st.G.ScalarMult(s2)

	e := challenge(t, a3, st)

	z1 := curves.AddScalars(s1, curves.MulScalars(e, w.X))
	z2 := curves.AddScalars(s2, curves.MulScalars(e, w.R))

	return &Proof{T: t, A3: a3, Z1: z1, Z2: z2}, nil
}

// Verify checks z1*H + z2*Y == T + e*D and z2*G == A3 + e*E.
func (p *Proof) Verify(st *Statement) bool {
	if p == nil || p.T == nil || p.A3 == nil || p.Z1 == nil || p.Z2 == nil {
		return false
	}

	e := challenge(p.T, p.A3, st)

	lhs1 := st.H.ScalarMult(p.Z1).Add(st.Y.ScalarMult(p.Z2))
	rhs1 := p.T.Add(st.D.ScalarMult(e))
	if !lhs1.Equal(rhs1) {
		return false
	}

	lhs2 := st.G.ScalarMult(p.Z2)
	rhs2 := p.A3.Add(st.E.ScalarMult(e))
	return lhs2.Equal(rhs2)
}

func challenge(t, a3 *curves.ECPoint, st *Statement) *big.Int {
	h := sha256.New()
	for _, pt := range []*curves.ECPoint{t, a3, st.G, st.H, st.Y, st.D, st.E} {
		h.Write(pt.SerializeCompressed())
	}
	return curves.ScalarFromBytes(h.Sum(nil))
}
