// Package rangeproof implements the sigma protocol attached to the
// first MtA message: a proof of knowledge of the plaintext behind a
// Paillier ciphertext. C = E(x, r); the prover shows it knows (x, r)
// opening C. The verifier does not bound the size of z1, so the proof
// does not bound the size of the plaintext.
package rangeproof

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/paillier"
)

var one = big.NewInt(1)

// Proof is the Fiat-Shamir transcript over the ciphertext C.
type Proof struct {
	A  *big.Int `json:"a"`  // E(alpha, rho)
	Z1 *big.Int `json:"z1"` // alpha + e*x  (over the integers)
	Z2 *big.Int `json:"z2"` // rho * r^e mod N
}

// Prove generates a proof for C = E(x, r) under pk.
func Prove(pk *paillier.PublicKey, c, x, r *big.Int) (*Proof, error) {
	if pk == nil || c == nil || x == nil || r == nil {
		return nil, errors.New("rangeproof: nil input")
	}

	alpha, err := rand.Int(rand.Reader, pk.N)
	if err != nil {
		return nil, err
	}
	rho, err := rand.Int(rand.Reader, pk.N)
	if err != nil {
		return nil, err
	}
	if rho.Sign() == 0 {
		rho.SetInt64(1)
	}

	a, err := pk.EncryptWithNonce(alpha, rho)
	if err != nil {
		return nil, err
	}

	e := challenge(pk.N, c, a)

	// z1 over the integers: the encryption relation below only
	// depends on z1 mod N, but leaving it unreduced keeps the
	// standard sigma shape.
	z1 := new(big.Int).Mul(e, x)
	z1.Add(z1, alpha)

	z2 := new(big.Int).Exp(r, e, pk.N)
	z2.Mul(z2, rho)
	z2.Mod(z2, pk.N)

	return &Proof{A: a, Z1: z1, Z2: z2}, nil
}

// Verify checks E(z1, z2) == A * C^e mod N^2, computing the left side
// directly so z1 >= N is accepted (it is reduced implicitly).
func (p *Proof) Verify(pk *paillier.PublicKey, c *big.Int) bool {
	if p == nil || pk == nil || c == nil || p.A == nil || p.Z1 == nil || p.Z2 == nil {
		return false
	}
	if p.Z1.Sign() < 0 || p.Z2.Sign() <= 0 || p.Z2.Cmp(pk.N) >= 0 {
		return false
	}
	if pk.ValidateCiphertext(c) != nil || pk.ValidateCiphertext(p.A) != nil {
		return false
	}

	e := challenge(pk.N, c, p.A)

	// lhs = (1 + N*z1) * z2^N mod N^2
	lhs := new(big.Int).Mul(pk.N, new(big.Int).Mod(p.Z1, pk.N))
	lhs.Add(lhs, one)
	lhs.Mul(lhs, new(big.Int).Exp(p.Z2, pk.N, pk.N2()))
	lhs.Mod(lhs, pk.N2())

	rhs := new(big.Int).Exp(c, e, pk.N2())
	rhs.Mul(rhs, p.A)
	rhs.Mod(rhs, pk.N2())

	return lhs.Cmp(rhs) == 0
}

func challenge(n, c, a *big.Int) *big.Int {
	h := sha256.New()
	h.Write(n.Bytes())
	h.Write(c.Bytes())
	h.Write(a.Bytes())
	return curves.ScalarFromBytes(h.Sum(nil))
}
