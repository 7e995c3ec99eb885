// Package paillier implements the additively homomorphic Paillier
// cryptosystem that carries the MtA share conversion, together with a
// non-interactive proof that a published modulus is a correctly formed
// Paillier key.
package paillier

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

var one = big.NewInt(1)

// PublicKey represents a Paillier public key.
type PublicKey struct {
	N  *big.Int `json:"n"`
	n2 *big.Int // cached n^2
}

// PrivateKey represents a Paillier private key.
type PrivateKey struct {
	PublicKey
	Lambda *big.Int `json:"lambda"` // lcm(p-1, q-1)
	Mu     *big.Int `json:"mu"`     // lambda^-1 mod n
}

// N2 returns n^2, cached after the first call.
func (pk *PublicKey) N2() *big.Int {
	if pk.n2 == nil {
		pk.n2 = new(big.Int).Mul(pk.N, pk.N)
	}
	return pk.n2
}

// GenerateKey generates a Paillier key pair with the given modulus bit
// length. bits must be at least 1024.
func GenerateKey(random io.Reader, bits int) (*PrivateKey, error) {
	if bits < 1024 {
		return nil, errors.New("paillier: bits must be at least 1024")
	}

	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)

		// lambda = lcm(p-1, q-1) = (p-1)(q-1) / gcd(p-1, q-1)
		pMinus1 := new(big.Int).Sub(p, one)
		qMinus1 := new(big.Int).Sub(q, one)
		gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
		lambda := new(big.Int).Mul(pMinus1, qMinus1)
		lambda.Div(lambda, gcd)

		// mu exists iff gcd(lambda, n) == 1; retry otherwise.
		mu := new(big.Int).ModInverse(lambda, n)
		if mu == nil {
			continue
		}

		return &PrivateKey{
			PublicKey: PublicKey{N: n, n2: new(big.Int).Mul(n, n)},
			Lambda:    lambda,
			Mu:        mu,
		}, nil
	}
}

// Encrypt encrypts m in [0, n) and returns the ciphertext together
// with the randomness used.
func (pk *PublicKey) Encrypt(m *big.Int) (*big.Int, *big.Int, error) {
	r, err := pk.sampleNonce()
	if err != nil {
		return nil, nil, err
	}
	c, err := pk.EncryptWithNonce(m, r)
	if err != nil {
		return nil, nil, err
	}
	return c, r, nil
}

// EncryptWithNonce encrypts m in [0, n) using the given randomness r.
// Keeping r lets the caller build proofs over the ciphertext.
func (pk *PublicKey) EncryptWithNonce(m, r *big.Int) (*big.Int, error) {
	if m.Sign() < 0 || m.Cmp(pk.N) >= 0 {
		return nil, errors.New("paillier: message out of range [0, n)")
	}

	// c = (1 + n*m) * r^n mod n^2
	gm := new(big.Int).Mul(pk.N, m)
	gm.Add(gm, one)

	rn := new(big.Int).Exp(r, pk.N, pk.N2())

	c := new(big.Int).Mul(gm, rn)
	c.Mod(c, pk.N2())
	return c, nil
}

// Decrypt recovers the plaintext m = L(c^lambda mod n^2) * mu mod n.
func (sk *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	if c.Sign() < 0 || c.Cmp(sk.N2()) >= 0 {
		return nil, errors.New("paillier: ciphertext out of range [0, n^2)")
	}

	u := new(big.Int).Exp(c, sk.Lambda, sk.N2())

	l := new(big.Int).Sub(u, one)
	l.Div(l, sk.N)

	m := new(big.Int).Mul(l, sk.Mu)
	m.Mod(m, sk.N)
	return m, nil
}

// Add computes the ciphertext of m1 + m2 from the ciphertexts of m1
// and m2: c = c1 * c2 mod n^2.
func (pk *PublicKey) Add(c1, c2 *big.Int) *big.Int {
	c := new(big.Int).Mul(c1, c2)
	return c.Mod(c, pk.N2())
}

// Mul computes the ciphertext of m * k from the ciphertext of m:
// c = c1^k mod n^2.
func (pk *PublicKey) Mul(c1, k *big.Int) *big.Int {
	return new(big.Int).Exp(c1, k, pk.N2())
}

// ValidateCiphertext checks the ciphertext range.
func (pk *PublicKey) ValidateCiphertext(c *big.Int) error {
	if c == nil || c.Sign() < 0 || c.Cmp(pk.N2()) >= 0 {
		return errors.New("paillier: ciphertext out of range")
	}
	return nil
}

func (pk *PublicKey) sampleNonce() (*big.Int, error) {
	for {
		r, err := rand.Int(rand.Reader, pk.N)
		if err != nil {
			return nil, err
		}
		if r.Sign() == 0 {
			continue
		}
		// gcd(r, n) != 1 would reveal a factor of n; the probability
		// is negligible for honest keys but the check is cheap.
		if new(big.Int).GCD(nil, nil, r, pk.N).Cmp(one) == 0 {
			return r, nil
		}
	}
}
