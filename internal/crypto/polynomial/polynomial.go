// Package polynomial implements random polynomials over the secp256k1
// scalar field, the building block of Feldman verifiable secret sharing.
package polynomial

import (
	"math/big"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
)

// Polynomial represents f(x) = a_0 + a_1*x + ... + a_t*x^t over Z_q.
type Polynomial struct {
	Coefficients []*big.Int
}

// New generates a random polynomial of the given degree with the
// constant term fixed to secret. If secret is nil a random constant
// term is sampled.
func New(degree int, secret *big.Int) (*Polynomial, error) {
	coeffs := make([]*big.Int, degree+1)
	var err error

	if secret == nil {
		coeffs[0], err = curves.NewScalar()
		if err != nil {
			return nil, err
		}
	} else {
		coeffs[0] = new(big.Int).Mod(secret, curves.Q())
	}

	for i := 1; i <= degree; i++ {
		coeffs[i], err = curves.NewScalar()
		if err != nil {
			return nil, err
		}
	}

	return &Polynomial{Coefficients: coeffs}, nil
}

// Evaluate calculates f(x) mod q by Horner's method.
func (p *Polynomial) Evaluate(x *big.Int) *big.Int {
	q := curves.Q()
	degree := len(p.Coefficients) - 1
	result := new(big.Int).Set(p.Coefficients[degree])

	for i := degree - 1; i >= 0; i-- {
		result.Mul(result, x)
		result.Add(result, p.Coefficients[i])
		result.Mod(result, q)
	}

	return result
}

// LagrangeBasis evaluates the j-th Lagrange basis polynomial for the
// interpolation points xs at the point x0.
func LagrangeBasis(x0 *big.Int, j int, xs []*big.Int) *big.Int {
	q := curves.Q()
	num := big.NewInt(1)
	den := big.NewInt(1)
	for k, xk := range xs {
		if k == j {
			continue
		}
		num.Mul(num, new(big.Int).Sub(x0, xk))
		num.Mod(num, q)
		den.Mul(den, new(big.Int).Sub(xs[j], xk))
		den.Mod(den, q)
	}
	den.ModInverse(den, q)
	num.Mul(num, den)
	return num.Mod(num, q)
}

// Zeroize clears all coefficients. The dealer must call this once the
// shares have been distributed.
func (p *Polynomial) Zeroize() {
	for _, c := range p.Coefficients {
		curves.Zeroize(c)
	}
}
