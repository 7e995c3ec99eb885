package polynomial

import (
	"math/big"
	"testing"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
)

func TestNewFixedConstantTerm(t *testing.T) {
	secret := big.NewInt(424242)
	p, err := New(3, secret)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(p.Coefficients) != 4 {
		t.Fatalf("expected 4 coefficients, got %d", len(p.Coefficients))
	}
	if p.Evaluate(big.NewInt(0)).Cmp(secret) != 0 {
		t.Errorf("f(0) != secret")
	}
}

func TestEvaluateMatchesDirectComputation(t *testing.T) {
	p, err := New(2, big.NewInt(7))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	x := big.NewInt(5)

	// a0 + a1*x + a2*x^2 computed without Horner
	q := curves.Q()
	want := new(big.Int).Set(p.Coefficients[0])
	want.Add(want, new(big.Int).Mul(p.Coefficients[1], x))
	want.Add(want, new(big.Int).Mul(p.Coefficients[2], new(big.Int).Mul(x, x)))
	want.Mod(want, q)

	if got := p.Evaluate(x); got.Cmp(want) != 0 {
		t.Errorf("Evaluate mismatch: got %s want %s", got, want)
	}
}

func TestLagrangeBasisPartitionOfUnity(t *testing.T) {
	// sum of basis polynomials at any point is 1
	xs := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(4)}
	sum := big.NewInt(0)
	for j := range xs {
		sum = curves.AddScalars(sum, LagrangeBasis(big.NewInt(0), j, xs))
	}
	if sum.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("basis polynomials do not sum to 1, got %s", sum)
	}
}
