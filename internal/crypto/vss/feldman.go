// Package vss implements Feldman verifiable secret sharing over
// secp256k1: polynomial (t,n) sharing with public coefficient
// commitments, share validation, Lagrange reconstruction at zero, and
// the lambda recomputation that restricts a (t,n) share to the signer
// set actually online.
package vss

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/polynomial"
)

// ErrVerifyShare is returned when a share does not match the dealer's
// published commitments.
var ErrVerifyShare = errors.New("vss: share verification failed")

// Params carries the (t, n) sharing parameters.
type Params struct {
	Threshold  uint16 `json:"threshold"`
	ShareCount uint16 `json:"share_count"`
}

// VerifiableSS is a dealer's published commitment vector for one
// Feldman sharing: Commitments[k] = a_k * G, with Commitments[0]
// committing to the secret.
type VerifiableSS struct {
	Parameters  Params             `json:"parameters"`
	Commitments []*curves.ECPoint  `json:"commitments"`
}

// ReconstructLimit returns the number of shares needed to recover the
// secret.
func (v *VerifiableSS) ReconstructLimit() uint16 {
	return v.Parameters.Threshold + 1
}

// Share samples a degree-t polynomial with p(0) = secret and returns
// the commitment vector together with shares p(1), ..., p(n).
func Share(t, n uint16, secret *big.Int) (*VerifiableSS, []*big.Int, error) {
	if t >= n {
		return nil, nil, errors.Errorf("vss: threshold %d must be below share count %d", t, n)
	}

	poly, err := polynomial.New(int(t), secret)
	if err != nil {
		return nil, nil, err
	}
	defer poly.Zeroize()

	shares := make([]*big.Int, n)
	for i := uint16(1); i <= n; i++ {
		shares[i-1] = poly.Evaluate(big.NewInt(int64(i)))
	}

	commitments := make([]*curves.ECPoint, t+1)
	for k, coeff := range poly.Coefficients {
		commitments[k] = curves.ScalarBaseMult(coeff)
	}

	v := &VerifiableSS{
		Parameters:  Params{Threshold: t, ShareCount: n},
		Commitments: commitments,
	}
	return v, shares, nil
}

// Zero returns an all-identity commitment vector. Resharing pads the
// vector of absent givers with it.
func Zero(t, n uint16) *VerifiableSS {
	commitments := make([]*curves.ECPoint, t+1)
	for k := range commitments {
		commitments[k] = curves.Identity()
	}
	return &VerifiableSS{
		Parameters:  Params{Threshold: t, ShareCount: n},
		Commitments: commitments,
	}
}

// GetPointCommitment evaluates the committed polynomial in the
// exponent at the given 1-based index by a reverse Horner fold.
func (v *VerifiableSS) GetPointCommitment(index uint16) *curves.ECPoint {
	idx := big.NewInt(int64(index))
	last := len(v.Commitments) - 1
	acc := v.Commitments[last]
	for k := last - 1; k >= 0; k-- {
		acc = v.Commitments[k].Add(acc.ScalarMult(idx))
	}
	return acc
}

// ValidateShare checks share * G == sum_k Commitments[k] * index^k.
func (v *VerifiableSS) ValidateShare(share *big.Int, index uint16) error {
	ssPoint := curves.ScalarBaseMult(share)
	if !ssPoint.Equal(v.GetPointCommitment(index)) {
		return ErrVerifyShare
	}
	return nil
}

// Reconstruct interpolates the secret at zero from the given shares.
// The indices are 0-based positions in the party set, so the
// evaluation points are index+1.
func (v *VerifiableSS) Reconstruct(indices []uint16, shares []*big.Int) (*big.Int, error) {
	if len(indices) != len(shares) {
		return nil, errors.New("vss: indices and shares length mismatch")
	}
	if len(shares) < int(v.ReconstructLimit()) {
		return nil, errors.Errorf("vss: need %d shares, have %d", v.ReconstructLimit(), len(shares))
	}
	points := make([]*big.Int, len(indices))
	for i, idx := range indices {
		points[i] = big.NewInt(int64(idx) + 1)
	}
	return LagrangeInterpolationAtZero(points, shares), nil
}

// LagrangeInterpolationAtZero evaluates at x = 0 the polynomial
// passing through (points[i], values[i]).
func LagrangeInterpolationAtZero(points, values []*big.Int) *big.Int {
	zero := big.NewInt(0)
	acc := big.NewInt(0)
	for i := range values {
		li := polynomial.LagrangeBasis(zero, i, points)
		acc = curves.AddScalars(acc, curves.MulScalars(li, values[i]))
	}
	return acc
}

// MapShareToNewParams computes the Lagrange coefficient lambda that
// converts the (t,n) share held at the 0-based evaluation index into
// an additive (|s|,|s|) share of the same secret restricted to the
// signer set s (each entry a 0-based index).
func MapShareToNewParams(index uint16, s []uint16) (*big.Int, error) {
	j := -1
	for k, sk := range s {
		if sk == index {
			j = k
			break
		}
	}
	if j < 0 {
		return nil, errors.Errorf("vss: index %d not in signer set", index)
	}
	xs := make([]*big.Int, len(s))
	for k, sk := range s {
		xs[k] = big.NewInt(int64(sk) + 1)
	}
	return polynomial.LagrangeBasis(big.NewInt(0), j, xs), nil
}
