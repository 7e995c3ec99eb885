package vss

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
)

func TestShareAndValidate(t *testing.T) {
	secret, err := curves.NewScalar()
	require.NoError(t, err)

	v, shares, err := Share(1, 3, secret)
	require.NoError(t, err)
	require.Len(t, shares, 3)
	require.Len(t, v.Commitments, 2)
	require.True(t, v.Commitments[0].Equal(curves.ScalarBaseMult(secret)))

	for i := uint16(1); i <= 3; i++ {
		require.NoError(t, v.ValidateShare(shares[i-1], i))
	}

	// a share validated at the wrong index must fail
	require.ErrorIs(t, v.ValidateShare(shares[0], 2), ErrVerifyShare)

	// a corrupted share must fail
	bad := curves.AddScalars(shares[0], big.NewInt(1))
	require.ErrorIs(t, v.ValidateShare(bad, 1), ErrVerifyShare)
}

func TestReconstruct(t *testing.T) {
	secret, err := curves.NewScalar()
	require.NoError(t, err)

	v, shares, err := Share(2, 5, secret)
	require.NoError(t, err)

	// any t+1 shares reconstruct
	got, err := v.Reconstruct([]uint16{0, 2, 4}, []*big.Int{shares[0], shares[2], shares[4]})
	require.NoError(t, err)
	require.Zero(t, got.Cmp(secret))

	// more than t+1 also works
	got, err = v.Reconstruct([]uint16{0, 1, 2, 3}, []*big.Int{shares[0], shares[1], shares[2], shares[3]})
	require.NoError(t, err)
	require.Zero(t, got.Cmp(secret))

	// too few is rejected
	_, err = v.Reconstruct([]uint16{0, 1}, []*big.Int{shares[0], shares[1]})
	require.Error(t, err)
}

func TestMapShareToNewParams(t *testing.T) {
	secret, err := curves.NewScalar()
	require.NoError(t, err)

	_, shares, err := Share(1, 3, secret)
	require.NoError(t, err)

	// sum of lambda_i * x_i over any signer subset recovers the secret
	for _, signers := range [][]uint16{{0, 1}, {0, 2}, {1, 2}, {0, 1, 2}} {
		sum := big.NewInt(0)
		for _, idx := range signers {
			lambda, err := MapShareToNewParams(idx, signers)
			require.NoError(t, err)
			sum = curves.AddScalars(sum, curves.MulScalars(lambda, shares[idx]))
		}
		require.Zero(t, sum.Cmp(secret), "signers %v", signers)
	}
}

func TestMapShareSingleton(t *testing.T) {
	// degenerate signer set of one: lambda must be 1
	lambda, err := MapShareToNewParams(4, []uint16{4})
	require.NoError(t, err)
	require.Zero(t, lambda.Cmp(big.NewInt(1)))

	_, err = MapShareToNewParams(3, []uint16{4})
	require.Error(t, err)
}

func TestZero(t *testing.T) {
	z := Zero(1, 3)
	require.Len(t, z.Commitments, 2)
	for _, c := range z.Commitments {
		require.True(t, c.IsIdentity())
	}
	// an all-identity vector contributes nothing to point commitments
	require.True(t, z.GetPointCommitment(2).IsIdentity())
}
