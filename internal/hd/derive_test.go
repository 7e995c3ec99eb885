package hd

import (
	"crypto/hmac"
	"crypto/sha512"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

func parentKey(t *testing.T) (*curves.ECPoint, []byte) {
	t.Helper()
	k, err := curves.NewScalar()
	require.NoError(t, err)
	y := curves.ScalarBaseMult(k)
	return y, ChainCodeFromPublicKey(y)
}

func TestDeriveEmptyPath(t *testing.T) {
	y, cc := parentKey(t)
	for _, path := range []string{"", "m", "m/"} {
		tweak, child, err := Derive(path, y, cc)
		require.NoError(t, err, "path %q", path)
		require.Zero(t, tweak.Sign())
		require.True(t, child.Equal(y))
	}
}

func TestDeriveTweakConsistency(t *testing.T) {
	y, cc := parentKey(t)

	tweak, child, err := Derive("m/0/1/42", y, cc)
	require.NoError(t, err)

	// y' == y + tweak*G
	require.True(t, child.Equal(y.Add(curves.ScalarBaseMult(tweak))))
}

func TestDeriveMatchesManualFirstStep(t *testing.T) {
	y, cc := parentKey(t)

	mac := hmac.New(sha512.New, cc)
	mac.Write(y.SerializeCompressed())
	mac.Write([]byte{0, 0, 0, 5})
	i := mac.Sum(nil)
	il := new(big.Int).SetBytes(i[:32])

	tweak, child, err := Derive("m/5", y, cc)
	require.NoError(t, err)
	require.Zero(t, tweak.Cmp(il))
	require.True(t, child.Equal(y.Add(curves.ScalarBaseMult(il))))
}

func TestDeriveStepwiseEqualsSingleCall(t *testing.T) {
	y, cc := parentKey(t)

	tweakAll, childAll, err := Derive("m/3/7", y, cc)
	require.NoError(t, err)

	tweak1, child1, err := Derive("m/3", y, cc)
	require.NoError(t, err)

	// recompute the child chain code to continue from the midpoint
	mac := hmac.New(sha512.New, cc)
	mac.Write(y.SerializeCompressed())
	mac.Write([]byte{0, 0, 0, 3})
	i := mac.Sum(nil)

	tweak2, child2, err := Derive("m/7", child1, i[32:])
	require.NoError(t, err)

	require.Zero(t, curves.AddScalars(tweak1, tweak2).Cmp(tweakAll))
	require.True(t, child2.Equal(childAll))
}

func TestHardenedRejected(t *testing.T) {
	y, cc := parentKey(t)
	for _, path := range []string{"m/0'/1", "m/0h", "m/2147483648", "m/bogus"} {
		_, _, err := Derive(path, y, cc)
		require.Error(t, err, "path %q", path)
		require.Equal(t, tss.ChildNumber, tss.ErrorCode(err), "path %q", path)
	}
}

func TestChainCodeDeterministic(t *testing.T) {
	y, _ := parentKey(t)
	require.Equal(t, ChainCodeFromPublicKey(y), ChainCodeFromPublicKey(y))
	require.Len(t, ChainCodeFromPublicKey(y), ChainCodeLen)
}
