package rangeproof

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/paillier"
)

func TestProveVerify(t *testing.T) {
	sk, err := paillier.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	x, err := curves.NewScalar()
	require.NoError(t, err)
	c, r, err := sk.Encrypt(x)
	require.NoError(t, err)

	proof, err := Prove(&sk.PublicKey, c, x, r)
	require.NoError(t, err)
	require.True(t, proof.Verify(&sk.PublicKey, c))
}

func TestVerifyRejectsWrongCiphertext(t *testing.T) {
	sk, err := paillier.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	x, _ := curves.NewScalar()
	c, r, err := sk.Encrypt(x)
	require.NoError(t, err)
	proof, err := Prove(&sk.PublicKey, c, x, r)
	require.NoError(t, err)

	other, _, err := sk.Encrypt(big.NewInt(42))
	require.NoError(t, err)
	require.False(t, proof.Verify(&sk.PublicKey, other))
}

func TestVerifyRejectsTamperedResponses(t *testing.T) {
	sk, err := paillier.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	x, _ := curves.NewScalar()
	c, r, err := sk.Encrypt(x)
	require.NoError(t, err)
	proof, err := Prove(&sk.PublicKey, c, x, r)
	require.NoError(t, err)

	proof.Z1 = new(big.Int).Add(proof.Z1, big.NewInt(1))
	require.False(t, proof.Verify(&sk.PublicKey, c))
}
