package paillier

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCorrectKeyProof(t *testing.T) {
	sk, err := GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	proof, err := sk.ProveCorrectKey()
	require.NoError(t, err)
	require.Len(t, proof.Sigma, proofIterations)
	require.NoError(t, proof.Verify(&sk.PublicKey))
}

func TestCorrectKeyProofWrongModulus(t *testing.T) {
	sk, err := GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	proof, err := sk.ProveCorrectKey()
	require.NoError(t, err)

	other, err := GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	require.Error(t, proof.Verify(&other.PublicKey))
}

func TestCorrectKeyProofTampered(t *testing.T) {
	sk, err := GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	proof, err := sk.ProveCorrectKey()
	require.NoError(t, err)

	proof.Sigma[0] = new(big.Int).Add(proof.Sigma[0], big.NewInt(1))
	require.Error(t, proof.Verify(&sk.PublicKey))
}

func TestCorrectKeyProofRejectsBadModuli(t *testing.T) {
	var p CorrectKeyProof

	// too small
	small, err := GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	require.Error(t, p.Verify(&small.PublicKey))

	// even modulus
	even := &PublicKey{N: new(big.Int).Lsh(big.NewInt(1), 2048)}
	require.Error(t, p.Verify(even))
}
