package paillier

import (
	"crypto/sha512"
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
)

// CorrectKeyProof is a non-interactive proof (Gennaro-Micciancio-Rabin
// style) that the prover knows the factorization of its Paillier
// modulus n and that n has no small prime factors. The verifier
// derives pseudo-random elements rho_i of Z_n* from n and a fixed
// salt; only a party knowing phi(n) can produce the n-th roots
// sigma_i = rho_i^(n^-1 mod lambda) mod n.
type CorrectKeyProof struct {
	Sigma []*big.Int `json:"sigma_vec"`
}

const (
	// proofIterations bounds the soundness error; each round an
	// adversary with a malformed modulus answers with probability at
	// most 1/2 against the root challenge.
	proofIterations = 11

	// minModulusBits rejects truncated moduli outright.
	minModulusBits = 2046

	correctKeySalt = "mpc-hd-gg18-paillier-correct-key"
)

// smallPrimes is used to screen out moduli with small factors.
var smallPrimes = []int64{
	3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61,
	67, 71, 73, 79, 83, 89, 97, 101, 103, 107, 109, 113, 127, 131,
	137, 139, 149, 151, 157, 163, 167, 173, 179, 181, 191, 193, 197,
	199, 211, 223, 227, 229, 233, 239, 241, 251,
}

// ProveCorrectKey produces the proof for the private key's modulus.
func (sk *PrivateKey) ProveCorrectKey() (*CorrectKeyProof, error) {
	// exponent d with rho^(n*d) = rho mod n for rho in Z_n*
	d := new(big.Int).ModInverse(sk.N, sk.Lambda)
	if d == nil {
		return nil, errors.New("paillier: modulus not invertible mod lambda")
	}

	sigma := make([]*big.Int, proofIterations)
	for i := 0; i < proofIterations; i++ {
		rho := deriveChallenge(sk.N, i)
		sigma[i] = new(big.Int).Exp(rho, d, sk.N)
	}
	return &CorrectKeyProof{Sigma: sigma}, nil
}

// Verify checks the proof against the published public key.
func (p *CorrectKeyProof) Verify(pk *PublicKey) error {
	if pk == nil || pk.N == nil {
		return errors.New("paillier: missing public key")
	}
	if pk.N.BitLen() < minModulusBits {
		return errors.Errorf("paillier: modulus too small (%d bits)", pk.N.BitLen())
	}
	if pk.N.Bit(0) == 0 {
		return errors.New("paillier: modulus is even")
	}
	for _, sp := range smallPrimes {
		if new(big.Int).Mod(pk.N, big.NewInt(sp)).Sign() == 0 {
			return errors.Errorf("paillier: modulus divisible by %d", sp)
		}
	}
	if pk.N.ProbablyPrime(16) {
		return errors.New("paillier: modulus is prime")
	}
	if p == nil || len(p.Sigma) != proofIterations {
		return errors.New("paillier: malformed correct-key proof")
	}

	for i, sig := range p.Sigma {
		if sig == nil || sig.Sign() <= 0 || sig.Cmp(pk.N) >= 0 {
			return errors.New("paillier: proof element out of range")
		}
		rho := deriveChallenge(pk.N, i)
		if new(big.Int).Exp(sig, pk.N, pk.N).Cmp(rho) != 0 {
			return errors.Errorf("paillier: correct-key proof round %d failed", i)
		}
	}
	return nil
}

// deriveChallenge expands (n, salt, i) into an element of Z_n by
// counter-mode SHA-512 until enough bytes cover the modulus, then
// reduces. The derivation is shared between prover and verifier.
func deriveChallenge(n *big.Int, i int) *big.Int {
	need := (n.BitLen() + 7) / 8
	var stream []byte
	for ctr := uint32(0); len(stream) < need+8; ctr++ {
		h := sha512.New()
		h.Write([]byte(correctKeySalt))
		h.Write(n.Bytes())
		var idx [8]byte
		binary.BigEndian.PutUint32(idx[:4], uint32(i))
		binary.BigEndian.PutUint32(idx[4:], ctr)
		h.Write(idx[:])
		stream = h.Sum(stream)
	}
	rho := new(big.Int).SetBytes(stream)
	rho.Mod(rho, n)
	if rho.Sign() == 0 {
		rho.SetInt64(1)
	}
	return rho
}
