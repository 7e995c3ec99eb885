// Package mta implements the GG18 multiplicative-to-additive share
// conversion. Alice holds a, Bob holds b; after one MessageA/MessageB
// exchange Alice learns alpha and Bob keeps beta with
// alpha + beta = a*b mod q, and neither learns the other's factor.
package mta

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/paillier"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/rangeproof"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/schnorr"
)

// MessageA is Alice's opening move: her secret encrypted under her own
// Paillier key, with a proof of plaintext knowledge.
type MessageA struct {
	C          *big.Int          `json:"c"`
	RangeProof *rangeproof.Proof `json:"range_proof"`
}

// NewMessageA encrypts a under ek and proves knowledge of the
// plaintext. The Paillier randomness is returned for zeroization by
// the caller.
func NewMessageA(a *big.Int, ek *paillier.PublicKey) (*MessageA, *big.Int, error) {
	c, r, err := ek.Encrypt(a)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mta: encrypting message a")
	}
	proof, err := rangeproof.Prove(ek, c, a, r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mta: proving message a")
	}
	return &MessageA{C: c, RangeProof: proof}, r, nil
}

// MessageB is Bob's reply: c_b = b ⊙ c_a ⊕ Enc(beta') under Alice's
// key, with dlog proofs binding b and beta' to their public points.
// Alice decrypts c_b to alpha' = a*b + beta'; Bob keeps
// beta = -beta' mod q.
type MessageB struct {
	C            *big.Int       `json:"c"`
	BProof       *schnorr.Proof `json:"b_proof"`
	BetaTagProof *schnorr.Proof `json:"beta_tag_proof"`
}

// NewMessageB homomorphically multiplies Alice's ciphertext by b and
// masks it with a fresh beta'. Returns Bob's additive share beta.
func NewMessageB(b *big.Int, aliceEK *paillier.PublicKey, msgA *MessageA) (*MessageB, *big.Int, error) {
	if msgA == nil {
		return nil, nil, errors.New("mta: empty message a")
	}
	if err := aliceEK.ValidateCiphertext(msgA.C); err != nil {
		return nil, nil, errors.Wrap(err, "mta: message a ciphertext")
	}
	if !msgA.RangeProof.Verify(aliceEK, msgA.C) {
		return nil, nil, errors.New("mta: message a range proof failed")
	}

	// beta' is sampled below N; k*gamma < q^2 << N keeps the
	// homomorphic sum from wrapping mod N except with negligible
	// probability.
	betaTag, err := rand.Int(rand.Reader, aliceEK.N)
	if err != nil {
		return nil, nil, err
	}

	cBetaTag, _, err := aliceEK.Encrypt(betaTag)
	if err != nil {
		return nil, nil, err
	}

	cB := aliceEK.Add(aliceEK.Mul(msgA.C, b), cBetaTag)

	bProof, err := schnorr.Prove(b)
	if err != nil {
		return nil, nil, err
	}
	betaTagProof, err := schnorr.Prove(new(big.Int).Mod(betaTag, curves.Q()))
	if err != nil {
		return nil, nil, err
	}

	beta := curves.SubScalars(big.NewInt(0), betaTag)
	curves.Zeroize(betaTag)

	return &MessageB{C: cB, BProof: bProof, BetaTagProof: betaTagProof}, beta, nil
}

// VerifyProofsGetAlpha verifies Bob's dlog proofs, decrypts Alice's
// additive share alpha = Dec(c_b) mod q and checks it against the
// proved public points: alpha*G must equal a*B + BetaTag_pk.
func (m *MessageB) VerifyProofsGetAlpha(dk *paillier.PrivateKey, a *big.Int) (*big.Int, error) {
	if m == nil || m.C == nil {
		return nil, errors.New("mta: empty message b")
	}
	if !m.BProof.Verify() || !m.BetaTagProof.Verify() {
		return nil, errors.New("mta: message b dlog proof failed")
	}
	alphaTag, err := dk.Decrypt(m.C)
	if err != nil {
		return nil, errors.Wrap(err, "mta: decrypting message b")
	}
	alpha := new(big.Int).Mod(alphaTag, curves.Q())
	curves.Zeroize(alphaTag)

	gAlpha := curves.ScalarBaseMult(alpha)
	baBetaTag := m.BProof.PK.ScalarMult(a).Add(m.BetaTagProof.PK)
	if !gAlpha.Equal(baBetaTag) {
		return nil, errors.New("mta: decrypted share inconsistent with proved points")
	}
	return alpha, nil
}
