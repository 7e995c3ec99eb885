// Package keygen implements the five-round distributed key generation
// protocol: commit to y_i with a Paillier correct-key proof, reveal,
// distribute Feldman shares over the encrypted channel, publish the
// commitment vectors, and close with Schnorr proofs of knowledge. No
// party ever learns the joint secret x = sum u_i.
package keygen

import (
	"context"
	"encoding/json"
	"math/big"

	bip39 "github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/bus"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/aead"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/paillier"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/vss"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/schnorr"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/hd"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// Result is the material a successful keygen persists.
type Result struct {
	PartyKeys   *Keys
	SharedKeys  *SharedKeys
	PartyIndex  uint16
	VSSVec      []*vss.VerifiableSS
	PaillierPKs []*paillier.PublicKey
	Y           *curves.ECPoint
	ChainCode   []byte
	Mnemonic    string // 24-word backup phrase for u_i; display only
}

// Run executes the DKG for one party. The session must already carry
// the uuid and party number obtained at signup, and params.Parties
// must equal params.ShareCount.
func Run(ctx context.Context, sess *tss.Session, b bus.Bus, params tss.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := params.ShareCount
	self := sess.Number
	log := sess.Log.With(zap.String("protocol", "keygen"), zap.Uint16("party", self))

	keys, err := NewKeys(self)
	if err != nil {
		return nil, err
	}
	kg1, kg2, err := keys.Phase1Broadcast()
	if err != nil {
		return nil, err
	}

	// round 1: commitment to y_i, Paillier key and proof
	kg1Vec := make([]*KG1, n)
	if err := broadcastGather(ctx, b, sess, self, n, "round1", kg1, kg1Vec); err != nil {
		return nil, err
	}
	log.Debug("round 1 complete")

	// round 2: decommitment
	kg2Vec := make([]*KG2, n)
	if err := broadcastGather(ctx, b, sess, self, n, "round2", kg2, kg2Vec); err != nil {
		return nil, err
	}
	if err := VerifyCommitmentsAndKeys(kg1Vec, kg2Vec, self); err != nil {
		return nil, err
	}

	// ECDH-derived pairwise channel keys: (u_i * y_j).x
	encKeys := make(map[uint16][]byte, n-1)
	y := curves.Identity()
	for j := uint16(1); j <= n; j++ {
		yj := kg2Vec[j-1].Yi
		if yj.IsIdentity() {
			return nil, tss.NewError(tss.InvalidKey, "round2", j, nil)
		}
		y = y.Add(yj)
		if j != self {
			encKeys[j] = yj.ScalarMult(keys.Ui).X().Bytes()
		}
	}
	log.Debug("round 2 complete", zap.Int("parties", int(n)))

	// round 3: Feldman shares over the AES-GCM channel
	vssScheme, shares, err := vss.Share(params.Threshold, n, keys.Ui)
	if err != nil {
		return nil, err
	}
	for j := uint16(1); j <= n; j++ {
		if j == self {
			continue
		}
		env, err := aead.Encrypt(encKeys[j], shares[j-1].Bytes())
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(env)
		if err != nil {
			return nil, err
		}
		if err := bus.SendP2P(ctx, b, sess.UUID, self, j, "round3", string(payload)); err != nil {
			return nil, err
		}
	}
	round3, err := bus.GatherP2P(ctx, b, sess.UUID, self, n, "round3")
	if err != nil {
		return nil, err
	}

	partyShares := make([]*big.Int, n)
	slot := 0
	for j := uint16(1); j <= n; j++ {
		if j == self {
			partyShares[j-1] = shares[j-1]
			continue
		}
		var env aead.Envelope
		if err := json.Unmarshal([]byte(round3[slot]), &env); err != nil {
			return nil, tss.NewError(tss.BusError, "round3", j, err)
		}
		partyShares[j-1] = new(big.Int).SetBytes(aead.Decrypt(encKeys[j], &env))
		slot++
	}
	log.Debug("round 3 complete")

	// round 4: commitment vectors, then share validation
	vssVec := make([]*vss.VerifiableSS, n)
	if err := broadcastGather(ctx, b, sess, self, n, "round4", vssScheme, vssVec); err != nil {
		return nil, err
	}
	for j := uint16(1); j <= n; j++ {
		if j == self {
			continue
		}
		if vssVec[j-1] == nil ||
			len(vssVec[j-1].Commitments) != int(params.Threshold)+1 ||
			!vssVec[j-1].Commitments[0].Equal(kg2Vec[j-1].Yi) {
			return nil, tss.NewError(tss.InvalidSS, "round4", j, nil)
		}
		if err := vssVec[j-1].ValidateShare(partyShares[j-1], self); err != nil {
			return nil, tss.NewError(tss.InvalidSS, "round4", j, err)
		}
	}

	xi := big.NewInt(0)
	for j := range partyShares {
		xi = curves.AddScalars(xi, partyShares[j])
	}
	for j := range partyShares {
		if uint16(j+1) != self {
			curves.Zeroize(partyShares[j])
		}
		curves.Zeroize(shares[j])
	}
	log.Debug("round 4 complete")
	sess.Record("keygen", "run", "x_i_commitment", curves.ScalarBaseMult(xi).SerializeCompressed())

	// round 5: Schnorr proof of knowledge of u_i
	proof, err := schnorr.Prove(keys.Ui)
	if err != nil {
		return nil, err
	}
	proofVec := make([]*schnorr.Proof, n)
	if err := broadcastGather(ctx, b, sess, self, n, "round5", proof, proofVec); err != nil {
		return nil, err
	}
	for j := uint16(1); j <= n; j++ {
		if j == self {
			continue
		}
		if !proofVec[j-1].Verify() || !proofVec[j-1].PK.Equal(kg2Vec[j-1].Yi) {
			return nil, tss.NewError(tss.InvalidProof, "round5", j, nil)
		}
	}
	log.Debug("round 5 complete")

	paillierPKs := make([]*paillier.PublicKey, n)
	for j := range kg1Vec {
		paillierPKs[j] = kg1Vec[j].EK
	}

	mnemonic, err := bip39.NewMnemonic(curves.ScalarBytes(keys.Ui))
	if err != nil {
		return nil, err
	}

	res := &Result{
		PartyKeys:   keys,
		SharedKeys:  &SharedKeys{Y: y, Xi: xi},
		PartyIndex:  self,
		VSSVec:      vssVec,
		PaillierPKs: paillierPKs,
		Y:           y,
		ChainCode:   hd.ChainCodeFromPublicKey(y),
		Mnemonic:    mnemonic,
	}
	log.Info("keygen complete")
	return res, nil
}

// broadcastGather publishes own as this party's round message, polls
// the other slots, and fills out (length n, indexed by party number)
// with every party's decoded message, own included.
func broadcastGather[T any](ctx context.Context, b bus.Bus, sess *tss.Session, self, n uint16, round string, own T, out []T) error {
	payload, err := json.Marshal(own)
	if err != nil {
		return err
	}
	if err := bus.Broadcast(ctx, b, sess.UUID, self, round, string(payload)); err != nil {
		return err
	}
	answers, err := bus.GatherBroadcasts(ctx, b, sess.UUID, self, n, round)
	if err != nil {
		return err
	}
	slot := 0
	for j := uint16(1); j <= n; j++ {
		if j == self {
			out[j-1] = own
			continue
		}
		if err := json.Unmarshal([]byte(answers[slot]), &out[j-1]); err != nil {
			return tss.NewError(tss.BusError, round, j, err)
		}
		slot++
	}
	return nil
}
