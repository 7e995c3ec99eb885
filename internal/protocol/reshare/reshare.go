// Package reshare implements the proactive refresh: givers re-share
// their Lagrange-restricted shares w_i = lambda_i * x_i toward the
// receiver set, rotating every party's share and Paillier pair while
// the joint public key and chain code stay fixed. Roles are
// asymmetric per party: give (contribute an old share), hold (keep a
// keystore during the session) and receive (obtain a new share).
package reshare

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"
	bip39 "github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/bus"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/aead"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/paillier"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/vss"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/schnorr"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/keystore"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/protocol/keygen"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// reshareInfo is the round-0 role announcement.
type reshareInfo struct {
	Number  uint16 `json:"party_num"`
	PartyID uint16 `json:"party_id"`
	Give    bool   `json:"if_give"`
	Hold    bool   `json:"if_hold"`
	Receive bool   `json:"if_receive"`
}

// round4Message carries the encrypted share triple from one giver to
// one receiver.
type round4Message struct {
	Share     *aead.Envelope `json:"share"`
	Partition *aead.Envelope `json:"partition"`
	ChainCode *aead.Envelope `json:"chain_code"`
}

// Run executes one resharing session for this party. ks is the
// party's current keystore, nil when it holds nothing. Receivers get
// back the refreshed keystore and the mnemonic of their new u_i;
// everyone else gets nil.
func Run(ctx context.Context, sess *tss.Session, b bus.Bus, params tss.Params, roles tss.Roles, ks *keystore.Keystore) (*keystore.Keystore, string, error) {
	if err := params.ValidateReshare(); err != nil {
		return nil, "", err
	}
	if err := roles.Validate(); err != nil {
		return nil, "", err
	}
	if roles.Give && ks == nil {
		return nil, "", tss.NewError(tss.ParamInvalid, "", 0, errors.New("giving without a keystore"))
	}

	parties := params.Parties
	shareCount := params.ShareCount
	self := sess.Number
	log := sess.Log.With(zap.String("protocol", "reshare"), zap.Uint16("party", self))

	// round 0: announce the role matrix
	partyID := uint16(0)
	if ks != nil {
		partyID = ks.PartyIndex
	}
	own := &reshareInfo{Number: self, PartyID: partyID, Give: roles.Give, Hold: roles.Hold, Receive: roles.Receive}
	payload, err := json.Marshal(own)
	if err != nil {
		return nil, "", err
	}
	if err := bus.Broadcast(ctx, b, sess.UUID, self, "round0", string(payload)); err != nil {
		return nil, "", err
	}
	round0, err := bus.GatherBroadcasts(ctx, b, sess.UUID, 0, parties, "round0")
	if err != nil {
		return nil, "", err
	}

	var givers, giverIDs, holders, receivers []uint16
	for i, raw := range round0 {
		var info reshareInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, "", tss.NewError(tss.BusError, "round0", uint16(i+1), err)
		}
		if info.Give {
			givers = append(givers, info.Number)
			giverIDs = append(giverIDs, info.PartyID-1)
		}
		if info.Hold {
			holders = append(holders, info.Number)
		}
		if info.Receive {
			receivers = append(receivers, info.Number)
		}
	}
	switch {
	case len(givers) <= int(params.Threshold):
		return nil, "", tss.NewError(tss.ParamInvalid, "round0", 0,
			errors.Errorf("need more than %d givers, have %d", params.Threshold, len(givers)))
	case len(holders) > int(shareCount):
		return nil, "", tss.NewError(tss.ParamInvalid, "round0", 0,
			errors.Errorf("%d holders exceed share count %d", len(holders), shareCount))
	case len(receivers) != int(shareCount):
		return nil, "", tss.NewError(tss.ParamInvalid, "round0", 0,
			errors.Errorf("receivers must equal share count %d, got %d", shareCount, len(receivers)))
	}
	log.Debug("role matrix assembled",
		zap.Uint16s("givers", givers), zap.Uint16s("holders", holders), zap.Uint16s("receivers", receivers))

	// Restrict the old share to the giver set; non-givers run the
	// commitment rounds with a throwaway secret.
	var wi *big.Int
	if roles.Give {
		lambda, err := vss.MapShareToNewParams(ks.PartyIndex-1, giverIDs)
		if err != nil {
			return nil, "", tss.NewError(tss.ParamInvalid, "round0", 0, err)
		}
		wi = curves.MulScalars(lambda, ks.SharedKeys.Xi)
	} else {
		if wi, err = curves.NewScalar(); err != nil {
			return nil, "", err
		}
	}
	defer curves.Zeroize(wi)

	wPartition, err := scalarSplit(wi, shareCount)
	if err != nil {
		return nil, "", err
	}
	defer zeroizeAll(wPartition)

	wKeys, err := keygen.NewKeysFromSecret(wi, self)
	if err != nil {
		return nil, "", err
	}
	kg1, kg2, err := wKeys.Phase1Broadcast()
	if err != nil {
		return nil, "", err
	}

	// round 1: commitment to g^{w_i}, fresh Paillier key and proof
	kg1Vec := make([]*keygen.KG1, parties)
	if err := broadcastGather(ctx, b, sess, self, parties, "round1", kg1, kg1Vec); err != nil {
		return nil, "", err
	}

	// round 2: decommitment; gather every slot, own included
	if err := bus.Broadcast(ctx, b, sess.UUID, self, "round2", mustJSON(kg2)); err != nil {
		return nil, "", err
	}
	round2, err := bus.GatherBroadcasts(ctx, b, sess.UUID, 0, parties, "round2")
	if err != nil {
		return nil, "", err
	}
	kg2Vec := make([]*keygen.KG2, parties)
	encKeys := make(map[uint16][]byte, parties)
	for i, raw := range round2 {
		var decom keygen.KG2
		if err := json.Unmarshal([]byte(raw), &decom); err != nil {
			return nil, "", tss.NewError(tss.BusError, "round2", uint16(i+1), err)
		}
		kg2Vec[i] = &decom
		if decom.Yi.IsIdentity() {
			return nil, "", tss.NewError(tss.InvalidKey, "round2", uint16(i+1), nil)
		}
		encKeys[uint16(i+1)] = decom.Yi.ScalarMult(wKeys.Ui).X().Bytes()
	}
	if err := keygen.VerifyCommitmentsAndKeys(kg1Vec, kg2Vec, 0); err != nil {
		return nil, "", err
	}

	// The givers' decommitted points must re-assemble the joint key.
	ySum := curves.Identity()
	for _, g := range givers {
		ySum = ySum.Add(kg2Vec[g-1].Yi)
	}
	if roles.Give && !ySum.Equal(ks.Y) {
		return nil, "", tss.NewError(tss.InvalidKey, "round2", 0,
			errors.New("giver contributions do not match the joint key"))
	}
	log.Debug("round 2 complete")

	// round 3: givers publish their re-sharing commitment vectors,
	// numbered by position within the giver set
	vssW, wShares, err := vss.Share(params.Threshold, shareCount, wi)
	if err != nil {
		return nil, "", err
	}
	defer zeroizeAll(wShares)
	posGive := position(givers, self)
	if roles.Give {
		if err := bus.Broadcast(ctx, b, sess.UUID, uint16(posGive+1), "round3", mustJSON(vssW)); err != nil {
			return nil, "", err
		}
	}
	round3, err := bus.GatherBroadcasts(ctx, b, sess.UUID, 0, uint16(len(givers)), "round3")
	if err != nil {
		return nil, "", err
	}
	vssVec := make([]*vss.VerifiableSS, 0, shareCount)
	for i, raw := range round3 {
		var v vss.VerifiableSS
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, "", tss.NewError(tss.BusError, "round3", uint16(i+1), err)
		}
		vssVec = append(vssVec, &v)
	}
	for len(vssVec) < int(shareCount) {
		vssVec = append(vssVec, vss.Zero(params.Threshold, shareCount))
	}

	// round 4: encrypted triples (share, partition, chain code) from
	// giver position to receiver bus number
	if roles.Give {
		for r, receiver := range receivers {
			key := encKeys[receiver]
			shareEnv, err := aead.Encrypt(key, wShares[r].Bytes())
			if err != nil {
				return nil, "", err
			}
			partEnv, err := aead.Encrypt(key, wPartition[r].Bytes())
			if err != nil {
				return nil, "", err
			}
			ccEnv, err := aead.Encrypt(key, ks.ChainCode)
			if err != nil {
				return nil, "", err
			}
			msg := &round4Message{Share: shareEnv, Partition: partEnv, ChainCode: ccEnv}
			if err := bus.SendP2P(ctx, b, sess.UUID, uint16(posGive+1), receiver, "round4", mustJSON(msg)); err != nil {
				return nil, "", err
			}
		}
	}

	if !roles.Receive {
		log.Info("reshare complete (no share received)")
		return nil, "", nil
	}

	round4, err := bus.GatherP2PAll(ctx, b, sess.UUID, self, uint16(len(givers)), "round4")
	if err != nil {
		return nil, "", err
	}

	partyShares := make([]*big.Int, len(givers))
	partitionShares := make([]*big.Int, len(givers))
	var chainCode []byte
	for i := range round4 {
		var msg round4Message
		if err := json.Unmarshal([]byte(round4[i]), &msg); err != nil {
			return nil, "", tss.NewError(tss.BusError, "round4", givers[i], err)
		}
		key := encKeys[givers[i]]
		partyShares[i] = new(big.Int).SetBytes(aead.Decrypt(key, msg.Share))
		partitionShares[i] = new(big.Int).SetBytes(aead.Decrypt(key, msg.Partition))
		cc := aead.Decrypt(key, msg.ChainCode)
		if chainCode == nil {
			chainCode = cc
		} else if !bytes.Equal(chainCode, cc) {
			return nil, "", tss.NewError(tss.InvalidKey, "round4", givers[i],
				errors.New("received chain codes differ"))
		}
	}
	defer zeroizeAll(partyShares)
	defer zeroizeAll(partitionShares)
	if ks != nil && !bytes.Equal(chainCode, ks.ChainCode) {
		return nil, "", tss.NewError(tss.InvalidKey, "round4", 0,
			errors.New("chain code does not match the held keystore"))
	}

	// New share: x'_j = sum of giver sub-shares at this receiver's
	// evaluation point; validate each against its giver's vector.
	posRec := position(receivers, self)
	newIndex := uint16(posRec + 1)
	for i := range partyShares {
		if err := vssVec[i].ValidateShare(partyShares[i], newIndex); err != nil {
			return nil, "", tss.NewError(tss.InvalidSS, "round4", givers[i], err)
		}
	}

	xi := big.NewInt(0)
	for _, s := range partyShares {
		xi = curves.AddScalars(xi, s)
	}
	ui := big.NewInt(0)
	for _, s := range partitionShares {
		ui = curves.AddScalars(ui, s)
	}
	log.Debug("round 4 complete", zap.Uint16("new_index", newIndex))

	// round 5: Schnorr proof for the refreshed share, numbered by
	// receiver position
	proof, err := schnorr.Prove(xi)
	if err != nil {
		return nil, "", err
	}
	if err := bus.Broadcast(ctx, b, sess.UUID, newIndex, "round5", mustJSON(proof)); err != nil {
		return nil, "", err
	}
	round5, err := bus.GatherBroadcasts(ctx, b, sess.UUID, 0, shareCount, "round5")
	if err != nil {
		return nil, "", err
	}
	for i, raw := range round5 {
		var p schnorr.Proof
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, "", tss.NewError(tss.BusError, "round5", uint16(i+1), err)
		}
		if !p.Verify() {
			return nil, "", tss.NewError(tss.InvalidProof, "round5", uint16(i+1), nil)
		}
	}
	log.Debug("round 5 complete")

	// Rotate this party's key material: the additive contribution is
	// the summed partition, the Paillier pair is the one committed in
	// round 1 of this session.
	newKeys := &keygen.Keys{
		Ui:         ui,
		Yi:         curves.ScalarBaseMult(ui),
		DK:         wKeys.DK,
		EK:         wKeys.EK,
		PartyIndex: newIndex,
	}
	paillierPKs := make([]*paillier.PublicKey, len(receivers))
	for r, receiver := range receivers {
		paillierPKs[r] = kg1Vec[receiver-1].EK
	}

	mnemonic, err := bip39.NewMnemonic(curves.ScalarBytes(ui))
	if err != nil {
		return nil, "", err
	}

	out := &keystore.Keystore{
		PartyKeys:   newKeys,
		SharedKeys:  &keygen.SharedKeys{Y: ySum, Xi: xi},
		PartyIndex:  newIndex,
		VSSVec:      vssVec,
		PaillierPKs: paillierPKs,
		Y:           ySum,
		ChainCode:   chainCode,
	}
	log.Info("reshare complete", zap.Uint16("new_index", newIndex))
	return out, mnemonic, nil
}

// scalarSplit decomposes a scalar into count uniformly random addends.
func scalarSplit(x *big.Int, count uint16) ([]*big.Int, error) {
	parts := make([]*big.Int, count)
	sum := big.NewInt(0)
	for i := uint16(0); i < count-1; i++ {
		p, err := curves.NewScalar()
		if err != nil {
			return nil, err
		}
		parts[i] = p
		sum = curves.AddScalars(sum, p)
	}
	parts[count-1] = curves.SubScalars(x, sum)
	return parts, nil
}

func position(xs []uint16, x uint16) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// broadcastGather publishes own and fills out with every party's
// decoded message, indexed by bus number.
func broadcastGather[T any](ctx context.Context, b bus.Bus, sess *tss.Session, self, n uint16, round string, own T, out []T) error {
	if err := bus.Broadcast(ctx, b, sess.UUID, self, round, mustJSON(own)); err != nil {
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

func zeroizeAll(xs []*big.Int) {
	for _, x := range xs {
		curves.Zeroize(x)
	}
}
