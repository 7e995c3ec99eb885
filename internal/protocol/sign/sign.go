// Package sign implements the nine-round GG18 threshold signing
// protocol on top of a persisted keystore: signer-set discovery,
// MtA/MtAwc share conversion under Paillier, nonce assembly through
// commit/decommit, the Phase-5 consistency proofs, and low-s
// signature assembly with a recovery id. An optional HD tweak shifts
// the joint key to a derived child without touching the keystore.
package sign

import (
	"context"
	"encoding/json"
	"math/big"

	"go.uber.org/zap"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/bus"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/mta"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/vss"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/elgamal"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/schnorr"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/keystore"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// round1Message pairs the gamma commitment with the MtA opener.
type round1Message struct {
	Com      *SignBroadcastPhase1 `json:"com"`
	MessageA *mta.MessageA        `json:"m_a_k"`
}

// round2Message carries both MessageB conversions of one pair.
type round2Message struct {
	MBGamma *mta.MessageB `json:"m_b_gamma"`
	MBW     *mta.MessageB `json:"m_b_w"`
}

// round3Message publishes delta_i.
type round3Message struct {
	DeltaI *big.Int `json:"delta_i"`
}

// round6Message bundles the 5A decommitment with its proofs.
type round6Message struct {
	Decom   *Phase5ADecom1 `json:"phase_5a_decom"`
	ElGamal *elgamal.Proof `json:"helgamal_proof"`
	DlogRho *schnorr.Proof `json:"dlog_proof_rho"`
}

// round9Message reveals s_i.
type round9Message struct {
	SI *big.Int `json:"s_i"`
}

// Run executes one signing session. params.Parties is the signer
// count t'; message is the (already hashed) 32-byte message; tweak is
// the accumulated HD tweak, zero or nil for the root key. The
// returned signature verifies under y + tweak*G.
func Run(ctx context.Context, sess *tss.Session, b bus.Bus, params tss.Params, ks *keystore.Keystore, message []byte, tweak *big.Int) (*SignatureRecid, *curves.ECPoint, error) {
	if err := params.ValidateSign(); err != nil {
		return nil, nil, err
	}
	signerCount := params.Parties
	self := sess.Number
	log := sess.Log.With(zap.String("protocol", "sign"), zap.Uint16("party", self))

	if tweak == nil {
		tweak = big.NewInt(0)
	}

	// round 0: exchange evaluation indices to learn who is signing
	signers, err := gatherSigners(ctx, b, sess, self, signerCount, ks.PartyIndex)
	if err != nil {
		return nil, nil, err
	}
	ownIndex := signers[self-1]
	log.Debug("signer set assembled", zap.Uint16s("signers", signers))

	// Apply the HD tweak: shift the first signer's published constant
	// commitment by tweak*G and every signer's share by tweak, so the
	// aggregate secret becomes x + tweak. The keystore stays at the
	// root key; every sign call reapplies the tweak fresh.
	vssVec := make([]*vss.VerifiableSS, len(ks.VSSVec))
	copy(vssVec, ks.VSSVec)
	first := signers[0]
	vssVec[first] = &vss.VerifiableSS{
		Parameters:  vssVec[first].Parameters,
		Commitments: append([]*curves.ECPoint(nil), vssVec[first].Commitments...),
	}
	vssVec[first].Commitments[0] = vssVec[first].Commitments[0].Add(curves.ScalarBaseMult(tweak))
	xi := curves.AddScalars(ks.SharedKeys.Xi, tweak)
	defer curves.Zeroize(xi)
	y := ks.Y.Add(curves.ScalarBaseMult(tweak))

	signKeys, err := NewSignKeys(xi, ownIndex, signers)
	if err != nil {
		return nil, nil, err
	}
	defer signKeys.Zeroize()

	com, decommit, err := signKeys.Phase1Broadcast()
	if err != nil {
		return nil, nil, err
	}
	msgA, rA, err := mta.NewMessageA(signKeys.KI, ks.PartyKeys.EK)
	if err != nil {
		return nil, nil, err
	}
	defer curves.Zeroize(rA)

	// round 1: gamma commitment + MessageA
	round1Vec := make([]*round1Message, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round1",
		&round1Message{Com: com, MessageA: msgA}, round1Vec); err != nil {
		return nil, nil, err
	}
	bc1Vec := make([]*SignBroadcastPhase1, signerCount)
	maVec := make([]*mta.MessageA, 0, signerCount-1)
	for j := uint16(1); j <= signerCount; j++ {
		if round1Vec[j-1] == nil || round1Vec[j-1].Com == nil {
			return nil, nil, tss.NewError(tss.BusError, "round1", j, nil)
		}
		bc1Vec[j-1] = round1Vec[j-1].Com
		if j != self {
			maVec = append(maVec, round1Vec[j-1].MessageA)
		}
	}
	log.Debug("round 1 complete")

	// round 2: MessageB pairs, peer by peer
	betas := make([]*big.Int, 0, signerCount-1)
	nus := make([]*big.Int, 0, signerCount-1)
	slot := 0
	for j := uint16(1); j <= signerCount; j++ {
		if j == self {
			continue
		}
		peerEK := ks.PaillierPKs[signers[j-1]]
		mbGamma, beta, err := mta.NewMessageB(signKeys.GammaI, peerEK, maVec[slot])
		if err != nil {
			return nil, nil, tss.NewError(tss.InvalidProof, "round2", j, err)
		}
		mbW, nu, err := mta.NewMessageB(signKeys.WI, peerEK, maVec[slot])
		if err != nil {
			return nil, nil, tss.NewError(tss.InvalidProof, "round2", j, err)
		}
		betas = append(betas, beta)
		nus = append(nus, nu)

		payload, err := json.Marshal(&round2Message{MBGamma: mbGamma, MBW: mbW})
		if err != nil {
			return nil, nil, err
		}
		if err := bus.SendP2P(ctx, b, sess.UUID, self, j, "round2", string(payload)); err != nil {
			return nil, nil, err
		}
		slot++
	}
	defer zeroizeAll(betas)
	defer zeroizeAll(nus)

	round2Raw, err := bus.GatherP2P(ctx, b, sess.UUID, self, signerCount, "round2")
	if err != nil {
		return nil, nil, err
	}

	// MtA (e)/(f): decrypt shares, check every bound g_w_j
	xiComVec := CommitmentsToXi(vssVec)
	alphas := make([]*big.Int, 0, signerCount-1)
	mus := make([]*big.Int, 0, signerCount-1)
	bGammaProofs := make([]*schnorr.Proof, 0, signerCount-1)
	slot = 0
	for j := uint16(1); j <= signerCount; j++ {
		if j == self {
			continue
		}
		var msg round2Message
		if err := json.Unmarshal([]byte(round2Raw[slot]), &msg); err != nil {
			return nil, nil, tss.NewError(tss.BusError, "round2", j, err)
		}
		alpha, err := msg.MBGamma.VerifyProofsGetAlpha(ks.PartyKeys.DK, signKeys.KI)
		if err != nil {
			return nil, nil, tss.NewError(tss.InvalidProof, "round2", j, err)
		}
		mu, err := msg.MBW.VerifyProofsGetAlpha(ks.PartyKeys.DK, signKeys.KI)
		if err != nil {
			return nil, nil, tss.NewError(tss.InvalidProof, "round2", j, err)
		}

		gWj, err := UpdateCommitmentsToXi(xiComVec[signers[j-1]], signers[j-1], signers)
		if err != nil {
			return nil, nil, err
		}
		if !msg.MBW.BProof.PK.Equal(gWj) {
			return nil, nil, tss.NewError(tss.InvalidProof, "round2", j,
				nil)
		}

		alphas = append(alphas, alpha)
		mus = append(mus, mu)
		bGammaProofs = append(bGammaProofs, msg.MBGamma.BProof)
		slot++
	}
	defer zeroizeAll(alphas)
	defer zeroizeAll(mus)
	log.Debug("round 2 complete")

	deltaI := signKeys.Phase2DeltaI(alphas, betas)
	sigmaI := signKeys.Phase2SigmaI(mus, nus)
	defer curves.Zeroize(sigmaI)

	// round 3: publish delta_i, reconstruct delta^-1
	round3Vec := make([]*round3Message, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round3",
		&round3Message{DeltaI: deltaI}, round3Vec); err != nil {
		return nil, nil, err
	}
	deltas := make([]*big.Int, signerCount)
	for j := range round3Vec {
		if round3Vec[j] == nil || round3Vec[j].DeltaI == nil {
			return nil, nil, tss.NewError(tss.BusError, "round3", uint16(j+1), nil)
		}
		deltas[j] = round3Vec[j].DeltaI
	}
	deltaInv, err := Phase3ReconstructDelta(deltas)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("round 3 complete")

	// round 4: decommit gamma_i*G, assemble R = k^-1 * G
	decommitVec := make([]*SignDecommitPhase1, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round4", decommit, decommitVec); err != nil {
		return nil, nil, err
	}
	peerDecommits := make([]*SignDecommitPhase1, 0, signerCount-1)
	peerComs := make([]*SignBroadcastPhase1, 0, signerCount-1)
	for j := uint16(1); j <= signerCount; j++ {
		if j == self {
			continue
		}
		peerDecommits = append(peerDecommits, decommitVec[j-1])
		peerComs = append(peerComs, bc1Vec[j-1])
	}
	r, err := Phase4(deltaInv, bGammaProofs, peerDecommits, peerComs)
	if err != nil {
		return nil, nil, err
	}
	r = r.Add(decommit.GGammaI.ScalarMult(deltaInv))
	log.Debug("round 4 complete")
	sess.Record("sign", "run", "R", r.SerializeCompressed())

	m := new(big.Int).SetBytes(message)
	m.Mod(m, new(big.Int).Lsh(big.NewInt(1), 256))

	localSig, err := NewLocalSignature(signKeys.KI, m, r, sigmaI, y)
	if err != nil {
		return nil, nil, err
	}
	defer localSig.Zeroize()

	com5a, decom5a, elgamalProof, dlogRho, err := localSig.Phase5ABroadcast()
	if err != nil {
		return nil, nil, err
	}

	// round 5: Phase 5A commitments
	com5aVec := make([]*Phase5Com1, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round5", com5a, com5aVec); err != nil {
		return nil, nil, err
	}

	// round 6: Phase 5B decommitments and proofs
	round6Vec := make([]*round6Message, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round6",
		&round6Message{Decom: decom5a, ElGamal: elgamalProof, DlogRho: dlogRho}, round6Vec); err != nil {
		return nil, nil, err
	}
	allDecom5a := make([]*Phase5ADecom1, signerCount)
	peerDecom5a := make([]*Phase5ADecom1, 0, signerCount-1)
	peerCom5a := make([]*Phase5Com1, 0, signerCount-1)
	peerElGamal := make([]*elgamal.Proof, 0, signerCount-1)
	peerDlogRho := make([]*schnorr.Proof, 0, signerCount-1)
	for j := uint16(1); j <= signerCount; j++ {
		if round6Vec[j-1] == nil || round6Vec[j-1].Decom == nil {
			return nil, nil, tss.NewError(tss.BusError, "round6", j, nil)
		}
		allDecom5a[j-1] = round6Vec[j-1].Decom
		if j == self {
			continue
		}
		peerDecom5a = append(peerDecom5a, round6Vec[j-1].Decom)
		peerCom5a = append(peerCom5a, com5aVec[j-1])
		peerElGamal = append(peerElGamal, round6Vec[j-1].ElGamal)
		peerDlogRho = append(peerDlogRho, round6Vec[j-1].DlogRho)
	}

	com5c, decom5d, err := localSig.Phase5C(peerDecom5a, peerCom5a, peerElGamal, peerDlogRho, decom5a.VI)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("phase 5C complete")

	// round 7: Phase 5C commitments
	com5cVec := make([]*Phase5Com2, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round7", com5c, com5cVec); err != nil {
		return nil, nil, err
	}

	// round 8: Phase 5D decommitments and the consistency check
	decom5dVec := make([]*Phase5DDecom2, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round8", decom5d, decom5dVec); err != nil {
		return nil, nil, err
	}
	si, err := localSig.Phase5D(decom5dVec, com5cVec, allDecom5a)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("phase 5D complete")

	// round 9: reveal s_i and assemble
	round9Vec := make([]*round9Message, signerCount)
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round9",
		&round9Message{SI: si}, round9Vec); err != nil {
		return nil, nil, err
	}
	sOthers := make([]*big.Int, 0, signerCount-1)
	for j := uint16(1); j <= signerCount; j++ {
		if j == self {
			continue
		}
		if round9Vec[j-1] == nil || round9Vec[j-1].SI == nil {
			return nil, nil, tss.NewError(tss.BusError, "round9", j, nil)
		}
		sOthers = append(sOthers, round9Vec[j-1].SI)
	}

	sig, err := localSig.OutputSignature(sOthers)
	if err != nil {
		return nil, nil, err
	}
	log.Info("signature assembled", zap.Uint8("recid", sig.Recid))
	return sig, y, nil
}

// gatherSigners runs round 0: every signer broadcasts its Shamir
// evaluation index; the result is the 0-based signer set ordered by
// bus number.
func gatherSigners(ctx context.Context, b bus.Bus, sess *tss.Session, self, signerCount, partyIndex uint16) ([]uint16, error) {
	indexVec := make([]*uint16, signerCount)
	own := partyIndex
	if err := broadcastGather(ctx, b, sess, self, signerCount, "round0", &own, indexVec); err != nil {
		return nil, err
	}
	signers := make([]uint16, signerCount)
	seen := make(map[uint16]bool, signerCount)
	for j := range indexVec {
		if indexVec[j] == nil || *indexVec[j] == 0 {
			return nil, tss.NewError(tss.ParamInvalid, "round0", uint16(j+1), nil)
		}
		idx := *indexVec[j] - 1
		if seen[idx] {
			return nil, tss.NewError(tss.ParamInvalid, "round0", uint16(j+1), nil)
		}
		seen[idx] = true
		signers[j] = idx
	}
	return signers, nil
}

// broadcastGather publishes own under this party's slot and fills out
// (indexed by bus number) with every signer's decoded message.
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

func zeroizeAll(xs []*big.Int) {
	for _, x := range xs {
		curves.Zeroize(x)
	}
}
