package sign

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/commitment"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/elgamal"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/schnorr"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// LocalSignature carries one signer's Phase-5 state: the partial
// signature s_i = m*k_i + r*sigma_i and the blinding pair (l_i,
// rho_i) behind the consistency checks.
type LocalSignature struct {
	LI   *big.Int
	RhoI *big.Int
	R    *curves.ECPoint
	SI   *big.Int
	M    *big.Int
	Y    *curves.ECPoint
}

// NewLocalSignature computes s_i and samples the Phase-5 blindings.
func NewLocalSignature(ki, m *big.Int, r *curves.ECPoint, sigmaI *big.Int, y *curves.ECPoint) (*LocalSignature, error) {
	rScalar := new(big.Int).Mod(r.X(), curves.Q())
	si := curves.AddScalars(
		curves.MulScalars(new(big.Int).Mod(m, curves.Q()), ki),
		curves.MulScalars(rScalar, sigmaI),
	)

	li, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}
	rhoi, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}

	return &LocalSignature{LI: li, RhoI: rhoi, R: r, SI: si, M: m, Y: y}, nil
}

// Zeroize clears the partial signature state.
func (l *LocalSignature) Zeroize() {
	curves.Zeroize(l.LI)
	curves.Zeroize(l.RhoI)
	curves.Zeroize(l.SI)
}

// Phase5Com1 commits to (V_i, A_i, B_i).
type Phase5Com1 struct {
	Com []byte `json:"com"`
}

// Phase5ADecom1 opens the phase-5A commitment.
type Phase5ADecom1 struct {
	VI    *curves.ECPoint `json:"V_i"`
	AI    *curves.ECPoint `json:"A_i"`
	BI    *curves.ECPoint `json:"B_i"`
	Blind []byte          `json:"blind_factor"`
}

// Phase5Com2 commits to (U_i, T_i).
type Phase5Com2 struct {
	Com []byte `json:"com"`
}

// Phase5DDecom2 opens the phase-5C commitment.
type Phase5DDecom2 struct {
	UI    *curves.ECPoint `json:"u_i"`
	TI    *curves.ECPoint `json:"t_i"`
	Blind []byte          `json:"blind_factor"`
}

func phase5aPayload(v, a, b *curves.ECPoint) []byte {
	return commitment.Concat(v.SerializeCompressed(), a.SerializeCompressed(), b.SerializeCompressed())
}

func phase5cPayload(u, t *curves.ECPoint) []byte {
	return commitment.Concat(u.SerializeCompressed(), t.SerializeCompressed())
}

// Phase5ABroadcast builds the first Phase-5 message: a commitment to
// V_i = s_i*R + l_i*G, A_i = rho_i*G, B_i = l_i*rho_i*G, together
// with the homomorphic-ElGamal proof that V_i is well formed and a
// dlog proof for rho_i.
func (l *LocalSignature) Phase5ABroadcast() (*Phase5Com1, *Phase5ADecom1, *elgamal.Proof, *schnorr.Proof, error) {
	vi := l.R.ScalarMult(l.SI).Add(curves.ScalarBaseMult(l.LI))
	ai := curves.ScalarBaseMult(l.RhoI)
	bi := curves.ScalarBaseMult(curves.MulScalars(l.LI, l.RhoI))

	com, err := commitment.New(phase5aPayload(vi, ai, bi))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	proof, err := elgamal.Prove(
		&elgamal.Witness{X: l.SI, R: l.LI},
		&elgamal.Statement{G: ai, H: l.R, Y: curves.Generator(), D: vi, E: bi},
	)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	dlogRho, err := schnorr.Prove(l.RhoI)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return &Phase5Com1{Com: com.C},
		&Phase5ADecom1{VI: vi, AI: ai, BI: bi, Blind: com.Blind},
		proof, dlogRho, nil
}

// Phase5C verifies the peers' 5A decommitments and proofs, then folds
// V = sum V_j - m*G - r*y and A = sum_{j != i} A_j into this party's
// check values U_i = rho_i*V and T_i = l_i*A, committing to them for
// the next sub-phase. vi is this party's own V_i.
func (l *LocalSignature) Phase5C(decoms []*Phase5ADecom1, coms []*Phase5Com1, proofs []*elgamal.Proof, dlogRhos []*schnorr.Proof, vi *curves.ECPoint) (*Phase5Com2, *Phase5DDecom2, error) {
	if len(decoms) != len(coms) || len(decoms) != len(proofs) || len(decoms) != len(dlogRhos) {
		return nil, nil, errors.New("sign: phase 5C length mismatch")
	}

	g := curves.Generator()
	for i := range decoms {
		d := decoms[i]
		if d == nil || coms[i] == nil {
			return nil, nil, tss.NewError(tss.InvalidSig, "round6", 0,
				errors.New("missing phase 5A message"))
		}
		if !commitment.Verify(coms[i].Com, d.Blind, phase5aPayload(d.VI, d.AI, d.BI)) {
			return nil, nil, tss.NewError(tss.InvalidSig, "round6", 0,
				errors.New("phase 5A commitment does not open"))
		}
		st := &elgamal.Statement{G: d.AI, H: l.R, Y: g, D: d.VI, E: d.BI}
		if !proofs[i].Verify(st) {
			return nil, nil, tss.NewError(tss.InvalidProof, "round6", 0,
				errors.New("phase 5B elgamal proof failed"))
		}
		if !dlogRhos[i].Verify() || !dlogRhos[i].PK.Equal(d.AI) {
			return nil, nil, tss.NewError(tss.InvalidProof, "round6", 0,
				errors.New("phase 5B rho dlog proof failed"))
		}
	}

	v := vi
	a := curves.Identity()
	for _, d := range decoms {
		v = v.Add(d.VI)
		a = a.Add(d.AI)
	}

	rScalar := new(big.Int).Mod(l.R.X(), curves.Q())
	mg := curves.ScalarBaseMult(new(big.Int).Mod(l.M, curves.Q()))
	yr := l.Y.ScalarMult(rScalar)
	v = v.Sub(mg).Sub(yr)

	ui := v.ScalarMult(l.RhoI)
	ti := a.ScalarMult(l.LI)

	com, err := commitment.New(phase5cPayload(ui, ti))
	if err != nil {
		return nil, nil, err
	}
	return &Phase5Com2{Com: com.C},
		&Phase5DDecom2{UI: ui, TI: ti, Blind: com.Blind}, nil
}

// Phase5D opens every party's (U_i, T_i) and checks the global
// consistency equation G + sum(T_i + B_i) - sum(U_i) == G; only then
// is s_i released. The slices include this party's own messages.
func (l *LocalSignature) Phase5D(decom2s []*Phase5DDecom2, com2s []*Phase5Com2, decom1s []*Phase5ADecom1) (*big.Int, error) {
	if len(decom2s) != len(com2s) || len(decom2s) != len(decom1s) {
		return nil, errors.New("sign: phase 5D length mismatch")
	}

	for i := range decom2s {
		if decom2s[i] == nil || com2s[i] == nil || decom1s[i] == nil {
			return nil, tss.NewError(tss.InvalidSig, "round8", 0,
				errors.New("missing phase 5D message"))
		}
		if !commitment.Verify(com2s[i].Com, decom2s[i].Blind, phase5cPayload(decom2s[i].UI, decom2s[i].TI)) {
			return nil, tss.NewError(tss.InvalidSig, "round8", 0,
				errors.New("phase 5C commitment does not open"))
		}
	}

	g := curves.Generator()
	acc := g
	for i := range decom2s {
		acc = acc.Add(decom2s[i].TI).Add(decom1s[i].BI)
	}
	for i := range decom2s {
		acc = acc.Sub(decom2s[i].UI)
	}
	if !acc.Equal(g) {
		return nil, tss.NewError(tss.InvalidSig, "round8", 0,
			errors.New("phase 5 consistency check failed"))
	}

	return l.SI, nil
}

// SignatureRecid is the assembled signature with its recovery id:
// bit 0 is the parity of R.y, bit 1 flags R.x overflowing the group
// order.
type SignatureRecid struct {
	R     *big.Int `json:"r"`
	S     *big.Int `json:"s"`
	Recid uint8    `json:"recid"`
}

// OutputSignature folds the revealed s_j into s = sum s_i, applies
// low-s canonicalization, derives the recovery id and verifies the
// result under y before releasing it.
func (l *LocalSignature) OutputSignature(sOthers []*big.Int) (*SignatureRecid, error) {
	s := new(big.Int).Set(l.SI)
	for _, sj := range sOthers {
		s = curves.AddScalars(s, sj)
	}

	q := curves.Q()
	rx := l.R.X()
	r := new(big.Int).Mod(rx, q)

	recid := uint8(l.R.Y().Bit(0))
	if rx.Cmp(q) >= 0 {
		recid |= 2
	}

	// BIP-62 low-s: flip s and the parity bit together.
	sNeg := new(big.Int).Sub(q, s)
	if s.Cmp(sNeg) > 0 {
		s = sNeg
		recid ^= 1
	}

	sig := &SignatureRecid{R: r, S: s, Recid: recid}
	if err := verifySignature(sig, l.M, l.Y); err != nil {
		return nil, tss.NewError(tss.InvalidSig, "round9", 0, err)
	}
	return sig, nil
}

// verifySignature checks s^-1*(m*G + r*y) has x coordinate r mod q.
func verifySignature(sig *SignatureRecid, m *big.Int, y *curves.ECPoint) error {
	pub, err := btcec.ParsePubKey(y.SerializeCompressed())
	if err != nil {
		return errors.Wrap(err, "sign: parsing public key")
	}

	var rs, ss btcec.ModNScalar
	if overflow := rs.SetByteSlice(curves.ScalarBytes(sig.R)); overflow {
		return errors.New("sign: r overflows group order")
	}
	if overflow := ss.SetByteSlice(curves.ScalarBytes(sig.S)); overflow {
		return errors.New("sign: s overflows group order")
	}

	var digest [32]byte
	new(big.Int).Mod(m, new(big.Int).Lsh(big.NewInt(1), 256)).FillBytes(digest[:])

	if !btcecdsa.NewSignature(&rs, &ss).Verify(digest[:], pub) {
		return errors.New("sign: signature does not verify")
	}
	return nil
}
