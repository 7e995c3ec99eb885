package sign

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/commitment"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/vss"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/zk/schnorr"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// SignKeys holds one signer's ephemeral secrets: the Lagrange-mapped
// share w_i and the nonce pair (k_i, gamma_i). All of it is zeroized
// when the session ends.
type SignKeys struct {
	WI      *big.Int
	GWI     *curves.ECPoint
	KI      *big.Int
	GammaI  *big.Int
	GGammaI *curves.ECPoint
}

// NewSignKeys maps the (t,n) share xi into the additive share
// w_i = lambda_i * x_i for the signer set and samples the nonces.
// index is the 0-based evaluation index; signers lists the 0-based
// indices of the whole signer set.
func NewSignKeys(xi *big.Int, index uint16, signers []uint16) (*SignKeys, error) {
	lambda, err := vss.MapShareToNewParams(index, signers)
	if err != nil {
		return nil, err
	}
	w := curves.MulScalars(lambda, xi)

	k, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}
	gamma, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}

	return &SignKeys{
		WI:      w,
		GWI:     curves.ScalarBaseMult(w),
		KI:      k,
		GammaI:  gamma,
		GGammaI: curves.ScalarBaseMult(gamma),
	}, nil
}

// Zeroize clears the ephemeral scalars.
func (s *SignKeys) Zeroize() {
	curves.Zeroize(s.WI)
	curves.Zeroize(s.KI)
	curves.Zeroize(s.GammaI)
}

// SignBroadcastPhase1 is the round-1 commitment to gamma_i * G.
type SignBroadcastPhase1 struct {
	Com []byte `json:"com"`
}

// SignDecommitPhase1 opens the phase-1 commitment in round 4.
type SignDecommitPhase1 struct {
	Blind   []byte          `json:"blind_factor"`
	GGammaI *curves.ECPoint `json:"g_gamma_i"`
}

// Phase1Broadcast commits to gamma_i * G.
func (s *SignKeys) Phase1Broadcast() (*SignBroadcastPhase1, *SignDecommitPhase1, error) {
	com, err := commitment.New(s.GGammaI.SerializeCompressed())
	if err != nil {
		return nil, nil, err
	}
	return &SignBroadcastPhase1{Com: com.C},
		&SignDecommitPhase1{Blind: com.Blind, GGammaI: s.GGammaI}, nil
}

// Phase2DeltaI folds the gamma-side MtA outputs:
// delta_i = k_i*gamma_i + sum(alpha_ij) + sum(beta_ji).
func (s *SignKeys) Phase2DeltaI(alphas, betas []*big.Int) *big.Int {
	delta := curves.MulScalars(s.KI, s.GammaI)
	for i := range alphas {
		delta = curves.AddScalars(delta, alphas[i])
		delta = curves.AddScalars(delta, betas[i])
	}
	return delta
}

// Phase2SigmaI folds the w-side MtA outputs:
// sigma_i = k_i*w_i + sum(mu_ij) + sum(nu_ji).
func (s *SignKeys) Phase2SigmaI(mus, nus []*big.Int) *big.Int {
	sigma := curves.MulScalars(s.KI, s.WI)
	for i := range mus {
		sigma = curves.AddScalars(sigma, mus[i])
		sigma = curves.AddScalars(sigma, nus[i])
	}
	return sigma
}

// Phase3ReconstructDelta sums the published delta_i and inverts:
// delta^-1 = (k * gamma)^-1 mod q.
func Phase3ReconstructDelta(deltas []*big.Int) (*big.Int, error) {
	sum := big.NewInt(0)
	for _, d := range deltas {
		sum = curves.AddScalars(sum, d)
	}
	inv, err := curves.InvScalar(sum)
	if err != nil {
		return nil, tss.NewError(tss.InvalidSig, "round3", 0, errors.New("delta sum not invertible"))
	}
	return inv, nil
}

// Phase4 validates the peers' decommitments against their phase-1
// commitments and the gamma dlog proofs from the MtA exchange, then
// folds R_partial = (sum_j gamma_j * G) * delta^-1 over the peers.
// The caller adds its own contribution.
func Phase4(deltaInv *big.Int, bProofs []*schnorr.Proof, decommits []*SignDecommitPhase1, coms []*SignBroadcastPhase1) (*curves.ECPoint, error) {
	if len(bProofs) != len(decommits) || len(decommits) != len(coms) {
		return nil, errors.New("sign: phase 4 length mismatch")
	}
	sum := curves.Identity()
	for i := range decommits {
		if decommits[i] == nil || coms[i] == nil || bProofs[i] == nil {
			return nil, tss.NewError(tss.InvalidKey, "round4", 0,
				errors.New("missing gamma decommitment"))
		}
		if !bProofs[i].PK.Equal(decommits[i].GGammaI) {
			return nil, tss.NewError(tss.InvalidProof, "round4", 0,
				errors.New("gamma decommit does not match MtA dlog proof"))
		}
		if !commitment.Verify(coms[i].Com, decommits[i].Blind, decommits[i].GGammaI.SerializeCompressed()) {
			return nil, tss.NewError(tss.InvalidKey, "round4", 0,
				errors.New("gamma commitment does not open"))
		}
		sum = sum.Add(decommits[i].GGammaI)
	}
	return sum.ScalarMult(deltaInv), nil
}

// CommitmentsToXi derives every party's public share commitment
// X_j * G from the joint VSS vector.
func CommitmentsToXi(vssVec []*vss.VerifiableSS) []*curves.ECPoint {
	n := vssVec[0].Parameters.ShareCount
	out := make([]*curves.ECPoint, n)
	for i := uint16(1); i <= n; i++ {
		acc := curves.Identity()
		for j := range vssVec {
			acc = acc.Add(vssVec[j].GetPointCommitment(i))
		}
		out[i-1] = acc
	}
	return out
}

// UpdateCommitmentsToXi restricts a public share commitment to the
// signer set: g_w_j = lambda_j * (X_j * G).
func UpdateCommitmentsToXi(com *curves.ECPoint, index uint16, signers []uint16) (*curves.ECPoint, error) {
	lambda, err := vss.MapShareToNewParams(index, signers)
	if err != nil {
		return nil, err
	}
	return com.ScalarMult(lambda), nil
}
