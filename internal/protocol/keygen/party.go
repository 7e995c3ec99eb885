package keygen

import (
	"crypto/rand"
	"math/big"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/commitment"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/paillier"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// PaillierBits is the modulus size of the per-party Paillier keys.
const PaillierBits = 2048

// Keys is a party's long-term key material: the additive secret
// contribution u_i with its public point, the Paillier pair carrying
// the MtA conversions, and the Shamir evaluation point burned in at
// keygen.
type Keys struct {
	Ui         *big.Int             `json:"u_i"`
	Yi         *curves.ECPoint      `json:"y_i"`
	DK         *paillier.PrivateKey `json:"dk"`
	EK         *paillier.PublicKey  `json:"ek"`
	PartyIndex uint16               `json:"party_index"`
}

// SharedKeys is the jointly derived material: the joint public key
// and this party's Shamir share of its discrete log.
type SharedKeys struct {
	Y  *curves.ECPoint `json:"y"`
	Xi *big.Int        `json:"x_i"`
}

// NewKeys samples fresh key material for the party at the given
// evaluation point.
func NewKeys(index uint16) (*Keys, error) {
	u, err := curves.NewScalar()
	if err != nil {
		return nil, err
	}
	return NewKeysFromSecret(u, index)
}

// NewKeysFromSecret builds key material around a caller-chosen
// secret; resharing uses it for the Lagrange-restricted w_i.
func NewKeysFromSecret(u *big.Int, index uint16) (*Keys, error) {
	dk, err := paillier.GenerateKey(rand.Reader, PaillierBits)
	if err != nil {
		return nil, errors.Wrap(err, "keygen: generating paillier key")
	}
	return &Keys{
		Ui:         u,
		Yi:         curves.ScalarBaseMult(u),
		DK:         dk,
		EK:         &dk.PublicKey,
		PartyIndex: index,
	}, nil
}

// KG1 is the round-1 broadcast: a binding commitment to y_i together
// with the Paillier key and its proof of correctness.
type KG1 struct {
	Com             []byte                    `json:"com"`
	EK              *paillier.PublicKey       `json:"e"`
	CorrectKeyProof *paillier.CorrectKeyProof `json:"correct_key_proof"`
}

// KG2 is the round-2 decommitment revealing y_i.
type KG2 struct {
	Yi    *curves.ECPoint `json:"y_i"`
	Blind []byte          `json:"blind_factor"`
}

// Phase1Broadcast commits to y_i and proves the Paillier key correct.
func (k *Keys) Phase1Broadcast() (*KG1, *KG2, error) {
	com, err := commitment.New(k.Yi.SerializeCompressed())
	if err != nil {
		return nil, nil, err
	}
	proof, err := k.DK.ProveCorrectKey()
	if err != nil {
		return nil, nil, err
	}
	kg1 := &KG1{Com: com.C, EK: k.EK, CorrectKeyProof: proof}
	kg2 := &KG2{Yi: k.Yi, Blind: com.Blind}
	return kg1, kg2, nil
}

// VerifyCommitmentsAndKeys checks every peer's decommitment against
// its round-1 commitment and verifies the Paillier correct-key
// proofs. self is the 1-based slot to skip. All failures are
// aggregated so a bad round names every culprit.
func VerifyCommitmentsAndKeys(kg1s []*KG1, kg2s []*KG2, self uint16) error {
	var merr *multierror.Error
	for i := range kg1s {
		slot := uint16(i + 1)
		if slot == self {
			continue
		}
		if kg1s[i] == nil || kg2s[i] == nil {
			merr = multierror.Append(merr,
				tss.NewError(tss.InvalidKey, "round2", slot, errors.New("missing message")))
			continue
		}
		if !commitment.Verify(kg1s[i].Com, kg2s[i].Blind, kg2s[i].Yi.SerializeCompressed()) {
			merr = multierror.Append(merr,
				tss.NewError(tss.InvalidKey, "round2", slot, errors.New("commitment does not open")))
			continue
		}
		if err := kg1s[i].CorrectKeyProof.Verify(kg1s[i].EK); err != nil {
			merr = multierror.Append(merr,
				tss.NewError(tss.InvalidKey, "round2", slot, err))
		}
	}
	return merr.ErrorOrNil()
}
