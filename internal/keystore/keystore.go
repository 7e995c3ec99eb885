// Package keystore persists a party's long-term key material as a
// self-describing JSON document. Writes go through a temp file and an
// atomic rename so a crash never leaves a torn keystore, and an
// exclusive lock file keeps concurrent sessions off the same path.
package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/paillier"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/vss"
	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/protocol/keygen"
	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// Keystore is the persisted tuple. It is created by keygen, read by
// signing and replaced atomically by resharing.
type Keystore struct {
	PartyKeys   *keygen.Keys          `json:"party_keys"`
	SharedKeys  *keygen.SharedKeys    `json:"shared_keys"`
	PartyIndex  uint16                `json:"party_index"`
	VSSVec      []*vss.VerifiableSS   `json:"vss_scheme_vec"`
	PaillierPKs []*paillier.PublicKey `json:"paillier_key_vec"`
	Y           *curves.ECPoint       `json:"y_sum"`
	ChainCode   []byte                `json:"chain_code"`
}

// FromKeygen converts a keygen result into its persistent form.
func FromKeygen(r *keygen.Result) *Keystore {
	return &Keystore{
		PartyKeys:   r.PartyKeys,
		SharedKeys:  r.SharedKeys,
		PartyIndex:  r.PartyIndex,
		VSSVec:      r.VSSVec,
		PaillierPKs: r.PaillierPKs,
		Y:           r.Y,
		ChainCode:   r.ChainCode,
	}
}

// Load reads and validates a keystore file.
func Load(path string) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tss.NewError(tss.KeystoreError, "", 0, err)
	}
	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, tss.NewError(tss.KeystoreError, "", 0, err)
	}
	if err := ks.validate(); err != nil {
		return nil, tss.NewError(tss.KeystoreError, "", 0, err)
	}
	return &ks, nil
}

// Save writes the keystore atomically: serialize to a temp file in
// the same directory, fsync, rename over the target.
func (k *Keystore) Save(path string) error {
	if err := k.validate(); err != nil {
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	data, err := json.Marshal(k)
	if err != nil {
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}

	lock, err := acquireLock(path)
	if err != nil {
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	defer lock.release()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	if err := tmp.Close(); err != nil {
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return tss.NewError(tss.KeystoreError, "", 0, err)
	}
	return nil
}

func (k *Keystore) validate() error {
	switch {
	case k.PartyKeys == nil || k.PartyKeys.Ui == nil || k.PartyKeys.DK == nil:
		return errors.New("keystore: missing party keys")
	case k.SharedKeys == nil || k.SharedKeys.Xi == nil:
		return errors.New("keystore: missing shared keys")
	case k.PartyIndex == 0:
		return errors.New("keystore: missing party index")
	case len(k.VSSVec) == 0:
		return errors.New("keystore: missing vss schemes")
	case len(k.PaillierPKs) == 0:
		return errors.New("keystore: missing paillier keys")
	case k.Y.IsIdentity():
		return errors.New("keystore: missing joint public key")
	case len(k.ChainCode) != 32:
		return errors.New("keystore: malformed chain code")
	}
	return nil
}

type fileLock struct {
	path string
}

// acquireLock creates path.lock exclusively; a stale lock surfaces as
// an error rather than being broken silently.
func acquireLock(path string) (*fileLock, error) {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "keystore: locked by another session (%s)", lockPath)
	}
	f.Close()
	return &fileLock{path: lockPath}, nil
}

func (l *fileLock) release() {
	os.Remove(l.path)
}
