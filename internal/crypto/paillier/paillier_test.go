package paillier

import (
	"crypto/rand"
	"math/big"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	priv, err := GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if priv.N.BitLen() < 1023 { // allow slight variance
		t.Errorf("expected modulus bit length ~1024, got %d", priv.N.BitLen())
	}
	if priv.N2().Cmp(new(big.Int).Mul(priv.N, priv.N)) != 0 {
		t.Errorf("N2 is not N*N")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	priv, err := GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	msg := big.NewInt(123456789)
	c, _, err := priv.Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	decrypted, err := priv.Decrypt(c)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if msg.Cmp(decrypted) != 0 {
		t.Errorf("decryption failed: expected %s, got %s", msg, decrypted)
	}
}

func TestEncryptRejectsOutOfRange(t *testing.T) {
	priv, _ := GenerateKey(rand.Reader, 1024)
	if _, _, err := priv.Encrypt(big.NewInt(-1)); err == nil {
		t.Error("negative message accepted")
	}
	if _, _, err := priv.Encrypt(new(big.Int).Set(priv.N)); err == nil {
		t.Error("message >= n accepted")
	}
}

func TestHomomorphicAdd(t *testing.T) {
	priv, err := GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	c1, _, _ := priv.Encrypt(big.NewInt(100))
	c2, _, _ := priv.Encrypt(big.NewInt(200))

	sum, err := priv.Decrypt(priv.Add(c1, c2))
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if sum.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("homomorphic add failed: got %s", sum)
	}
}

func TestHomomorphicMul(t *testing.T) {
	priv, err := GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	c, _, _ := priv.Encrypt(big.NewInt(50))
	prod, err := priv.Decrypt(priv.Mul(c, big.NewInt(3)))
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if prod.Cmp(big.NewInt(150)) != 0 {
		t.Errorf("homomorphic mul failed: got %s", prod)
	}
}

func TestEncryptWithNonce(t *testing.T) {
	priv, err := GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	msg := big.NewInt(999)
	r, _ := rand.Int(rand.Reader, priv.N)
	if r.Sign() == 0 {
		r.SetInt64(1)
	}

	c, err := priv.EncryptWithNonce(msg, r)
	if err != nil {
		t.Fatalf("EncryptWithNonce failed: %v", err)
	}
	decrypted, err := priv.Decrypt(c)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if msg.Cmp(decrypted) != 0 {
		t.Errorf("decryption failed: expected %s, got %s", msg, decrypted)
	}
}
