package commitment

import (
	"math/big"
	"testing"
)

func TestCommitment(t *testing.T) {
	msg := []byte("Hello, MPC!")

	comm, err := New(msg)
	if err != nil {
		t.Fatalf("failed to create commitment: %v", err)
	}
	if len(comm.C) != 32 {
		t.Errorf("expected commitment length 32, got %d", len(comm.C))
	}
	if len(comm.Blind) != BlindLen {
		t.Errorf("expected blind length %d, got %d", BlindLen, len(comm.Blind))
	}
	if !Verify(comm.C, comm.Blind, msg) {
		t.Fatal("verification failed for valid commitment")
	}
}

func TestCommitmentVerifyFailed(t *testing.T) {
	msg := []byte("Secret Message")
	comm, _ := New(msg)

	if Verify(comm.C, comm.Blind, []byte("Wrong Message")) {
		t.Fatal("verification passed for wrong message")
	}

	wrongBlind := make([]byte, BlindLen)
	copy(wrongBlind, comm.Blind)
	wrongBlind[0] ^= 0xFF
	if Verify(comm.C, wrongBlind, msg) {
		t.Fatal("verification passed for wrong blind")
	}

	wrongC := make([]byte, 32)
	copy(wrongC, comm.C)
	wrongC[0] ^= 0xFF
	if Verify(wrongC, comm.Blind, msg) {
		t.Fatal("verification passed for wrong commitment")
	}
}

func TestCreateDeterministic(t *testing.T) {
	msg := []byte("data")
	blind := make([]byte, BlindLen)
	if string(Create(msg, blind)) != string(Create(msg, blind)) {
		t.Fatal("Create is not deterministic")
	}
}

func TestConcat(t *testing.T) {
	part1 := []byte("Part 1")
	part2 := IntToBytes(big.NewInt(12345))
	comm, err := New(Concat(part1, part2))
	if err != nil {
		t.Fatalf("failed to create commitment: %v", err)
	}
	if !Verify(comm.C, comm.Blind, Concat(part1, part2)) {
		t.Fatal("verification failed")
	}
	if Verify(comm.C, comm.Blind, Concat(part2, part1)) {
		t.Fatal("verification passed for reordered parts")
	}
}
