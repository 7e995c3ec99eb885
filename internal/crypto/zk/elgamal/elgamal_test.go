package elgamal

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taiyi-research-institute/mpc-hd-gg18/internal/crypto/curves"
)

// buildInstance constructs a satisfied statement the way the signing
// Phase-5 does: D = x*H + r*Y, E = r*G.
func buildInstance(t *testing.T) (*Witness, *Statement) {
	t.Helper()
	x, err := curves.NewScalar()
	require.NoError(t, err)
	r, err := curves.NewScalar()
	require.NoError(t, err)

	hs, _ := curves.NewScalar()
	gs, _ := curves.NewScalar()
	h := curves.ScalarBaseMult(hs)
	g := curves.ScalarBaseMult(gs)
	y := curves.Generator()

	d := h.ScalarMult(x).Add(y.ScalarMult(r))
	e := g.ScalarMult(r)

	return &Witness{X: x, R: r}, &Statement{G: g, H: h, Y: y, D: d, E: e}
}

func TestProveVerify(t *testing.T) {
	w, st := buildInstance(t)
	proof, err := Prove(w, st)
	require.NoError(t, err)
	require.True(t, proof.Verify(st))
}

func TestVerifyRejectsWrongStatement(t *testing.T) {
	w, st := buildInstance(t)
	proof, err := Prove(w, st)
	require.NoError(t, err)

	// shifted D breaks the first equation
	bad := *st
	bad.D = st.D.Add(curves.Generator())
	require.False(t, proof.Verify(&bad))

	// shifted E breaks the second equation
	bad = *st
	bad.E = st.E.Add(curves.Generator())
	require.False(t, proof.Verify(&bad))
}

func TestVerifyRejectsWrongWitness(t *testing.T) {
	_, st := buildInstance(t)
	// prover without the real witness
	fake, _ := curves.NewScalar()
	proof, err := Prove(&Witness{X: fake, R: big.NewInt(1)}, st)
	require.NoError(t, err)
	require.False(t, proof.Verify(st))
}
