package curves

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarArithmetic(t *testing.T) {
	a, err := NewScalar()
	require.NoError(t, err)
	b, err := NewScalar()
	require.NoError(t, err)

	sum := AddScalars(a, b)
	require.Equal(t, a.Cmp(SubScalars(sum, b)), 0)

	inv, err := InvScalar(a)
	require.NoError(t, err)
	require.Equal(t, int64(1), MulScalars(a, inv).Int64())

	_, err = InvScalar(big.NewInt(0))
	require.Error(t, err)
}

func TestScalarBytesRoundTrip(t *testing.T) {
	a, err := NewScalar()
	require.NoError(t, err)
	require.Len(t, ScalarBytes(a), 32)
	require.True(t, ScalarEqual(a, ScalarFromBytes(ScalarBytes(a))))
}

func TestPointArithmetic(t *testing.T) {
	a, _ := NewScalar()
	b, _ := NewScalar()

	// (a+b)G == aG + bG
	lhs := ScalarBaseMult(AddScalars(a, b))
	rhs := ScalarBaseMult(a).Add(ScalarBaseMult(b))
	require.True(t, lhs.Equal(rhs))

	// aG - aG == identity
	p := ScalarBaseMult(a)
	require.True(t, p.Sub(p).IsIdentity())

	// identity is neutral
	require.True(t, p.Add(Identity()).Equal(p))
	require.True(t, Identity().Add(p).Equal(p))

	// scalar mult distributes over the generator
	require.True(t, Generator().ScalarMult(a).Equal(p))
}

func TestPointSerialization(t *testing.T) {
	k, _ := NewScalar()
	p := ScalarBaseMult(k)

	comp := p.SerializeCompressed()
	require.Len(t, comp, 33)
	back, err := ParsePoint(comp)
	require.NoError(t, err)
	require.True(t, p.Equal(back))

	uncomp := p.SerializeUncompressed()
	require.Len(t, uncomp, 65)
	back, err = ParsePoint(uncomp)
	require.NoError(t, err)
	require.True(t, p.Equal(back))

	// identity round-trips through the empty encoding
	id, err := ParsePoint(nil)
	require.NoError(t, err)
	require.True(t, id.IsIdentity())
}

func TestPointJSON(t *testing.T) {
	k, _ := NewScalar()
	p := ScalarBaseMult(k)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var back ECPoint
	require.NoError(t, json.Unmarshal(raw, &back))
	require.True(t, p.Equal(&back))

	raw, err = json.Marshal(Identity())
	require.NoError(t, err)
	var id ECPoint
	require.NoError(t, json.Unmarshal(raw, &id))
	require.True(t, id.IsIdentity())
}

func TestNewECPointRejectsOffCurve(t *testing.T) {
	_, err := NewECPoint(big.NewInt(1), big.NewInt(1))
	require.Error(t, err)
}
