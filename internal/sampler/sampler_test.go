package sampler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.cbor")

	s, err := Open(path, "uuid-1", 2)
	require.NoError(t, err)
	s.Record("sign", "run", "R", []byte{1, 2, 3})
	s.Record("sign", "run", "delta_i", "0a0b")
	require.NoError(t, s.Close())

	records, err := Decode(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "sign", records[0]["module"])
	require.Equal(t, "R", records[0]["param"])
	require.Equal(t, "uuid-1", records[0]["session_id"])
	require.Equal(t, uint16(2), records[0]["member_id"])
}

func TestAppendAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.cbor")

	s, err := Open(path, "uuid-1", 1)
	require.NoError(t, err)
	s.Record("keygen", "run", "a", 1)
	require.NoError(t, s.Close())

	s, err = Open(path, "uuid-2", 2)
	require.NoError(t, err)
	s.Record("keygen", "run", "b", 2)
	require.NoError(t, s.Close())

	records, err := Decode(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestUnencodableValueIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.cbor")
	s, err := Open(path, "uuid", 1)
	require.NoError(t, err)
	s.Record("m", "f", "p", make(chan int)) // not encodable; must not panic
	require.NoError(t, s.Close())

	records, err := Decode(path)
	require.NoError(t, err)
	require.Empty(t, records)
}
