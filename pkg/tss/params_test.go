package tss

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	p, err := ParseParams("1/3")
	require.NoError(t, err)
	require.Equal(t, Params{Threshold: 1, Parties: 3, ShareCount: 3}, p)

	p, err = ParseParams("1/2/3")
	require.NoError(t, err)
	require.Equal(t, Params{Threshold: 1, Parties: 2, ShareCount: 3}, p)

	for _, bad := range []string{"", "1", "a/b", "1/2/3/4", "-1/3"} {
		_, err := ParseParams(bad)
		require.Error(t, err, "input %q", bad)
		require.Equal(t, ParamInvalid, ErrorCode(err))
	}
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, Params{Threshold: 1, Parties: 3, ShareCount: 3}.Validate())
	require.NoError(t, Params{Threshold: 1, Parties: 2, ShareCount: 2}.Validate())

	require.Error(t, Params{Threshold: 0, Parties: 3, ShareCount: 3}.Validate())
	require.Error(t, Params{Threshold: 3, Parties: 3, ShareCount: 3}.Validate())
	require.Error(t, Params{Threshold: 4, Parties: 3, ShareCount: 3}.Validate())
}

func TestParamsValidateSign(t *testing.T) {
	require.NoError(t, Params{Threshold: 1, Parties: 2, ShareCount: 3}.ValidateSign())
	require.NoError(t, Params{Threshold: 1, Parties: 3, ShareCount: 3}.ValidateSign())

	// signer count must exceed the threshold
	require.Error(t, Params{Threshold: 1, Parties: 1, ShareCount: 3}.ValidateSign())
	// and stay within the share count
	require.Error(t, Params{Threshold: 1, Parties: 4, ShareCount: 3}.ValidateSign())
}

func TestParamsValidateReshare(t *testing.T) {
	require.NoError(t, Params{Threshold: 1, Parties: 3, ShareCount: 3}.ValidateReshare())
	require.NoError(t, Params{Threshold: 1, Parties: 6, ShareCount: 3}.ValidateReshare())

	require.Error(t, Params{Threshold: 1, Parties: 2, ShareCount: 3}.ValidateReshare())
	require.Error(t, Params{Threshold: 1, Parties: 7, ShareCount: 3}.ValidateReshare())
}

func TestRolesValidate(t *testing.T) {
	require.NoError(t, Roles{Give: true, Hold: true, Receive: true}.Validate())
	require.NoError(t, Roles{Give: true, Hold: true}.Validate())
	require.NoError(t, Roles{Receive: true}.Validate())

	// give implies hold
	require.Error(t, Roles{Give: true, Receive: true}.Validate())
	// one of give/receive is required
	require.Error(t, Roles{Hold: true}.Validate())
}

func TestErrorFormatting(t *testing.T) {
	err := NewError(InvalidSS, "round4", 2, nil)
	require.Contains(t, err.Error(), "InvalidSS")
	require.Contains(t, err.Error(), "round4")
	require.Contains(t, err.Error(), "party 2")
	require.Equal(t, InvalidSS, ErrorCode(err))
}

func TestSessionRecordNilSafe(t *testing.T) {
	s := NewSession("u", 1, nil)
	s.Record("m", "f", "p", 1) // no recorder attached; must not panic
	require.NotNil(t, s.Log)
}
