// Package tss carries the shared protocol surface: sharing
// parameters, the resharing role matrix, the error taxonomy, and the
// per-run session context that replaces the original's process-global
// session and member identifiers.
package tss

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Params holds the Shamir parameters of a session. Threshold is t,
// ShareCount is n; any t+1 shares reconstruct. Parties is the number
// of live participants in the current session: n for keygen, the
// signer count t' for signing, and the give/receive superset size for
// resharing.
type Params struct {
	Threshold  uint16 `json:"threshold"`
	Parties    uint16 `json:"parties"`
	ShareCount uint16 `json:"share_count"`
}

// Validate enforces 1 <= t < n.
func (p Params) Validate() error {
	if p.Threshold < 1 || p.Threshold >= p.ShareCount {
		return NewError(ParamInvalid, "", 0,
			fmt.Errorf("threshold %d out of range for %d shares", p.Threshold, p.ShareCount))
	}
	return nil
}

// ValidateSign additionally checks the signer count: t < t' <= n.
func (p Params) ValidateSign() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Parties <= p.Threshold {
		return NewError(ParamInvalid, "", 0,
			fmt.Errorf("%d signers cannot meet threshold %d", p.Parties, p.Threshold))
	}
	if p.Parties > p.ShareCount {
		return NewError(ParamInvalid, "", 0,
			fmt.Errorf("%d signers exceed share count %d", p.Parties, p.ShareCount))
	}
	return nil
}

// ValidateReshare checks the session superset size:
// n <= parties <= 2n.
func (p Params) ValidateReshare() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Parties < p.ShareCount || p.Parties > 2*p.ShareCount {
		return NewError(ParamInvalid, "", 0,
			fmt.Errorf("%d reshare parties out of range [%d, %d]", p.Parties, p.ShareCount, 2*p.ShareCount))
	}
	return nil
}

// ParseParams parses a CLI parameter string: "t/n" when two segments,
// "t/t'/n" when three.
func ParseParams(s string) (Params, error) {
	parts := strings.Split(s, "/")
	vals := make([]uint16, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 16)
		if err != nil {
			return Params{}, NewError(ParamInvalid, "", 0, err)
		}
		vals[i] = uint16(v)
	}
	switch len(vals) {
	case 2:
		return Params{Threshold: vals[0], Parties: vals[1], ShareCount: vals[1]}, nil
	case 3:
		return Params{Threshold: vals[0], Parties: vals[1], ShareCount: vals[2]}, nil
	}
	return Params{}, NewError(ParamInvalid, "", 0, fmt.Errorf("expected t/n or t/t'/n, got %q", s))
}

// Roles is a party's stance in a resharing session.
type Roles struct {
	Give    bool `json:"give"`    // holds an old share and contributes it
	Hold    bool `json:"hold"`    // keeps its old keystore after the refresh
	Receive bool `json:"receive"` // obtains a new share
}

// Validate enforces give => hold and give || receive.
func (r Roles) Validate() error {
	if r.Give && !r.Hold {
		return NewError(ParamInvalid, "", 0, fmt.Errorf("giving requires holding"))
	}
	if !r.Give && !r.Receive {
		return NewError(ParamInvalid, "", 0, fmt.Errorf("party must give or receive"))
	}
	return nil
}

// Recorder receives intermediate protocol values for offline
// analysis. It must never be active on production key material.
type Recorder interface {
	Record(module, function, param string, value any)
}

// Session is the explicit per-run context threaded through every
// protocol call. The original kept the session id and member id in
// process globals for its instrumentation sink; making them explicit
// also permits concurrent sessions in one process.
type Session struct {
	UUID   string
	Number uint16 // party number assigned at signup (1-based)
	Log    *zap.Logger
	Rec    Recorder // nil unless instrumentation is explicitly enabled
}

// NewSession builds a session context; logger may be nil.
func NewSession(uuid string, number uint16, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{UUID: uuid, Number: number, Log: log}
}

// Record forwards to the recorder when one is attached.
func (s *Session) Record(module, function, param string, value any) {
	if s != nil && s.Rec != nil {
		s.Rec.Record(module, function, param, value)
	}
}
