// Package sampler is the optional instrumentation sink: it records
// intermediate protocol values for offline analysis as CBOR records
// appended to a local file. It is never constructed unless explicitly
// requested and must not be attached to sessions guarding real funds.
package sampler

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// record is one sampled value, tagged with where it came from.
type record struct {
	Module    string `cbor:"module"`
	Function  string `cbor:"function"`
	Param     string `cbor:"param"`
	SessionID string `cbor:"session_id"`
	MemberID  uint16 `cbor:"member_id"`
	Value     []byte `cbor:"value"` // CBOR-encoded sampled value
}

// FileSampler appends CBOR records to a file. It implements
// tss.Recorder.
type FileSampler struct {
	mu        sync.Mutex
	f         *os.File
	enc       *cbor.Encoder
	sessionID string
	memberID  uint16
}

// Open creates or appends to the sample file for one session.
func Open(path, sessionID string, memberID uint16) (*FileSampler, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "sampler: opening sample file")
	}
	return &FileSampler{
		f:         f,
		enc:       cbor.NewEncoder(f),
		sessionID: sessionID,
		memberID:  memberID,
	}, nil
}

// Record implements tss.Recorder. Marshal failures are swallowed: the
// sink must never abort a protocol run.
func (s *FileSampler) Record(module, function, param string, value any) {
	raw, err := cbor.Marshal(value)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(record{
		Module:    module,
		Function:  function,
		Param:     param,
		SessionID: s.sessionID,
		MemberID:  s.memberID,
		Value:     raw,
	})
}

// Close flushes and closes the underlying file.
func (s *FileSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Decode reads back every record in a sample file, for analysis
// tooling and tests.
func Decode(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "sampler: opening sample file")
	}
	defer f.Close()

	dec := cbor.NewDecoder(f)
	var out []map[string]any
	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			break
		}
		var value any
		if err := cbor.Unmarshal(rec.Value, &value); err != nil {
			value = rec.Value
		}
		out = append(out, map[string]any{
			"module":     rec.Module,
			"function":   rec.Function,
			"param":      rec.Param,
			"session_id": rec.SessionID,
			"member_id":  rec.MemberID,
			"value":      value,
		})
	}
	return out, nil
}
