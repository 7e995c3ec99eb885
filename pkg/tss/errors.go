package tss

import (
	"errors"
	"fmt"
)

// Code classifies a protocol failure. Every cryptographic
// verification failure is fatal to the session; none are retried.
type Code int

const (
	// ParamInvalid means malformed t/n parameters or violated
	// resharing role constraints.
	ParamInvalid Code = iota + 1
	// InvalidKey means a Paillier proof of correct key failed or a
	// commitment did not open.
	InvalidKey
	// InvalidSS means Feldman share validation failed.
	InvalidSS
	// InvalidProof means a dlog, ElGamal or Phase-5 proof failed.
	InvalidProof
	// InvalidSig means the assembled signature failed verification.
	InvalidSig
	// ChildNumber means a hardened index appeared in a derivation
	// path.
	ChildNumber
	// BusError means a transport failure, duplicate bus key, or a
	// peer missing past the round deadline.
	BusError
	// KeystoreError means keystore I/O or deserialization failed.
	KeystoreError
)

func (c Code) String() string {
	switch c {
	case ParamInvalid:
		return "ParamInvalid"
	case InvalidKey:
		return "InvalidKey"
	case InvalidSS:
		return "InvalidSS"
	case InvalidProof:
		return "InvalidProof"
	case InvalidSig:
		return "InvalidSig"
	case ChildNumber:
		return "ChildNumber"
	case BusError:
		return "BusError"
	case KeystoreError:
		return "KeystoreError"
	}
	return "Unknown"
}

// Error is a protocol failure with enough context to identify the
// failing round and, when known, the culprit's bus slot. It never
// carries secret material.
type Error struct {
	Code    Code
	Round   string
	Culprit uint16 // bus slot of the culprit: its party number, or its giver/receiver position in resharing rounds 3 and 5; 0 when unknown or not applicable
	Err     error
}

// NewError builds a protocol error. err may be nil.
func NewError(code Code, round string, culprit uint16, err error) *Error {
	return &Error{Code: code, Round: round, Culprit: culprit, Err: err}
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Round != "" {
		msg += " in " + e.Round
	}
	if e.Culprit != 0 {
		msg += fmt.Sprintf(" (party %d)", e.Culprit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on the code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Round == "" || t.Round == e.Round)
}

// ErrorCode extracts the Code from err, or 0 if err carries no
// protocol error.
func ErrorCode(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}
