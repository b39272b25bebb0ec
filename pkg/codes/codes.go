// Package codes defines the engine's coded error taxonomy. Every public
// operation fails with exactly one code so callers can decide whether a retry
// makes sense (e.g. LimitExceeded) or not (e.g. AlreadyVoted). Codes are
// grouped numerically by subsystem.
package codes

import (
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code int

// Validator subsystem (1xx).
const (
	ValidatorNotFound      Code = 100
	AlreadyRegistered      Code = 101
	InsufficientStake      Code = 102
	InvalidValidatorState  Code = 103
	BootstrapEnded         Code = 104
	GenesisFull            Code = 105
	NotEnoughCertificates  Code = 106
	CertificateNotFound    Code = 107
	BoostLimit             Code = 108
)

// Proposal subsystem (2xx).
const (
	ProposalNotFound     Code = 200
	InsufficientDeposit  Code = 201
	NotAuthorized        Code = 202
	VotingNotStarted     Code = 203
	VotingEnded          Code = 204
	AlreadyVoted         Code = 205
	InvalidProposalState Code = 206
	ThresholdNotMet      Code = 207
	ExecutionDelayNotMet Code = 208
	NotProposer          Code = 209
)

// Treasury subsystem (3xx).
const (
	PoolNotFound        Code = 300
	InsufficientBalance Code = 301
	LimitExceeded       Code = 302
	EmergencyMode       Code = 303
	EmergencyCooldown   Code = 304
	PositionNotFound    Code = 305
	LockNotExpired      Code = 306
	AlreadySigned       Code = 307
	ActionNotFound      Code = 308
	InvalidAmount       Code = 309
	LockTooShort        Code = 310
)

// Parameter subsystem (4xx).
const (
	ParameterNotFound Code = 400
	ParameterLocked   Code = 401
	OutOfRange        Code = 402
	InvalidBatchSize  Code = 403
	ParameterDenied   Code = 404
)

// Selection and authorization (5xx).
const (
	SelectionCountExceeded Code = 500
	NoCandidates           Code = 501
	Unauthorized           Code = 502
	CapabilityRequired     Code = 503
	// RecordBusy reports that another operation holds exclusive mutation
	// rights over a required record. The caller retries externally; the
	// engine never blocks or retries internally.
	RecordBusy Code = 504
)

// Error is a coded engine error. Op names the public operation that failed.
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: [%d] %s: %v", e.Op, e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: [%d] %s", e.Op, e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two coded errors by code alone, so errors.Is(err, codes.E(op,
// codes.LimitExceeded, ...)) and sentinel comparisons both work.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// E builds a coded error.
func E(op string, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a coded error.
func Wrap(op string, code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the Code from err, or 0 when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool { return CodeOf(err) == code }
