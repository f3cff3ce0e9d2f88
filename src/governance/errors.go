package governance

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindInvalidParameter  Kind = "invalid_parameter"
	KindStateConflict     Kind = "state_conflict"
	KindUnauthorized      Kind = "unauthorized"
	KindTemporalGuard     Kind = "temporal_guard"
	KindThresholdNotMet   Kind = "threshold_not_met"
	KindDependencyFailure Kind = "dependency_failure"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidParameter   Code = "INVALID_PARAMETER"
	CodeUnitNotActive      Code = "UNIT_NOT_ACTIVE"
	CodeMemberInactive     Code = "MEMBER_INACTIVE"
	CodeZeroVotingPower    Code = "ZERO_VOTING_POWER"
	CodeNotActive          Code = "PROPOSAL_NOT_ACTIVE"
	CodeNotQueued          Code = "PROPOSAL_NOT_QUEUED"
	CodeCannotCancel       Code = "CANNOT_CANCEL"
	CodeDuplicateVote      Code = "DUPLICATE_VOTE"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeNoDelegation       Code = "NO_DELEGATION"
	CodeTallyOverflow      Code = "TALLY_OVERFLOW"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeNotMember          Code = "NOT_MEMBER"
	CodeVotingNotEnded     Code = "VOTING_NOT_ENDED"
	CodeVotingEnded        Code = "VOTING_ENDED"
	CodeTimelockNotExpired Code = "TIMELOCK_NOT_EXPIRED"
	CodeQuorumNotReached   Code = "QUORUM_NOT_REACHED"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeDispatchFailed     Code = "DISPATCH_FAILED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInternal           Code = "INTERNAL"
)

// Kind maps the code onto its error kind.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidParameter:
		return KindInvalidParameter

	case CodeUnitNotActive,
		CodeMemberInactive,
		CodeZeroVotingPower,
		CodeNotActive,
		CodeNotQueued,
		CodeCannotCancel,
		CodeDuplicateVote,
		CodeAlreadyExists,
		CodeNoDelegation,
		CodeTallyOverflow:
		return KindStateConflict

	case CodeUnauthorized, CodeNotMember:
		return KindUnauthorized

	case CodeVotingNotEnded, CodeVotingEnded, CodeTimelockNotExpired:
		return KindTemporalGuard

	case CodeQuorumNotReached:
		return KindThresholdNotMet

	case CodeInsufficientFunds, CodeDispatchFailed:
		return KindDependencyFailure

	case CodeNotFound:
		return KindNotFound

	default:
		return KindInternal
	}
}

// Error is a governance failure carrying a code, a message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Kind returns the error kind of the code.
func (e *Error) Kind() Kind { return e.Code.Kind() }

// Sentinels for errors.Is.
var (
	ErrInvalidParameter   = &Error{Code: CodeInvalidParameter}
	ErrUnitNotActive      = &Error{Code: CodeUnitNotActive}
	ErrMemberInactive     = &Error{Code: CodeMemberInactive}
	ErrZeroVotingPower    = &Error{Code: CodeZeroVotingPower}
	ErrNotActive          = &Error{Code: CodeNotActive}
	ErrNotQueued          = &Error{Code: CodeNotQueued}
	ErrCannotCancel       = &Error{Code: CodeCannotCancel}
	ErrDuplicateVote      = &Error{Code: CodeDuplicateVote}
	ErrAlreadyExists      = &Error{Code: CodeAlreadyExists}
	ErrNoDelegation       = &Error{Code: CodeNoDelegation}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized}
	ErrNotMember          = &Error{Code: CodeNotMember}
	ErrVotingNotEnded     = &Error{Code: CodeVotingNotEnded}
	ErrVotingEnded        = &Error{Code: CodeVotingEnded}
	ErrTimelockNotExpired = &Error{Code: CodeTimelockNotExpired}
	ErrQuorumNotReached   = &Error{Code: CodeQuorumNotReached}
	ErrInsufficientFunds  = &Error{Code: CodeInsufficientFunds}
	ErrDispatchFailed     = &Error{Code: CodeDispatchFailed}
	ErrNotFound           = &Error{Code: CodeNotFound}
)

// NewError builds an *Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return errorf(code, format, args...)
}

func errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapf(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code carried by err, CodeInternal for foreign errors
// and the empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}
