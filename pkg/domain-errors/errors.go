// Package domainerrors provides coded errors for the policy domain.
//
// Services return these so transport layers can map a stable code to an HTTP
// status without string matching. Infrastructure facts (row missing, version
// mismatch) use pkg/platform/sentinel instead; services translate sentinels
// into coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks user-correctable input problems (4xx-equivalent).
	CodeValidation Code = "validation"
	// CodeInvariantViolation marks programmer errors: illegal transition,
	// unknown status type, unknown product. Never retried, never caught.
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal"
)

// Reason identifies the specific domain failure within a code, mirroring the
// error taxonomy the policy domain exposes to its callers.
type Reason string

const (
	ReasonInsuranceNotCorrect Reason = "InsuranceNotCorrectError"
	ReasonLeadMustBeFreeze    Reason = "LeadMustBeFreeze"
	ReasonLeadNotFound        Reason = "LeadNotFoundError"
	ReasonLeadGetOffer        Reason = "LeadGetOfferError"
	ReasonInvalidBeginDate    Reason = "InvalidBeginDateError"
	ReasonPolicyExpired       Reason = "PolicyExpiredError"
	ReasonPolicyNotFound      Reason = "PolicyNotFoundError"
	ReasonSavePolicy          Reason = "SavePolicyError"
	ReasonRequiredData        Reason = "PolicyRequiredData"
)

// Error is a coded domain error with an optional machine-readable reason.
type Error struct {
	Code    Code
	Reason  Reason
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewWithReason creates a coded error carrying a domain reason.
func NewWithReason(code Code, reason Reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WrapWithReason attaches a code, a domain reason and a message to an
// underlying error.
func WrapWithReason(err error, code Code, reason Reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasReason reports whether err carries the given domain reason.
func HasReason(err error, reason Reason) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason == reason
	}
	return false
}

// ReasonOf returns the reason carried by err, or an empty string.
func ReasonOf(err error) Reason {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
