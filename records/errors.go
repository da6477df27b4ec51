package records

import "errors"

// Kind is a stable category for programmatic error handling.
//
// These categories are intended to remain stable across versions.
// Callers should branch on Kind/RuleID rather than matching error strings.
//
// NOTE: Error() strings are intentionally kept human-readable and may evolve.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindValidation: descriptor shape does not match the schema registered
	// for its method. Construction aborts; no Message is produced.
	KindValidation Kind = "Validation"
	// KindSigning: signing material invalid or the signer unavailable.
	KindSigning Kind = "Signing"
	// KindAuthorization: verification of an ingested Message failed. The
	// Message is rejected wholesale, never partially accepted.
	KindAuthorization Kind = "Authorization"
	// KindAddressing: a value could not be canonically encoded for content
	// addressing. Fatal to the operation that requested it.
	KindAddressing Kind = "Addressing"
	KindInternal   Kind = "Internal"
)

// Error is the library's structured error type.
//
// RuleID is a stable identifier (e.g., REC-VAL-101, REC-AUTH-401) naming the
// violated invariant or validation rule.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError constructs a structured error. Exported so collaborating packages
// (auth, schema) surface failures in the same taxonomy.
func NewError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// WrapError constructs a structured error wrapping a cause.
func WrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
