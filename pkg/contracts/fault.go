package contracts

import (
	"errors"
	"fmt"
)

// FaultKind is the stable machine-readable error classification. Every
// failure path in the engine carries exactly one kind; nothing is swallowed.
type FaultKind string

const (
	FaultValidation  FaultKind = "VALIDATION"
	FaultNotFound    FaultKind = "NOT_FOUND"
	FaultEnforcement FaultKind = "ENFORCEMENT"
	FaultConflict    FaultKind = "CONFLICT"
	FaultInternal    FaultKind = "INTERNAL"
)

// Fault is the engine's error type. The message is returned verbatim to the
// caller; Reason is set only for enforcement faults so the caller can render
// remediation guidance.
type Fault struct {
	Kind    FaultKind  `json:"kind"`
	Message string     `json:"message"`
	Reason  ReasonCode `json:"reason,omitempty"`
}

func (f *Fault) Error() string {
	if f.Reason != "" {
		return fmt.Sprintf("%s: %s (reason=%s)", f.Kind, f.Message, f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewValidation builds a VALIDATION fault.
func NewValidation(msg string) *Fault {
	return &Fault{Kind: FaultValidation, Message: msg}
}

// NewNotFound builds a NOT_FOUND fault.
func NewNotFound(msg string) *Fault {
	return &Fault{Kind: FaultNotFound, Message: msg}
}

// NewEnforcement builds an ENFORCEMENT fault carrying the active reason code.
func NewEnforcement(msg string, reason ReasonCode) *Fault {
	return &Fault{Kind: FaultEnforcement, Message: msg, Reason: reason}
}

// NewConflict builds a CONFLICT fault. Callers must resubmit the entire
// request; partial merges are never attempted.
func NewConflict(msg string) *Fault {
	return &Fault{Kind: FaultConflict, Message: msg}
}

// KindOf extracts the fault kind from an error chain, defaulting to INTERNAL.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultInternal
}

// IsKind reports whether err carries the given fault kind.
func IsKind(err error, kind FaultKind) bool {
	return KindOf(err) == kind
}
