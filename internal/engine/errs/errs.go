// Package errs enumerates the domain error kinds the allocation engine can
// raise: each kind maps to a caller action (retry, reconcile, surface-as-is)
// rather than a raw message, the same way internal/apis's error handling
// switches on a distinguished error type instead of inspecting strings.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a domain error so callers (the RPC layer, the CLI, the
// sweeper) can decide how to react without parsing messages.
type Kind string

const (
	// KindInvalidArgument covers malformed requests: bad CIDR math, VLAN
	// sum overflow, count ordering. No state changes.
	KindInvalidArgument Kind = "invalid-argument"
	// KindConflict covers a CIDR already present, VIF MAC exhaustion, or
	// a floating IP that is already associated.
	KindConflict Kind = "conflict"
	// KindPoolExhausted means no eligible FixedIP or FloatingIP remained
	// in the pool.
	KindPoolExhausted Kind = "pool-exhausted"
	// KindQuotaExceeded means a floating IP quota check failed before any
	// mutation occurred.
	KindQuotaExceeded Kind = "quota-exceeded"
	// KindOrphanLease means the DHCP daemon reported a lease/release for
	// an address with no instance association.
	KindOrphanLease Kind = "orphan-lease"
	// KindNotImplemented marks an abstract policy hook with no concrete
	// implementation for the active variant.
	KindNotImplemented Kind = "not-implemented"
	// KindPartialAllocation means an RPC fan-out timed out after some
	// targets already committed; the caller must reconcile via
	// deallocate_for_instance.
	KindPartialAllocation Kind = "partial-allocation"
)

// Error is a domain error carrying a Kind alongside the usual message and
// wrapped cause, so %+v still renders a stack from github.com/pkg/errors.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Wrap attaches kind and a message to an existing error, preserving it as
// the cause.
func Wrap(cause error, kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause})
}

// Is reports whether err (or something it wraps) is of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
