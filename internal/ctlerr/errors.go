// Package ctlerr maps the abstract error kinds of the control-plane API
// (validation, conflict, not-found, busy, resource exhaustion, driver
// passthrough, best-effort) onto syscall.Errno-compatible sentinels, the
// way a request handler ultimately reports "the nearest errno" to a
// caller.
package ctlerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// Validation: malformed input (zero address, VLAN id out of range,
	// non-multicast MAC where multicast is required, unknown id).
	Validation Kind = iota
	// Conflict: a uniqueness invariant would be violated (duplicate name,
	// duplicate (parent,vlan), address already bound to a different body).
	Conflict
	// NotFound: a lookup by id, name, or address came up empty.
	NotFound
	// Busy: the object has residual references or dependents.
	Busy
	// Resource: allocation failed or a hard capacity limit was hit.
	Resource
	// Driver: verbatim passthrough of a NIC driver error.
	Driver
	// BestEffort: a driver limitation (ENOTSUP/ENOSYS) that is logged and
	// treated as success by the caller, never surfaced as a failure.
	BestEffort
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Busy:
		return "busy"
	case Resource:
		return "resource"
	case Driver:
		return "driver"
	case BestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

// Error is a typed control-plane error: it carries the abstract Kind, the
// nearest errno, the operation that failed, and a human detail.
type Error struct {
	Kind   Kind
	Errno  syscall.Errno
	Op     string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Errno)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Errno, e.Detail)
}

// Unwrap lets errors.Is(err, syscall.ENOENT) etc. work against the errno.
func (e *Error) Unwrap() error { return e.Errno }

// New builds an *Error.
func New(kind Kind, errno syscall.Errno, op, detail string) *Error {
	return &Error{Kind: kind, Errno: errno, Op: op, Detail: detail}
}

func Invalid(op, detail string) *Error   { return New(Validation, syscall.EINVAL, op, detail) }
func Exists(op, detail string) *Error    { return New(Conflict, syscall.EEXIST, op, detail) }
func AddrInUse(op, detail string) *Error { return New(Conflict, syscall.EADDRINUSE, op, detail) }
func NoEnt(op, detail string) *Error     { return New(NotFound, syscall.ENOENT, op, detail) }
func NoDevice(op, detail string) *Error  { return New(NotFound, syscall.ENODEV, op, detail) }
func Unreachable(op, detail string) *Error {
	return New(NotFound, syscall.ENETUNREACH, op, detail)
}
func Occupied(op, detail string) *Error { return New(Busy, syscall.EBUSY, op, detail) }
func NoMem(op, detail string) *Error    { return New(Resource, syscall.ENOMEM, op, detail) }
func TooMany(op, detail string) *Error  { return New(Resource, syscall.E2BIG, op, detail) }

// FromDriver wraps a raw driver errno as a Driver-kind error.
func FromDriver(op string, errno syscall.Errno) *Error {
	return New(Driver, errno, op, "")
}

// IsBestEffort reports whether errno is one that should be treated as a
// best-effort no-op (ENOTSUP/ENOSYS on VLAN filter operations).
func IsBestEffort(err error) bool {
	return errors.Is(err, syscall.ENOTSUP) || errors.Is(err, syscall.ENOSYS)
}

// Errno extracts the syscall.Errno nearest to err, or 0 if err is nil or
// carries none.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Errno
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
