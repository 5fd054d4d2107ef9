package interop

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies interop failures. None of them is retryable mid-stream;
// the kind only decides which diagnostic the top-level handler prints.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNoSuitableDevice means no device satisfies the sharing requirements.
	// It reflects the environment (hardware/driver), not a bug.
	KindNoSuitableDevice
	KindResourceCreation
	KindImportMismatch
	KindSubmission
	KindTimeout
	KindDeviceLost
	KindPrecondition
	KindTeardownOrder
	KindHandleInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNoSuitableDevice:
		return "no suitable device"
	case KindResourceCreation:
		return "resource creation failed"
	case KindImportMismatch:
		return "import mismatch"
	case KindSubmission:
		return "submission failed"
	case KindTimeout:
		return "fence timeout"
	case KindDeviceLost:
		return "device lost"
	case KindPrecondition:
		return "precondition failed"
	case KindTeardownOrder:
		return "teardown order violated"
	case KindHandleInvalid:
		return "handle invalid"
	default:
		return "unknown"
	}
}

// Error is the typed fatal interop error propagated to the host.
type Error struct {
	Kind Kind
	// Op names the failing call, e.g. "vkAllocateMemory" or "import memory".
	Op string
	// Status is the native status code when one exists (VkResult, HRESULT, GL error).
	Status int64
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNoSuitableDevice = &Error{Kind: KindNoSuitableDevice}
	ErrResourceCreation = &Error{Kind: KindResourceCreation}
	ErrImportMismatch   = &Error{Kind: KindImportMismatch}
	ErrSubmission       = &Error{Kind: KindSubmission}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrDeviceLost       = &Error{Kind: KindDeviceLost}
	ErrPrecondition     = &Error{Kind: KindPrecondition}
	ErrTeardownOrder    = &Error{Kind: KindTeardownOrder}
	ErrHandleInvalid    = &Error{Kind: KindHandleInvalid}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("interop")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel (or any *Error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// StatusError is implemented by backend errors that carry a native status code.
type StatusError interface {
	error
	Status() int64
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// wrap attaches op and kind to a backend error. Errors that already carry a
// kind (device lost reported by a fence, for instance) keep it.
func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if k := KindOf(err); k != KindUnknown {
		kind = k
	}
	e := &Error{Kind: kind, Op: op, Err: err}
	var se StatusError
	if errors.As(err, &se) {
		e.Status = se.Status()
	}
	return e
}

func preconditionf(op, format string, args ...any) error {
	return &Error{Kind: KindPrecondition, Op: op, Err: fmt.Errorf(format, args...)}
}

// Rejection records why one candidate device was skipped.
type Rejection struct {
	Device string
	Reason string
}

// NoSuitableDeviceError lists every rejected candidate.
type NoSuitableDeviceError struct {
	Rejections []Rejection
}

func (e *NoSuitableDeviceError) Error() string {
	if len(e.Rejections) == 0 {
		return "no physical devices enumerated"
	}
	parts := make([]string, len(e.Rejections))
	for i, r := range e.Rejections {
		parts[i] = fmt.Sprintf("%s: %s", r.Device, r.Reason)
	}
	return strings.Join(parts, "; ")
}

// NewError builds a typed error. Backends use it to report timeouts and
// device loss so the kind survives wrapping.
func NewError(kind Kind, op string, status int64, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}
