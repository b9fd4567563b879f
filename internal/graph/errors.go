package graph

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Every *Error matches exactly one of them.
var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrRenderBackendFailure = errors.New("render backend failure")
	ErrDegenerateGeometry   = errors.New("degenerate geometry")
)

type Kind int

const (
	KindInvalidParameter Kind = iota + 1
	KindRenderBackendFailure
	KindDegenerateGeometry
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidParameter:
		return ErrInvalidParameter
	case KindRenderBackendFailure:
		return ErrRenderBackendFailure
	case KindDegenerateGeometry:
		return ErrDegenerateGeometry
	default:
		return nil
	}
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single typed failure surfaced by the core. Op names the
// operation that failed ("render", "perspective", "crop").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf extracts the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
