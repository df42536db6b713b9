package domain

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Kind classifies a failure. Callers dispatch on Kind with errors.Is against
// the sentinel values below, or with errors.As to reach the payload.
type Kind int

const (
	KindInternal Kind = iota
	KindNotInitialized
	KindConnection
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotInitialized:
		return "not_initialized"
	case KindConnection:
		return "connection"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Sentinels matched by kind: errors.Is(err, ErrNotFound) is true for any
// *Error of KindNotFound.
var (
	ErrInternal       = &Error{Kind: KindInternal}
	ErrNotInitialized = &Error{Kind: KindNotInitialized}
	ErrConnection     = &Error{Kind: KindConnection}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
)

// Error is the tagged failure carried across the store adapters and the coordinator.
type Error struct {
	Kind    Kind
	Backend Backend
	Op      string
	Context map[string]any
	Err     error
}

// NewError builds an Error. err may be nil.
func NewError(kind Kind, backend Backend, op string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Op: op, Err: err}
}

// With returns a copy of e with key=value added to its context.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	maps.Copy(cp.Context, e.Context)
	cp.Context[key] = value
	return &cp
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Backend != "" {
		b.WriteString(string(e.Backend))
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error target of the same Kind whose Backend is empty or equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Backend == "" || t.Backend == e.Backend
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// BackendOf returns the Backend of the first *Error in err's chain.
func BackendOf(err error) Backend {
	var e *Error
	if errors.As(err, &e) {
		return e.Backend
	}
	return ""
}

// NotFound is shorthand for a KindNotFound error about id.
func NotFound(backend Backend, op, id string) *Error {
	return NewError(KindNotFound, backend, op, fmt.Errorf("%q not found", id)).With("id", id)
}

// Invalid is shorthand for a KindValidation error.
func Invalid(backend Backend, op, format string, args ...any) *Error {
	return NewError(KindValidation, backend, op, fmt.Errorf(format, args...))
}

// Unavailable is shorthand for a KindConnection error.
func Unavailable(backend Backend, op string, err error) *Error {
	return NewError(KindConnection, backend, op, err)
}
