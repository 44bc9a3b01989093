package errors

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUnsupportedMethod        ErrorKind = "UNSUPPORTED_METHOD"
	KindUnsupportedArgumentShape ErrorKind = "UNSUPPORTED_ARGUMENT_SHAPE"
	KindInvalidOperation         ErrorKind = "INVALID_OPERATION"
	KindDuplicateInScope         ErrorKind = "DUPLICATE_IN_SCOPE"
	KindGenerationIO             ErrorKind = "GENERATION_IO"
	KindInternal                 ErrorKind = "INTERNAL_ERROR"
)

const (
	CtxFile    = "file"
	CtxLine    = "line"
	CtxClass   = "class"
	CtxMethod  = "method"
	CtxBackend = "backend"
)

// CompilationError is the single error type surfaced by the compiler core.
// The orchestrator records the failing file and aborts that file only.
type CompilationError struct {
	Kind    ErrorKind
	Message string
	Err     error
	Context map[string]interface{}
}

func (e *CompilationError) WithContext(key string, value interface{}) *CompilationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

func New(kind ErrorKind, msg string) error {
	return &CompilationError{Kind: kind, Message: msg}
}

func Newf(kind ErrorKind, format string, args ...interface{}) error {
	return &CompilationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind ErrorKind, msg string) error {
	return &CompilationError{Kind: kind, Message: msg, Err: err}
}

func AddContext(err error, key string, value interface{}) error {
	var ce *CompilationError
	if errors.As(err, &ce) {
		ce.WithContext(key, value)
		return ce
	}
	return &CompilationError{
		Kind:    KindInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

func IsKind(err error, kind ErrorKind) bool {
	var ce *CompilationError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
