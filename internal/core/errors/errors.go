// Package errors is the error taxonomy shared by the engine and the CLI.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrorCode classifies a DomainError. Callers branch on codes, not messages.
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeMalformedRule   ErrorCode = "MALFORMED_RULE"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeFrozen          ErrorCode = "FROZEN"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported    ErrorCode = "NOT_SUPPORTED"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath     = "path"
	CtxPattern  = "pattern"
	CtxLanguage = "language"
	CtxTag      = "tag"
	CtxOffset   = "offset"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Error renders "[CODE] message: cause key=value ...", context keys sorted.
func (e *DomainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, k := range slices.Sorted(maps.Keys(e.Context)) {
		fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
	}
	return b.String()
}

// Is matches another DomainError with the same code, so a bare
// &DomainError{Code: c} works as an errors.Is target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && t.Message == "" && t.Err == nil
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

// Newf formats msg like fmt.Sprintf.
func Newf(code ErrorCode, format string, args ...interface{}) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a key/value to err, wrapping plain errors as CodeInternal.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
