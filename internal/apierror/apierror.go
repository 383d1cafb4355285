// Package apierror defines the error classes the HTTP layer knows how to render.
package apierror

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an Error and selects its HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindValidation
	KindConflict
)

// Error codes sent in the "code" field of the error envelope.
const (
	CodeNotAuthenticated   = "not_authenticated"
	CodeAuthFailed         = "authentication_failed"
	CodeTokenNotValid      = "token_not_valid"
	CodeInvalidCredentials = "no_active_account"
	CodePermissionDenied   = "permission_denied"
	CodeNotFound           = "not_found"
	CodeInvalid            = "invalid"
	CodeParseError         = "parse_error"
	CodeConflict           = "conflict"
	CodeThrottled          = "throttled"
	CodeInternal           = "internal_error"
)

// NonFieldErrors is the Fields key for problems not tied to a single input field.
const NonFieldErrors = "non_field_errors"

// Error is a client-facing error. Err keeps the underlying cause for logging and errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(k + ": " + strings.Join(e.Fields[k], " "))
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Authentication(code, message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: message, Err: cause}
}

// NotAuthenticated is returned when a protected action is attempted without credentials.
func NotAuthenticated() *Error {
	return Authentication(CodeNotAuthenticated, "Authentication credentials were not provided.", nil)
}

func Forbidden() *Error {
	return &Error{
		Kind:    KindAuthorization,
		Code:    CodePermissionDenied,
		Message: "You do not have permission to perform this action.",
	}
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Not found."
	}
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

// Validation builds a 400 error with per-field messages.
func Validation(fields map[string][]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalid,
		Message: "Invalid input.",
		Fields:  fields,
	}
}

// FieldError is a shorthand for a validation error on a single field.
func FieldError(field, message string) *Error {
	return Validation(map[string][]string{field: {message}})
}

func ParseError(cause error) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeParseError,
		Message: "Malformed request body.",
		Err:     cause,
	}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: message}
}

func Internal(cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "Internal server error.",
		Err:     cause,
	}
}

// From returns err as an *Error, classifying anything unrecognised as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
