package dtfapi

import "fmt"

// Local error codes. Remote failures carry the HTTP status instead.
const (
	CodeNetwork           = 0
	CodeNotAuthenticated  = -1
	CodeValidation        = -2
	CodeMalformedResponse = -3
)

// ErrorInfo describes a failed call.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Kind returns the classification of the error code.
func (e *ErrorInfo) Kind() Kind {
	return Classify(e.Code)
}

// Result is the normalized outcome of every client operation. Exactly one of
// Result or Error is meaningful, selected by Success.
type Result[T any] struct {
	Success bool
	Result  T
	Error   *ErrorInfo
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Success: true, Result: v}
}

// Fail builds a failed result.
func Fail[T any](code int, message string) Result[T] {
	return Result[T]{Error: &ErrorInfo{Code: code, Message: message}}
}

// failWith carries the error of r over to a result of another type.
func failWith[T, U any](r Result[U]) Result[T] {
	return Result[T]{Error: r.Error}
}

// Kind is the error taxonomy used to decide retry and session handling.
type Kind int

const (
	KindNone Kind = iota
	KindNotAuthenticated
	KindAuthRejected
	KindTransient
	KindRejected
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindAuthRejected:
		return "auth_rejected"
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	case KindValidation:
		return "validation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classify maps an error code onto the taxonomy.
func Classify(code int) Kind {
	switch {
	case code == CodeNotAuthenticated:
		return KindNotAuthenticated
	case code == CodeValidation:
		return KindValidation
	case code == 401 || code == 403:
		return KindAuthRejected
	case code == CodeNetwork || code >= 500:
		return KindTransient
	default:
		return KindRejected
	}
}
