package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeTransientFetch ErrorType = "transient_fetch"
	ErrorTypeItemDownload   ErrorType = "item_download"
	ErrorTypeLedgerIO       ErrorType = "ledger_io"
	ErrorTypeParsing        ErrorType = "parsing"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error is the typed error used across snapdl
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Account string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type) + " error"
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Account != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Account)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an error of the given type around a cause
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// NewConfigError reports invalid configuration. Raised before any network activity.
func NewConfigError(message string, err error) *Error {
	return &Error{Type: ErrorTypeConfig, Message: message, Err: err}
}

// NewNotFoundError reports an account without a public profile
func NewNotFoundError(account string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: "no public profile", Code: 404, Account: account}
}

// NewTransientFetchError reports a metadata fetch failure that may succeed later
func NewTransientFetchError(account string, code int, message string, err error) *Error {
	return &Error{Type: ErrorTypeTransientFetch, Message: message, Code: code, Account: account, Err: err}
}

// NewItemDownloadError reports a failed media download
func NewItemDownloadError(account string, code int, message string, err error) *Error {
	return &Error{Type: ErrorTypeItemDownload, Message: message, Code: code, Account: account, Err: err}
}

// NewLedgerIOError reports an unreadable, corrupt or unwritable ledger
func NewLedgerIOError(account string, message string, err error) *Error {
	return &Error{Type: ErrorTypeLedgerIO, Message: message, Account: account, Err: err}
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain holds an *Error of type t
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

func IsConfig(err error) bool   { return IsType(err, ErrorTypeConfig) }
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }
func IsLedgerIO(err error) bool { return IsType(err, ErrorTypeLedgerIO) }

// IsFatal reports errors that must end the process with a non-zero status
func IsFatal(err error) bool {
	return IsConfig(err) || IsLedgerIO(err)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransientFetch, ErrorTypeItemDownload, ErrorTypeRateLimit, ErrorTypeParsing:
		return true
	default:
		return false
	}
}

// IsRetryableError checks an error chain against IsRetryable.
// Errors outside the taxonomy are treated as network failures.
func IsRetryableError(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return true
	}
	if e.Code >= 400 && !IsRetryableStatusCode(e.Code) {
		return false
	}
	return IsRetryable(e.Type)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 408, 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
