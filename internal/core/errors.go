package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// MarshalJSON renders the error as {code, message, cause}.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Cause   string `json:"cause,omitempty"`
	}{Code: e.Code, Message: e.Message}
	if e.Cause != nil {
		out.Cause = e.Cause.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores an error written by MarshalJSON. The cause comes
// back as plain text.
func (e *Error) UnmarshalJSON(data []byte) error {
	var in struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Cause   string `json:"cause"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.Code, e.Message, e.Cause = in.Code, in.Message, nil
	if in.Cause != "" {
		e.Cause = errors.New(in.Cause)
	}
	return nil
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrSymbolNotFound   = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}
	ErrResultNotFound   = &Error{Code: "RESULT_NOT_FOUND", Message: "analysis result not found"}

	// Provider errors
	ErrProviderFailed  = &Error{Code: "PROVIDER_FAILED", Message: "data provider failed"}
	ErrProviderTimeout = &Error{Code: "PROVIDER_TIMEOUT", Message: "data provider timeout"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// Cache errors
	ErrCacheMiss = &Error{Code: "CACHE_MISS", Message: "cache miss"}

	// Session errors
	ErrSessionNotFound = &Error{Code: "SESSION_NOT_FOUND", Message: "session not found or expired"}

	// Request errors
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "invalid request"}
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}
	ErrJobNotFound    = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// LLM errors
	ErrLLMFailed  = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
	ErrLLMTimeout = &Error{Code: "LLM_TIMEOUT", Message: "LLM request timeout"}
)

// IsRetryable reports whether a caller may retry the failed operation.
// Unknown symbols and bad configuration never succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	ce, ok := err.(*Error)
	if !ok {
		return true
	}
	switch ce.Code {
	case ErrSymbolNotFound.Code, ErrConfigInvalid.Code, ErrConfigMissing.Code,
		ErrInvalidRequest.Code, ErrUnauthorized.Code:
		return false
	}
	return true
}
