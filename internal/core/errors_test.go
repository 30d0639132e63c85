package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}

	wrapped := WrapError(ErrProviderTimeout, errors.New("deadline"))
	if wrapped.Error() != "[PROVIDER_TIMEOUT] data provider timeout: deadline" {
		t.Errorf("unexpected wrapped string: %s", wrapped.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(WrapError(ErrSymbolNotFound, errors.New("404")), ErrSymbolNotFound) {
		t.Error("wrapped error should match by code")
	}
	if errors.Is(ErrSymbolNotFound, ErrProviderFailed) {
		t.Error("different codes should not match")
	}

	viaFmt := fmt.Errorf("fetch: %w", WrapError(ErrInsufficientData, nil))
	if !errors.Is(viaFmt, ErrInsufficientData) {
		t.Error("fmt-wrapped error should still match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrProviderFailed, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrProviderFailed.Code {
		t.Error("code not preserved")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"symbol not found", WrapError(ErrSymbolNotFound, nil), false},
		{"config invalid", ErrConfigInvalid, false},
		{"provider timeout", WrapError(ErrProviderTimeout, nil), true},
		{"insufficient data", ErrInsufficientData, true},
		{"bad request", WrapError(ErrInvalidRequest, errors.New("bad json")), false},
		{"plain error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(WrapError(ErrNoData, errors.New("empty chart")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"code":"NO_DATA","message":"no data available","cause":"empty chart"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var back Error
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !errors.Is(&back, ErrNoData) || back.Cause == nil || back.Cause.Error() != "empty chart" {
		t.Errorf("round trip lost fields: %+v", back)
	}
}
