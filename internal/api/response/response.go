// Package response writes the JSON envelopes shared by every API handler.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/prism/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	resp := ErrorResponse{Error: detail}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Fail writes err with the status StatusFor picks.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

var statusByCode = map[string]int{
	core.ErrSymbolNotFound.Code:   http.StatusNotFound,
	core.ErrResultNotFound.Code:   http.StatusNotFound,
	core.ErrSessionNotFound.Code:  http.StatusNotFound,
	core.ErrJobNotFound.Code:      http.StatusNotFound,
	core.ErrNoData.Code:           http.StatusNotFound,
	core.ErrInsufficientData.Code: http.StatusUnprocessableEntity,
	core.ErrInvalidRequest.Code:   http.StatusBadRequest,
	core.ErrUnauthorized.Code:     http.StatusUnauthorized,
	core.ErrProviderFailed.Code:   http.StatusBadGateway,
	core.ErrLLMFailed.Code:        http.StatusBadGateway,
	core.ErrProviderTimeout.Code:  http.StatusGatewayTimeout,
	core.ErrLLMTimeout.Code:       http.StatusGatewayTimeout,
}

// StatusFor maps an error to an HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		if status, ok := statusByCode[coreErr.Code]; ok {
			return status
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
