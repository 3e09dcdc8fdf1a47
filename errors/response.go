package errors

import (
	goerrors "errors"
	"net/http"
)

// Response is the JSON body written for an error over HTTP.
type Response struct {
	Error struct {
		Code      ErrorCode      `json:"code"`
		Message   string         `json:"message"`
		Retryable bool           `json:"retryable"`
		Details   map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// ToResponse converts any error into an HTTP status and a Response body.
// Non-AppError values are reported as an internal failure without leaking
// the underlying message.
func ToResponse(err error) (int, Response) {
	var resp Response

	var appErr *AppError
	if goerrors.As(err, &appErr) {
		resp.Error.Code = appErr.Code
		resp.Error.Message = appErr.Message
		resp.Error.Retryable = appErr.Retryable
		resp.Error.Details = appErr.Details
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, resp
	}

	resp.Error.Code = "INTERNAL_ERROR"
	resp.Error.Message = "An unexpected error occurred."
	return http.StatusInternalServerError, resp
}

// AsAppError extracts an *AppError from an error chain, or nil.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
