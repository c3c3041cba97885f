package tlcache

import (
	"errors"
	"net/http"
)

// NewResponse wraps a successful batch result in the caller envelope.
func NewResponse(result *BatchResult) Response {
	return Response{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    ResultSet{Results: result.Results, Langs: result.TargetLangs},
	}
}

// ErrorResponse maps a Translate error to the caller envelope. No partial
// data is ever attached to an error response.
func ErrorResponse(err error) Response {
	code := http.StatusInternalServerError
	var providerErr *ExternalTranslateError
	switch {
	case errors.Is(err, ErrEmptyRequest):
		code = http.StatusBadRequest
	case errors.As(err, &providerErr):
		code = http.StatusBadGateway
	}
	return Response{
		Code:    code,
		Message: err.Error(),
		Data:    ResultSet{Results: []Result{}},
	}
}
