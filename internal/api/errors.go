package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danieldevos90/brutally-honest-ai/internal/extract"
	"github.com/danieldevos90/brutally-honest-ai/internal/jobs"
	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/pipeline"
	"github.com/danieldevos90/brutally-honest-ai/internal/retrieve"
	"github.com/danieldevos90/brutally-honest-ai/internal/storage"
)

// Error is an error with the HTTP status it should be reported with
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func newError(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// toAPIError maps domain errors onto HTTP statuses
func toAPIError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return newError(http.StatusNotFound, "not_found", err)
	case errors.Is(err, jobs.ErrEmptyInput), errors.Is(err, pipeline.ErrEmptyDocument):
		return newError(http.StatusBadRequest, "empty_input", err)
	case errors.Is(err, jobs.ErrUnsupportedInput):
		return newError(http.StatusBadRequest, "unsupported_input", err)
	case errors.Is(err, extract.ErrUnsupportedType):
		return newError(http.StatusUnsupportedMediaType, "unsupported_type", err)
	case errors.Is(err, jobs.ErrMissingOwner):
		return newError(http.StatusUnauthorized, "missing_owner", err)
	case errors.Is(err, model.ErrTerminal), errors.Is(err, jobs.ErrNotTerminal):
		return newError(http.StatusConflict, "conflict", err)
	case errors.Is(err, retrieve.ErrAllSourcesFailed):
		return newError(http.StatusServiceUnavailable, "evidence_unavailable", err)
	case errors.Is(err, pipeline.ErrDisallowed):
		return newError(http.StatusForbidden, "disallowed", err)
	case errors.As(err, &maxBytes):
		return newError(http.StatusRequestEntityTooLarge, "too_large", err)
	default:
		return newError(http.StatusInternalServerError, "internal", err)
	}
}

func respondError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	_ = c.Error(apiErr)
	msg := apiErr.Error()
	if apiErr.Status >= http.StatusInternalServerError && apiErr.Status != http.StatusServiceUnavailable {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(apiErr.Status, ErrorResponse{Error: msg, Code: apiErr.Code})
}
