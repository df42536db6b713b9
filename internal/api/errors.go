package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/handlers"
)

// Request errors raised before the coordinator is called.
var (
	ErrRequestTooLarge = errors.New("request exceeds maximum upload size")
	ErrInvalidFile     = errors.New("invalid file")
	ErrNoFiles         = errors.New("no files provided")
	ErrTooManyFiles    = errors.New("too many files in batch")
	ErrMissingParam    = errors.New("missing required parameter")
	ErrInvalidParam    = errors.New("invalid query parameter")
)

// MapHTTPStatus converts errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, handlers.ErrInvalidBody),
		errors.Is(err, ErrInvalidFile),
		errors.Is(err, ErrNoFiles),
		errors.Is(err, ErrTooManyFiles),
		errors.Is(err, ErrMissingParam),
		errors.Is(err, ErrInvalidParam):
		return http.StatusBadRequest
	}

	switch domain.KindOf(err) {
	case domain.KindNotInitialized, domain.KindConnection:
		return http.StatusServiceUnavailable
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	handlers.RespondError(w, logger, MapHTTPStatus(err), err)
}

// batchStatus maps an aggregate outcome to a status code.
func batchStatus(s domain.Status, success int) int {
	switch s {
	case domain.StatusSuccess:
		return success
	case domain.StatusPartialFailure:
		return http.StatusMultiStatus
	case domain.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
