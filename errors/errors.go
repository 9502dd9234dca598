package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by the pipeline stage that produced it. The
// orchestrator uses the kind to pick a fallback; only KindInvalidReference
// ever reaches the caller as a hard failure.
type Kind string

const (
	KindInvalidReference Kind = "invalid_reference"
	KindAcquisition      Kind = "acquisition"
	KindUpload           Kind = "upload"
	KindTranscription    Kind = "transcription"
	KindEnrichment       Kind = "enrichment"
	KindCacheIO          Kind = "cache_io"
	KindNotFound         Kind = "not_found"
	KindInternal         Kind = "internal"
)

type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code int, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// InvalidReference marks a bad or unsupported video identifier. This is the
// only kind returned to HTTP callers as a failure.
func InvalidReference(op string, err error, message string) *AppError {
	return newError(KindInvalidReference, http.StatusBadRequest, op, err, message)
}

func Acquisition(op string, err error, message string) *AppError {
	return newError(KindAcquisition, http.StatusBadGateway, op, err, message)
}

func Upload(op string, err error, message string) *AppError {
	return newError(KindUpload, http.StatusBadGateway, op, err, message)
}

func Transcription(op string, err error, message string) *AppError {
	return newError(KindTranscription, http.StatusBadGateway, op, err, message)
}

func Enrichment(op string, err error, message string) *AppError {
	return newError(KindEnrichment, http.StatusBadGateway, op, err, message)
}

func CacheIO(op string, err error, message string) *AppError {
	return newError(KindCacheIO, http.StatusInternalServerError, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return newError(KindNotFound, http.StatusNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return newError(KindInternal, http.StatusInternalServerError, op, err, message)
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
