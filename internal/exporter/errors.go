package exporter

import (
	"fmt"
	"net/http"

	"github.com/webitel/inspection-exporter/internal/errors"
)

var (
	ErrNothingToExport = errors.Unprocessable("nothing to export",
		errors.WithID("export.nothing_to_export"))
	ErrCancelNotAllowed = errors.Conflict("export is finishing and can no longer be cancelled",
		errors.WithID("export.cancel_not_allowed"))
	ErrCancelled = errors.New("export cancelled",
		errors.WithID("export.cancelled"), errors.WithCode(http.StatusConflict))
)

// RenderError is a failure to produce the output of one inspection.
type RenderError struct {
	RecordID int64
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("export inspection %d: %v", e.RecordID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) StatusCode() int { return http.StatusInternalServerError }

// IsCancelled reports whether err stopped a job on request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
