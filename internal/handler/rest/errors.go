package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	outerror "github.com/webitel/webitel-go-kit/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/exporter"
)

// writeError logs err, records it on the span and answers with an
// ApplicationError body translated to the caller's language.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)

	code := errors.Code(err)
	if code >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx, errors.Details(err), slog.String("path", r.URL.Path))
	} else {
		h.log.WarnContext(ctx, errors.Details(err), slog.String("path", r.URL.Path), slog.Int("code", code))
	}

	T := errors.Translator(r.Header.Get("Accept-Language"))
	id, detail := errorID(err, code), err.Error()
	var authErr errors.AuthError
	if errors.As(err, &authErr) {
		detail = authErr.Message(T)
	} else if code != http.StatusBadRequest {
		detail = errors.Message(T, id, detail)
	}

	appErr := &outerror.ApplicationError{
		Id:            id,
		DetailedError: detail,
		StatusCode:    code,
		Status:        http.StatusText(code),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(appErr)
}

func errorID(err error, code int) string {
	if id := errors.ID(err); id != "" {
		return id
	}
	var renderErr *exporter.RenderError
	if errors.As(err, &renderErr) {
		return "export.render_failed"
	}
	switch code {
	case http.StatusUnauthorized:
		return "api.process.unauthenticated"
	case http.StatusForbidden:
		return "api.process.unauthorized"
	case http.StatusNotFound:
		return "api.process.not_found"
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return "api.process.bad_args"
	default:
		return "api.process.internal"
	}
}
