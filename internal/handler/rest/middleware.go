package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/webitel/inspection-exporter/auth/permission"
	"github.com/webitel/inspection-exporter/internal/domain/model/options/util"
	"github.com/webitel/inspection-exporter/internal/errors"
)

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.log.ErrorContext(r.Context(), "[PANIC RECOVER]",
					slog.Any("err", rec),
					slog.String("stack", string(debug.Stack())),
				)
				h.writeError(w, r, errors.Internal(fmt.Sprint(rec), errors.WithID("api.process.internal")))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate attaches the caller's session to the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.auth.AuthorizeRequest(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ctx := util.ContextWithAuther(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require lets the request through only if the caller's role may perform action.
func (h *Handler) require(action permission.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := util.GetAutherOutOfContext(r.Context())
			if session == nil {
				h.writeError(w, r, errors.NewUnauthorizedError("auth.session.missing", "no session"))
				return
			}
			if !h.gate.Allowed(session.GetRole(), action) {
				h.writeError(w, r, errors.NewActionForbiddenError(string(session.GetRole()), string(action)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
