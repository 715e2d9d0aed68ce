package rest

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	"github.com/webitel/inspection-exporter/internal/errors"
)

func (h *Handler) startBatch(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !isEmptyBody(err) {
			h.writeError(w, r, err)
			return
		}
	}
	filter, err := req.filter()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	opts, err := options.NewCreateOptions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	meta, err := h.exports.StartBatch(opts, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, meta)
}

func (h *Handler) startLatest(w http.ResponseWriter, r *http.Request) {
	opts, err := options.NewCreateOptions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	meta, err := h.exports.StartLatest(opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, meta)
}

func (h *Handler) exportHistory(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	size, err := intQuery(r, "size")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	opts, err := options.NewSearchOptions(r.Context(), page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := h.exports.History(opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) exportStatus(w http.ResponseWriter, r *http.Request) {
	meta, err := h.exports.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) cancelExport(w http.ResponseWriter, r *http.Request) {
	if err := h.exports.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) exportFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.exports.Open(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, file)
}

func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
