package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	"github.com/webitel/inspection-exporter/internal/domain/model/options/util"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/exporter"
)

const maxPhotoBytes = 20 << 20

type permissionsResponse struct {
	Role    string   `json:"role"`
	Actions []string `json:"actions"`
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	session := util.GetAutherOutOfContext(r.Context())
	resp := permissionsResponse{Role: string(session.GetRole()), Actions: []string{}}
	for _, a := range h.gate.AllowedActions(session.GetRole()) {
		resp.Actions = append(resp.Actions, string(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.inspections.Vehicles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if vehicles == nil {
		vehicles = []inspection.Vehicle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": vehicles})
}

type listResponse struct {
	Page int                  `json:"page"`
	Next bool                 `json:"next"`
	Data []*inspection.Record `json:"data"`
}

func (h *Handler) listInspections(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
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
	records, next, err := h.inspections.List(opts, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*inspection.Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{Page: opts.Page, Next: next, Data: records})
}

type submitRequest struct {
	VehicleID   int64                                           `json:"vehicle_id"`
	InspectedAt string                                          `json:"inspected_at"`
	Odometer    int64                                           `json:"odometer"`
	Checks      map[inspection.CheckName]inspection.CheckResult `json:"checks"`
	Comments    string                                          `json:"comments"`
	DamageNotes string                                          `json:"damage_notes"`
	Photos      []inspection.Photo                              `json:"photos"`
}

func (h *Handler) submitInspection(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	inspectedAt, err := parseDate(req.InspectedAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	opts, err := options.NewCreateOptions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.inspections.Submit(opts, &inspection.Record{
		Vehicle:     inspection.Vehicle{ID: req.VehicleID},
		InspectedAt: inspectedAt,
		Odometer:    req.Odometer,
		Checks:      req.Checks,
		Comments:    strings.TrimSpace(req.Comments),
		DamageNotes: strings.TrimSpace(req.DamageNotes),
		Photos:      req.Photos,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) getInspection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.inspections.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) deleteInspection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	opts, err := options.NewDeleteOptions(r.Context(), []int64{id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.inspections.Delete(opts); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) exportInspection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	format, ok := exporter.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		h.writeError(w, r, errors.BadRequest("format must be image or pdf"))
		return
	}
	file, err := h.exports.ExportOne(r.Context(), id, format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, file)
}

func (h *Handler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	file, _, err := r.FormFile("photo")
	if err != nil {
		h.writeError(w, r, errors.BadRequest("multipart field 'photo' is required", errors.WithCause(err)))
		return
	}
	defer file.Close()

	opts, err := options.NewCreateOptions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	photo, err := h.inspections.UploadPhoto(opts, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

func (h *Handler) getPhoto(w http.ResponseWriter, r *http.Request) {
	data, err := h.inspections.OpenPhoto(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
