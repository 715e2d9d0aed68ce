package rest

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/exporter"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFile(w http.ResponseWriter, f *exporter.File) {
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.BadRequest(fmt.Sprintf("invalid request body: %v", err), errors.WithCause(err))
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("id must be a positive integer")
	}
	return id, nil
}

func intQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.BadRequest(fmt.Sprintf("%s must be an integer", key))
	}
	return n, nil
}

// parseDate accepts 2006-01-02 or RFC 3339. An empty string is the zero time.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.BadRequest(fmt.Sprintf("invalid date %q", raw))
	}
	return t, nil
}

// endOfDay makes a date-only upper bound inclusive.
func endOfDay(raw string, t time.Time) time.Time {
	if t.IsZero() || len(raw) != len(time.DateOnly) {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}

func parseIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, errors.BadRequest(fmt.Sprintf("invalid vehicle id %q", part))
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type filterRequest struct {
	VehicleIDs []int64 `json:"vehicle_ids"`
	From       string  `json:"from"`
	To         string  `json:"to"`
}

func (f filterRequest) filter() (inspection.Filter, error) {
	from, err := parseDate(f.From)
	if err != nil {
		return inspection.Filter{}, err
	}
	to, err := parseDate(f.To)
	if err != nil {
		return inspection.Filter{}, err
	}
	return inspection.Filter{VehicleIDs: f.VehicleIDs, From: from, To: endOfDay(f.To, to)}, nil
}

func filterFromQuery(r *http.Request) (inspection.Filter, error) {
	q := r.URL.Query()
	ids, err := parseIDs(q["vehicle_id"])
	if err != nil {
		return inspection.Filter{}, err
	}
	return filterRequest{VehicleIDs: ids, From: q.Get("from"), To: q.Get("to")}.filter()
}
