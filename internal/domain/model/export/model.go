package export

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no worker will touch the job again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

type Kind string

const (
	// KindBatch zips one PNG per inspection.
	KindBatch Kind = "batch"
	// KindLatest saves each vehicle's latest inspection as its own PNG.
	KindLatest Kind = "latest"
)

const (
	MimePNG = "image/png"
	MimePDF = "application/pdf"
	MimeZip = "application/zip"
)

// --- Task & Metadata Models ---

// Task is the job persisted in Redis. It must be JSON-serializable.
type Task struct {
	JobID      string  `json:"job_id"`
	HistoryID  int64   `json:"history_id"`
	Kind       Kind    `json:"kind"`
	UserID     int64   `json:"user_id"`
	UserName   string  `json:"user_name"`
	Role       string  `json:"role"`
	VehicleIDs []int64 `json:"vehicle_ids,omitempty"`
	// From / To are Unix milliseconds bounds on the inspection date, 0 = open.
	From int64 `json:"from,omitempty"`
	To   int64 `json:"to,omitempty"`
}

type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// File is one produced artifact, stored under Key in blob storage.
type File struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type JobMetadata struct {
	JobID    string   `json:"job_id"`
	Kind     Kind     `json:"kind"`
	Status   Status   `json:"status"`
	Progress Progress `json:"progress"`
	Skipped  int      `json:"skipped"`
	Files    []File   `json:"files,omitempty"`
	Error    string   `json:"error,omitempty"`
	// CreatedBy is the user who started the export.
	CreatedBy int64 `json:"created_by"`
	// Finalizing is set once every inspection is done; the job can no longer
	// be cancelled.
	Finalizing bool `json:"finalizing,omitempty"`
}

// --- Persistence Models (Storage/DB) ---

type NewHistory struct {
	JobID     string `db:"job_id"`
	Kind      Kind   `db:"kind"`
	Status    Status `db:"status"`
	Total     int    `db:"total"`
	CreatedAt int64  `db:"created_at"`
	CreatedBy int64  `db:"created_by"`
}

// UpdateHistory moves an export to a new status and attaches produced files.
type UpdateHistory struct {
	ID        int64  `db:"id"`
	Status    Status `db:"status"`
	Completed int    `db:"completed"`
	Skipped   int    `db:"skipped"`
	Files     []File `db:"files"`
	Error     string `db:"error"`
	UpdatedBy int64  `db:"updated_by"`
}

type HistoryRecord struct {
	ID        int64     `json:"id" db:"id"`
	JobID     string    `json:"job_id" db:"job_id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Status    Status    `json:"status" db:"status"`
	Total     int       `json:"total" db:"total"`
	Completed int       `json:"completed" db:"completed"`
	Skipped   int       `json:"skipped" db:"skipped"`
	Files     []File    `json:"files" db:"files"`
	Error     string    `json:"error,omitempty" db:"error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	UpdatedBy *int64    `json:"updated_by,omitempty" db:"updated_by"`
}

type HistoryRequest struct {
	CreatedBy int64
	Page      int
	Size      int
}

type HistoryResponse struct {
	Page int              `json:"page"`
	Next bool             `json:"next"`
	Data []*HistoryRecord `json:"data"`
}
