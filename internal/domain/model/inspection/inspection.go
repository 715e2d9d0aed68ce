// Package inspection holds the weekly vehicle inspection record and the
// vehicles it refers to.
package inspection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type CheckResult string

const (
	Unset         CheckResult = ""
	Satisfactory  CheckResult = "satisfactory"
	Defective     CheckResult = "defective"
	NotApplicable CheckResult = "not_applicable"
)

func (r CheckResult) Valid() bool {
	switch r {
	case Satisfactory, Defective, NotApplicable:
		return true
	default:
		return false
	}
}

type CheckName string

type Group struct {
	Title  string
	Checks []CheckName
}

// Groups is the fixed checklist, in report order.
var Groups = []Group{
	{Title: "Fluid Levels", Checks: []CheckName{
		"engine_oil", "coolant", "brake_fluid", "power_steering_fluid", "washer_fluid",
	}},
	{Title: "Lights", Checks: []CheckName{
		"headlights", "brake_lights", "indicators", "reverse_lights", "hazard_lights",
	}},
	{Title: "Body & Interior", Checks: []CheckName{
		"tyres", "windscreen", "wipers", "mirrors", "bodywork", "seatbelts", "horn", "interior_clean",
	}},
}

// Label turns "brake_fluid" into "Brake fluid".
func (n CheckName) Label() string {
	s := strings.ReplaceAll(string(n), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func AllChecks() []CheckName {
	var out []CheckName
	for _, g := range Groups {
		out = append(out, g.Checks...)
	}
	return out
}

// RequiredPhotos is the number of photos a submission must carry.
const RequiredPhotos = 4

type Vehicle struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Registration string `json:"registration,omitempty"`
}

type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Photo is stored either as a bare URL string or as {url, path}; Path is the
// blob storage key when the photo lives in our storage.
type Photo struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
}

func (p *Photo) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		*p = Photo{URL: url}
		return nil
	}
	type plain Photo
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("photo must be a url string or {url, path}: %w", err)
	}
	*p = Photo(obj)
	return nil
}

type Record struct {
	ID          int64                     `json:"id"`
	Vehicle     Vehicle                   `json:"vehicle"`
	Inspector   User                      `json:"inspector"`
	InspectedAt time.Time                 `json:"inspected_at"`
	CreatedAt   time.Time                 `json:"created_at"`
	Odometer    int64                     `json:"odometer"`
	Checks      map[CheckName]CheckResult `json:"checks"`
	Comments    string                    `json:"comments,omitempty"`
	DamageNotes string                    `json:"damage_notes,omitempty"`
	Photos      []Photo                   `json:"photos"`
}

func (r *Record) Result(name CheckName) CheckResult {
	return r.Checks[name]
}

// HasDefects is true iff any check is defective.
func (r *Record) HasDefects() bool {
	for _, res := range r.Checks {
		if res == Defective {
			return true
		}
	}
	return false
}

// Validate enforces the submission rules: every check set, exactly four photos.
func (r *Record) Validate() error {
	if r.Vehicle.ID == 0 {
		return fmt.Errorf("vehicle is required")
	}
	if r.InspectedAt.IsZero() {
		return fmt.Errorf("inspection date is required")
	}
	if r.Odometer < 0 {
		return fmt.Errorf("odometer must not be negative")
	}
	var missing []string
	for _, name := range AllChecks() {
		if !r.Checks[name].Valid() {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("checks not set: %s", strings.Join(missing, ", "))
	}
	for name := range r.Checks {
		if !isKnownCheck(name) {
			return fmt.Errorf("unknown check %q", name)
		}
	}
	if len(r.Photos) != RequiredPhotos {
		return fmt.Errorf("exactly %d photos are required, got %d", RequiredPhotos, len(r.Photos))
	}
	for i, p := range r.Photos {
		if p.URL == "" && p.Path == "" {
			return fmt.Errorf("photo %d is empty", i+1)
		}
	}
	return nil
}

func isKnownCheck(name CheckName) bool {
	for _, n := range AllChecks() {
		if n == name {
			return true
		}
	}
	return false
}

// Newer orders by inspection date, then creation time, both descending.
func Newer(a, b *Record) bool {
	if !a.InspectedAt.Equal(b.InspectedAt) {
		return a.InspectedAt.After(b.InspectedAt)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// SortNewestFirst sorts in place using Newer.
func SortNewestFirst(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool { return Newer(records[i], records[j]) })
}

// Filter narrows a listing. Zero values mean no constraint.
type Filter struct {
	VehicleIDs []int64
	From       time.Time
	To         time.Time
}
