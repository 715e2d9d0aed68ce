package exporter

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
)

// DateLayout renders dates as 05-Mar-2024.
const DateLayout = "02-Jan-2006"

func collapse(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

// stem is "{registration_}{vehicleName}", registration left out when empty.
func stem(v inspection.Vehicle) string {
	name := collapse(v.Name)
	if name == "" {
		name = fmt.Sprintf("vehicle_%d", v.ID)
	}
	if reg := collapse(v.Registration); reg != "" {
		return reg + "_" + name
	}
	return name
}

func (f Format) ext() string {
	if f == FormatPDF {
		return "pdf"
	}
	return "png"
}

// SingleFileName names a one-off export of rec.
func SingleFileName(rec *inspection.Record, f Format) string {
	return fmt.Sprintf("%s_inspection_%s.%s", stem(rec.Vehicle), rec.InspectedAt.Format(DateLayout), f.ext())
}

// BatchEntryName names rec inside a batch archive.
func BatchEntryName(rec *inspection.Record) string {
	return fmt.Sprintf("%s_%s.png", stem(rec.Vehicle), rec.InspectedAt.Format(DateLayout))
}

// LatestFileName names the standalone image of a vehicle's latest inspection.
func LatestFileName(rec *inspection.Record) string {
	return fmt.Sprintf("%s_export_%s.png", stem(rec.Vehicle), rec.InspectedAt.Format(DateLayout))
}

func BatchFolder(exported time.Time) string {
	return "inspections_" + exported.Format(DateLayout)
}

func ArchiveName(exported time.Time) string {
	return "inspections_export_" + exported.Format(DateLayout) + ".zip"
}

// disambiguate returns name unchanged if it is free, otherwise with the record
// id (and a counter, if still needed) before the extension.
func disambiguate(name string, recordID int64, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := fmt.Sprintf("%s_%d%s", base, recordID, ext)
	for i := 2; taken(candidate); i++ {
		candidate = fmt.Sprintf("%s_%d_%d%s", base, recordID, i, ext)
	}
	return candidate
}
