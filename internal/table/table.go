// Package table turns API records into the rows both front ends render:
// filtered, sorted, formatted for display and totalled.
package table

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/sorting"
)

// Column describes one table column.
type Column struct {
	Key      string
	Title    string
	Sortable bool
}

// KeyUsage identifies the computed usage column.
const KeyUsage = "usage"

// Columns lists the table columns in display order.
var Columns = []Column{
	{Key: models.KeyID, Title: "ID", Sortable: true},
	{Key: models.KeyIPAddress, Title: "IP", Sortable: true},
	{Key: models.KeyDescription, Title: "Description", Sortable: true},
	{Key: models.KeyActivatedAt, Title: "Activated", Sortable: true},
	{Key: models.KeyExpiresAt, Title: "Expires", Sortable: true},
	{Key: models.KeyMonthlyQuota, Title: "Monthly quota", Sortable: true},
	{Key: models.KeyLoaded, Title: "Loaded", Sortable: true},
	{Key: KeyUsage, Title: "Usage %"},
}

// SortableKeys returns the keys of the sortable columns in display order.
func SortableKeys() []string {
	var keys []string
	for _, c := range Columns {
		if c.Sortable {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Criteria filters records by case-insensitive substrings. Empty values
// match everything.
type Criteria struct {
	IP          string
	Description string
}

func (c Criteria) Empty() bool {
	return strings.TrimSpace(c.IP) == "" && strings.TrimSpace(c.Description) == ""
}

// Filter returns the records matching every criterion, in input order.
func Filter(records []models.Record, c Criteria) []models.Record {
	fold := cases.Fold()
	ip := fold.String(strings.TrimSpace(c.IP))
	desc := fold.String(strings.TrimSpace(c.Description))

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if ip != "" && !strings.Contains(fold.String(r.IPAddress), ip) {
			continue
		}
		if desc != "" && !strings.Contains(fold.String(r.Description), desc) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Row is a record with its display cells, in Columns order.
type Row struct {
	Record  models.Record
	Cells   []string
	Expired bool
}

// Options controls Build.
type Options struct {
	Criteria Criteria
	Sort     sorting.State
	Now      time.Time
}

// View is the rendered table.
type View struct {
	Rows    []Row
	Summary models.Summary
}

// Build filters, sorts and formats records. Totals cover the filtered rows.
func Build(records []models.Record, opts Options) View {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	filtered := sorting.Sort(Filter(records, opts.Criteria), opts.Sort)
	rows := make([]Row, 0, len(filtered))
	for _, r := range filtered {
		rows = append(rows, Row{
			Record:  r,
			Cells:   Cells(r),
			Expired: r.Expired(now),
		})
	}
	return View{Rows: rows, Summary: models.Summarize(filtered)}
}

// Cells formats r for display, one string per column.
func Cells(r models.Record) []string {
	return []string{
		string(r.ID),
		r.IPAddress,
		r.Description,
		brfmt.FormatDateTime(r.ActivatedAt),
		brfmt.FormatDateTime(r.ExpiresAt),
		brfmt.FormatInt(int64(r.MonthlyQuota)),
		brfmt.FormatInt(int64(r.Loaded)),
		r.UsagePercent() + "%",
	}
}

// Totals returns the formatted totals line: rows, quota and loaded.
func (v View) Totals() (rows, quota, loaded string) {
	return brfmt.FormatInt(int64(v.Summary.Rows)),
		brfmt.FormatInt(v.Summary.TotalQuota),
		brfmt.FormatInt(v.Summary.TotalLoaded)
}
