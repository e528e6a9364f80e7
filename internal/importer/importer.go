// Package importer creates whitelist records in bulk from a YAML file.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/whitelist"
)

// File is the import document.
type File struct {
	Records []Entry `yaml:"records"`
}

// Entry is one record to create. Expires is dd/mm/yyyy and Quota may use
// "." grouping.
type Entry struct {
	IP          string `yaml:"ip"`
	Description string `yaml:"description"`
	Expires     string `yaml:"expires"`
	Quota       string `yaml:"quota"`
}

// Draft converts e, defaulting the expiration to today+31 days.
func (e Entry) Draft(now time.Time) models.Draft {
	expires := e.Expires
	if expires == "" {
		expires = brfmt.DefaultExpiration(now)
	}
	return models.Draft{
		IPAddress:   e.IP,
		Description: e.Description,
		ExpiresOn:   expires,
		Quota:       e.Quota,
	}
}

// Parse decodes an import document.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, errors.New("import file is empty")
		}
		return File{}, fmt.Errorf("failed to parse import file: %w", err)
	}
	return f, nil
}

// Load reads and decodes the import document at path.
func Load(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to open import file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

type Status string

const (
	StatusCreated Status = "created"
	StatusValid   Status = "valid"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

type Result struct {
	Entry  Entry
	Status Status
	Record *models.Record
	Err    error
}

type Report struct {
	Results []Result
}

// Count returns the number of results with status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Service is the subset of whitelist.Service used by Run.
type Service interface {
	List(ctx context.Context) ([]models.Record, error)
	Create(ctx context.Context, d models.Draft) (*models.Record, error)
}

type Options struct {
	DryRun bool
	Now    time.Time
}

// Run creates every entry of f in order. Duplicates are skipped and other
// failures recorded; processing always continues with the next entry.
// In dry-run mode entries are only validated against one snapshot.
func Run(ctx context.Context, svc Service, f File, opts Options) (Report, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var report Report
	if opts.DryRun {
		existing, err := svc.List(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to list records: %w", err)
		}
		for _, e := range f.Records {
			res := Result{Entry: e, Status: StatusValid}
			d := e.Draft(now)
			if err := d.Validate(); err != nil {
				res.Status, res.Err = StatusFailed, err
			} else if _, dup := whitelist.FindIP(existing, d.IPAddress); dup {
				res.Status, res.Err = StatusSkipped, whitelist.ErrDuplicateIP
			} else {
				existing = append(existing, models.Record{IPAddress: d.Payload().IPAddress})
			}
			report.Results = append(report.Results, res)
		}
		return report, nil
	}

	for _, e := range f.Records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := Result{Entry: e, Status: StatusCreated}
		rec, err := svc.Create(ctx, e.Draft(now))
		switch {
		case errors.Is(err, whitelist.ErrDuplicateIP):
			res.Status, res.Err = StatusSkipped, err
		case err != nil:
			res.Status, res.Err = StatusFailed, err
			logger.Warn("Import entry failed", "ip", e.IP, "error", err)
		default:
			res.Record = rec
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}
