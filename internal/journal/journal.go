// Package journal defines the local audit trail of the mutations this
// client sent to the API. Backends live in the sqlite and postgres
// subpackages.
package journal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/authip/internal/constants"
)

// Entry is one recorded admin action.
type Entry struct {
	ID        string
	At        time.Time
	Action    string
	RecordID  string
	IPAddress string
	Detail    string
	Outcome   string
	Error     string
}

// NewEntry stamps an entry with a fresh ID and the current time. A non-nil
// err marks the outcome as failed.
func NewEntry(action, recordID, ip, detail string, err error) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		At:        time.Now().UTC(),
		Action:    action,
		RecordID:  recordID,
		IPAddress: ip,
		Detail:    detail,
		Outcome:   constants.OutcomeOK,
	}
	if err != nil {
		e.Outcome = constants.OutcomeError
		e.Error = err.Error()
	}
	return e
}

type Store interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// ForRecord returns up to limit entries about one record, newest first.
	ForRecord(ctx context.Context, recordID string, limit int) ([]Entry, error)

	Path() string
}

// IsPostgres reports whether target is a PostgreSQL connection URL.
func IsPostgres(target string) bool {
	return strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://")
}

// ClampLimit bounds a caller supplied limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultJournalLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
