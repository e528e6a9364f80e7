package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/authip/internal/journal"
	"github.com/julianstephens/authip/internal/migration"
	"github.com/julianstephens/authip/migrations"
)

// timeLayout is fixed width so entries sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotInitialized is returned by Load when the journal file does not exist.
var ErrNotInitialized = errors.New("journal not initialized")

type Store struct {
	path string
	db   *sql.DB
}

var _ journal.Store = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init creates the journal file if needed and applies pending migrations.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between the web server's handlers.
	db.SetMaxOpenConns(1)

	runner, err := newRunner(db)
	if err != nil {
		db.Close()
		return err
	}
	if _, err := runner.Apply(context.Background()); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.db = db
	return nil
}

// Load opens an existing journal and checks its schema version.
func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotInitialized, s.path)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	runner, err := newRunner(db)
	if err != nil {
		db.Close()
		return err
	}
	if err := runner.Validate(context.Background()); err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Append(ctx context.Context, e journal.Entry) error {
	if s.db == nil {
		return errors.New("journal is not open")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, at, action, record_id, ip_address, detail, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UTC().Format(timeLayout), e.Action, e.RecordID, e.IPAddress, e.Detail, e.Outcome, e.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	return s.query(ctx, `
		SELECT id, at, action, record_id, ip_address, detail, outcome, error
		FROM journal_entries ORDER BY at DESC, id LIMIT ?`, journal.ClampLimit(limit))
}

func (s *Store) ForRecord(ctx context.Context, recordID string, limit int) ([]journal.Entry, error) {
	return s.query(ctx, `
		SELECT id, at, action, record_id, ip_address, detail, outcome, error
		FROM journal_entries WHERE record_id = ? ORDER BY at DESC, id LIMIT ?`, recordID, journal.ClampLimit(limit))
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]journal.Entry, error) {
	if s.db == nil {
		return nil, errors.New("journal is not open")
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var e journal.Entry
		var at string
		if err := rows.Scan(&e.ID, &at, &e.Action, &e.RecordID, &e.IPAddress, &e.Detail, &e.Outcome, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q in journal: %w", at, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func newRunner(db *sql.DB) (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(db, subFS, migration.SQLite), nil
}
