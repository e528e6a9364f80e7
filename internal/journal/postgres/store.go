package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/journal"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/migration"
	"github.com/julianstephens/authip/migrations"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

type Store struct {
	connStr string
	db      *sql.DB
}

var _ journal.Store = (*Store)(nil)

// New returns a store for connStr with search_path pinned to the authip
// schema unless the caller set one.
func New(connStr string) *Store {
	return &Store{connStr: withSearchPath(connStr)}
}

func withSearchPath(connStr string) string {
	if journal.IsPostgres(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			logger.Warn("Failed to parse Postgres connection string", "error", err)
			return connStr
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.PostgresSearchSchema)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	if !hasParam(connStr, "search_path") {
		return strings.TrimSpace(connStr) + " search_path=" + constants.PostgresSearchSchema
	}
	return connStr
}

// hasParam reports whether a key=value DSN or a URL query carries key.
func hasParam(connStr, key string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for k := range u.Query() {
			if strings.EqualFold(k, key) {
				return true
			}
		}
	}
	for _, part := range strings.Fields(connStr) {
		k, _, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// ValidateConnString rejects malformed connection strings and strings with
// an embedded password. Use PGPASSWORD or .pgpass instead.
func ValidateConnString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}

	if journal.IsPostgres(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
		}
		if _, set := u.User.Password(); set {
			return ErrEmbeddedCredentials
		}
		if u.Query().Has("password") {
			return ErrEmbeddedCredentials
		}
		return nil
	}

	if hasParam(connStr, "password") {
		return ErrEmbeddedCredentials
	}
	return nil
}

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasParam(s.connStr, "sslmode") {
			return nil, fmt.Errorf("failed to connect to journal database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}
	return db, nil
}

// Init creates the schema if needed and applies pending migrations.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(constants.PostgresSearchSchema)); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

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

// Load connects and checks the schema version without migrating.
func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
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

// Path returns the connection string with any password redacted.
func (s *Store) Path() string {
	if u, err := url.Parse(s.connStr); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return s.connStr
}

func (s *Store) Append(ctx context.Context, e journal.Entry) error {
	if s.db == nil {
		return errors.New("journal is not open")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, at, action, record_id, ip_address, detail, outcome, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.At.UTC(), e.Action, e.RecordID, e.IPAddress, e.Detail, e.Outcome, e.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	return s.query(ctx, `
		SELECT id, at, action, record_id, ip_address, detail, outcome, error
		FROM journal_entries ORDER BY at DESC, id LIMIT $1`, journal.ClampLimit(limit))
}

func (s *Store) ForRecord(ctx context.Context, recordID string, limit int) ([]journal.Entry, error) {
	return s.query(ctx, `
		SELECT id, at, action, record_id, ip_address, detail, outcome, error
		FROM journal_entries WHERE record_id = $1 ORDER BY at DESC, id LIMIT $2`, recordID, journal.ClampLimit(limit))
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
		if err := rows.Scan(&e.ID, &e.At, &e.Action, &e.RecordID, &e.IPAddress, &e.Detail, &e.Outcome, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.At = e.At.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func newRunner(db *sql.DB) (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	return migration.NewRunner(db, subFS, migration.Postgres), nil
}
