// Package backup keeps rotated snapshots of the SQLite journal.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/authip/internal/logger"
)

const (
	MaxSnapshots = 14
	DirName      = "backups"
	FilePrefix   = "journal-"
	FileSuffix   = ".db"

	stampLayout = "20060102-150405"
)

var ErrNoJournal = errors.New("journal file does not exist")

type Snapshot struct {
	Path    string
	Taken   time.Time
	Size    int64
	Ordinal int
}

type Manager struct {
	journalPath string
	dir         string
	keep        int
	now         func() time.Time
}

// NewManager stores snapshots in a backups directory next to the journal file.
func NewManager(journalPath string) *Manager {
	return &Manager{
		journalPath: journalPath,
		dir:         filepath.Join(filepath.Dir(journalPath), DirName),
		keep:        MaxSnapshots,
		now:         time.Now,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

// WithClock replaces the clock used to stamp snapshot names.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithKeep changes how many snapshots rotation retains.
func (m *Manager) WithKeep(n int) *Manager {
	if n > 0 {
		m.keep = n
	}
	return m
}

// Create writes a new snapshot and prunes the oldest beyond the retention limit.
func (m *Manager) Create() (Snapshot, error) {
	snap, err := m.create()
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate journal snapshots", "dir", m.dir, "error", err)
	}
	return snap, nil
}

func (m *Manager) create() (Snapshot, error) {
	if _, err := os.Stat(m.journalPath); errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoJournal, m.journalPath)
	}
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.vacuumInto(path); err != nil {
		return Snapshot{}, fmt.Errorf("failed to snapshot journal: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, err
	}
	snap, _ := parseName(filepath.Base(path))
	snap.Path = path
	snap.Size = info.Size()
	logger.Info("Journal snapshot created", "path", path, "size", snap.Size)
	return snap, nil
}

// nextPath picks a name from the clock, appending an ordinal when the second is taken.
func (m *Manager) nextPath() (string, error) {
	stamp := m.now().UTC().Format(stampLayout)
	path := filepath.Join(m.dir, FilePrefix+stamp+FileSuffix)
	for i := 1; fileExists(path); i++ {
		if i > 99 {
			return "", errors.New("failed to pick a unique snapshot name")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s-%d%s", FilePrefix, stamp, i, FileSuffix))
	}
	return path, nil
}

func (m *Manager) vacuumInto(dest string) error {
	db, err := sql.Open("sqlite", m.journalPath+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		return fmt.Errorf("journal appears to be corrupted: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", dest); err != nil {
		db.Close()
		return copyFile(m.journalPath, dest)
	}
	return nil
}

// List returns the snapshots on disk, newest first.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		snap, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snap.Path = filepath.Join(m.dir, entry.Name())
		snap.Size = info.Size()
		snaps = append(snaps, snap)
	}

	slices.SortFunc(snaps, func(a, b Snapshot) int {
		if c := b.Taken.Compare(a.Taken); c != 0 {
			return c
		}
		return b.Ordinal - a.Ordinal
	})
	return snaps, nil
}

// Latest returns the newest snapshot, or false when there is none.
func (m *Manager) Latest() (Snapshot, bool, error) {
	snaps, err := m.List()
	if err != nil || len(snaps) == 0 {
		return Snapshot{}, false, err
	}
	return snaps[0], true, nil
}

func (m *Manager) rotate() error {
	snaps, err := m.List()
	if err != nil {
		return err
	}
	if len(snaps) <= m.keep {
		return nil
	}
	for _, s := range snaps[m.keep:] {
		if err := os.Remove(s.Path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", s.Path, err)
		}
		logger.Debug("Removed old journal snapshot", "path", s.Path)
	}
	return nil
}

// Restore replaces the journal with the snapshot at path. The current journal
// is snapshotted first, outside rotation, so a restore can be undone.
// The journal must not be open while restoring.
func (m *Manager) Restore(path string) (Snapshot, error) {
	if !fileExists(path) {
		return Snapshot{}, fmt.Errorf("snapshot does not exist: %s", path)
	}
	if err := verify(path); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot is not a valid journal: %w", err)
	}

	var safety Snapshot
	if fileExists(m.journalPath) {
		var err error
		if safety, err = m.create(); err != nil {
			return Snapshot{}, fmt.Errorf("failed to snapshot current journal: %w", err)
		}
	}

	tmp := m.journalPath + ".restore"
	if err := copyFile(path, tmp); err != nil {
		return Snapshot{}, fmt.Errorf("failed to stage snapshot: %w", err)
	}
	if err := os.Rename(tmp, m.journalPath); err != nil {
		_ = os.Remove(tmp)
		return Snapshot{}, fmt.Errorf("failed to replace journal: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(m.journalPath + suffix)
	}
	logger.Info("Journal restored", "from", path, "safety", safety.Path)
	return safety, nil
}

func verify(path string) error {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// parseName accepts journal-YYYYMMDD-HHMMSS.db and journal-YYYYMMDD-HHMMSS-N.db.
func parseName(name string) (Snapshot, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
		return Snapshot{}, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix)
	if len(rest) < len(stampLayout) {
		return Snapshot{}, false
	}
	taken, err := time.Parse(stampLayout, rest[:len(stampLayout)])
	if err != nil {
		return Snapshot{}, false
	}
	snap := Snapshot{Taken: taken}
	if tail := rest[len(stampLayout):]; tail != "" {
		if _, err := fmt.Sscanf(tail, "-%d", &snap.Ordinal); err != nil || snap.Ordinal < 1 {
			return Snapshot{}, false
		}
	}
	return snap, true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
