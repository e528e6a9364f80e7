package system

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"

	"github.com/julianstephens/authip/internal/backup"
	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/journal/sqlite"
)

// staleSnapshotAge is how old the newest snapshot may get before doctor warns.
const staleSnapshotAge = 7 * 24 * time.Hour

var errNotSQLite = errors.New("snapshots are only supported for SQLite journals, use pg_dump for PostgreSQL")

// confirmRestoreFunc asks before overwriting the journal; replaced in tests.
var confirmRestoreFunc = func(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Restore").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

func snapshotManager(ctx *cli.Context) (*backup.Manager, error) {
	store, err := ctx.RequireJournal()
	if err != nil {
		return nil, err
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		return nil, errNotSQLite
	}
	return backup.NewManager(s.Path()).WithClock(ctx.Clock), nil
}

// JournalBackupCmd snapshots the SQLite journal
type JournalBackupCmd struct{}

func (cmd *JournalBackupCmd) Run(ctx *cli.Context) error {
	mgr, err := snapshotManager(ctx)
	if err != nil {
		return err
	}
	snap, err := mgr.Create()
	if err != nil {
		return err
	}
	ctx.Printf("✓ Journal snapshot created: %s (%s)\n", snap.Path, humanize.Bytes(uint64(snap.Size)))
	return nil
}

// JournalBackupsCmd lists the available journal snapshots
type JournalBackupsCmd struct{}

func (cmd *JournalBackupsCmd) Run(ctx *cli.Context) error {
	mgr, err := snapshotManager(ctx)
	if err != nil {
		return err
	}
	snaps, err := mgr.List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		ctx.Println("No journal snapshots")
		return nil
	}

	now := ctx.Clock()
	ctx.Printf("Snapshots in %s:\n", mgr.Dir())
	for _, s := range snaps {
		ctx.Printf("  %s  %s (%s)  %s\n",
			filepath.Base(s.Path),
			brfmt.DisplayInstant(s.Taken),
			humanize.RelTime(s.Taken, now, "ago", "from now"),
			humanize.Bytes(uint64(s.Size)),
		)
	}
	return nil
}

// JournalRestoreCmd replaces the journal with a snapshot
type JournalRestoreCmd struct {
	Snapshot string `arg:"" optional:"" help:"Snapshot file. Defaults to the newest one."`
	Yes      bool   `short:"y" help:"Restore without asking."`
}

func (cmd *JournalRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := snapshotManager(ctx)
	if err != nil {
		return err
	}

	path := cmd.Snapshot
	if path == "" {
		latest, ok, err := mgr.Latest()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no journal snapshots found. Use 'authip journal backup' to create one")
		}
		path = latest.Path
	} else if filepath.Dir(path) == "." {
		path = filepath.Join(mgr.Dir(), path)
	}

	if !cmd.Yes {
		ok, err := confirmRestoreFunc(fmt.Sprintf("Replace the journal with %s?", filepath.Base(path)))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !ok {
			ctx.Println("Restore cancelled")
			return nil
		}
	}

	// The store keeps a connection open on the file being replaced.
	if err := ctx.Journal.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	safety, err := mgr.Restore(path)
	if err != nil {
		return err
	}
	ctx.Printf("✓ Journal restored from %s\n", filepath.Base(path))
	if safety.Path != "" {
		ctx.Printf("  Previous journal saved as %s\n", filepath.Base(safety.Path))
	}
	return nil
}

// checkSnapshots reports on journal snapshots for doctor.
func checkSnapshots(ctx *cli.Context) {
	mgr, err := snapshotManager(ctx)
	switch {
	case errors.Is(err, errNotSQLite):
		ctx.Printf("⊘ Journal snapshots: SKIPPED (PostgreSQL journal)\n")
		return
	case err != nil:
		ctx.Printf("⊘ Journal snapshots: SKIPPED (journal unavailable)\n")
		return
	}

	latest, ok, err := mgr.Latest()
	switch {
	case err != nil:
		ctx.Printf("⚠ Journal snapshots: WARNING\n")
		ctx.Printf("   %v\n", err)
	case !ok:
		ctx.Printf("⚠ Journal snapshots: WARNING\n")
		ctx.Printf("   no snapshots yet - create one with 'authip journal backup'\n")
	case ctx.Clock().Sub(latest.Taken) > staleSnapshotAge:
		ctx.Printf("⚠ Journal snapshots: WARNING\n")
		ctx.Printf("   newest snapshot is from %s\n", humanize.RelTime(latest.Taken, ctx.Clock(), "ago", "from now"))
	default:
		ctx.Printf("✓ Journal snapshots: OK\n")
	}
}
