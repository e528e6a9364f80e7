package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/ipmatch"
	"github.com/julianstephens/authip/internal/keyring"
	"github.com/julianstephens/authip/internal/lockfile"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
)

type DoctorCmd struct {
	Timeout time.Duration `help:"Timeout for the API check." default:"10s"`
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	report := func(name string, err error) bool {
		if err != nil {
			ctx.Printf("❌ %s: FAIL\n", name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
			return false
		}
		ctx.Printf("✓ %s: OK\n", name)
		return true
	}
	warn := func(name string, err error) {
		if err != nil {
			ctx.Printf("⚠ %s: WARNING\n", name)
			ctx.Printf("   %v\n", err)
			return
		}
		ctx.Printf("✓ %s: OK\n", name)
	}

	// Check 1: Config directory writable
	report("Config directory", checkConfigDir(ctx.ConfigDir))

	// Check 2: Token (warning only, the API may be open)
	warn("API token", checkToken())

	// Check 3: API reachable
	records, err := checkAPI(ctx, cmd.Timeout)
	apiReachable := report("API reachable", err)

	// Check 4: Record integrity (only if the API is reachable)
	if apiReachable {
		warn("Record integrity", checkRecords(records, ctx.Clock()))
	} else {
		ctx.Printf("⊘ Record integrity: SKIPPED (API not reachable)\n")
	}

	// Check 5: Journal schema
	report("Journal", checkJournal(ctx))

	// Check 6: Journal snapshots (SQLite only)
	checkSnapshots(ctx)

	// Check 7: Timezone data
	warn("Timezone data", checkTimezone())

	// Check 8: Admin server lock (informational)
	checkServerLock(ctx)

	if path := logger.File(); path != "" {
		ctx.Printf("ℹ Log file: %s\n", path)
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return errors.New("one or more health checks failed")
	}

	ctx.Println("All diagnostics passed!")
	return nil
}

func checkConfigDir(dir string) error {
	if dir == "" {
		return errors.New("config directory not set")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkToken() error {
	_, source, err := keyring.ResolveToken()
	if err != nil {
		return fmt.Errorf("keyring lookup failed: %w", err)
	}
	if source == keyring.SourceNone {
		return fmt.Errorf("no API token configured - store one with 'authip token set' or set %s", constants.TokenEnvVar)
	}
	return nil
}

func checkAPI(ctx *cli.Context, timeout time.Duration) ([]models.Record, error) {
	if ctx.Service == nil {
		return nil, errors.New("API client not configured")
	}
	reqCtx, cancel := context.WithTimeout(ctx.Background(), timeout)
	defer cancel()
	records, err := ctx.Service.List(reqCtx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func checkRecords(records []models.Record, now time.Time) error {
	m := ipmatch.New(records, ipmatch.Options{IncludeExpired: true, Now: now})
	expired := 0
	for _, r := range records {
		if r.Expired(now) {
			expired++
		}
	}
	switch {
	case m.Skipped() > 0:
		return fmt.Errorf("%d of %d records have an unreadable IP", m.Skipped(), len(records))
	case expired > 0:
		return fmt.Errorf("%d of %d records are expired", expired, len(records))
	}
	return nil
}

func checkJournal(ctx *cli.Context) error {
	store, err := ctx.RequireJournal()
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load journal at %s: %w", store.Path(), err)
	}
	if _, err := store.Recent(ctx.Background(), 1); err != nil {
		return fmt.Errorf("failed to query journal: %w", err)
	}
	return nil
}

func checkTimezone() error {
	if _, err := time.LoadLocation(constants.APITimezone); err != nil {
		return fmt.Errorf("%s unavailable, using a fixed UTC-3 offset: %w", constants.APITimezone, err)
	}
	return nil
}

func checkServerLock(ctx *cli.Context) {
	path := lockfile.Path(ctx.ConfigDir)
	info, err := lockfile.Read(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		ctx.Printf("ℹ Admin server: not running\n")
	case err != nil:
		ctx.Printf("⚠ Admin server: WARNING\n")
		ctx.Printf("   unreadable lockfile %s: %v\n", filepath.Base(path), err)
	case lockfile.Alive(info):
		ctx.Printf("ℹ Admin server: running (pid %d, port %d)\n", info.PID, info.Port)
	default:
		ctx.Printf("⚠ Admin server: WARNING\n")
		ctx.Printf("   stale lockfile from pid %d, it will be replaced on the next 'authip serve'\n", info.PID)
	}
}
