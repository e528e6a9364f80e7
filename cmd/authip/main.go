package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/authip/internal/api"
	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/cli/records"
	"github.com/julianstephens/authip/internal/cli/system"
	"github.com/julianstephens/authip/internal/constants"
	apperrors "github.com/julianstephens/authip/internal/errors"
	"github.com/julianstephens/authip/internal/journal"
	"github.com/julianstephens/authip/internal/journal/postgres"
	"github.com/julianstephens/authip/internal/journal/sqlite"
	"github.com/julianstephens/authip/internal/keyring"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/whitelist"
)

var CLI struct {
	Version       kong.VersionFlag
	ConfigDir     string        `help:"Directory for logs, the journal and the server lock." default:"~/.config/authip" env:"AUTHIP_CONFIG_DIR" name:"config-dir"`
	APIURL        string        `help:"Whitelist API base URL." default:"${api_url}" env:"AUTHIP_API_URL" name:"api-url"`
	JournalTarget string        `help:"Journal file path or PostgreSQL connection string. For PostgreSQL, credentials must NOT be embedded in the connection string. Use PGPASSWORD or .pgpass instead." default:"~/.config/authip/journal.db" env:"AUTHIP_JOURNAL" name:"journal"`
	Timeout       time.Duration `help:"API request timeout." default:"15s" env:"AUTHIP_TIMEOUT"`
	Poll          time.Duration `help:"Table refresh interval for the TUI and the web page. 0 disables polling." default:"30s" env:"AUTHIP_POLL"`
	Debug         bool          `help:"Enable debug logging." env:"AUTHIP_DEBUG"`
	LogFormat     string        `help:"Log file format." enum:"text,json,logfmt" default:"text" env:"AUTHIP_LOG_FORMAT"`

	Tui     system.TuiCmd     `cmd:"" help:"Launch the interactive TUI." default:"1"`
	Serve   system.ServeCmd   `cmd:"" help:"Serve the browser admin interface."`
	List    records.ListCmd   `cmd:"" help:"List authorized IPs."`
	Add     records.AddCmd    `cmd:"" help:"Authorize an IP."`
	Edit    records.EditCmd   `cmd:"" help:"Edit an authorized IP."`
	Delete  records.DeleteCmd `cmd:"" help:"Delete an authorized IP."`
	Check   records.CheckCmd  `cmd:"" help:"Check whether an address is authorized."`
	Import  records.ImportCmd `cmd:"" help:"Create records from a YAML file."`
	Journal struct {
		Show    records.JournalCmd       `cmd:"" help:"Show recent journal entries." default:"withargs"`
		Backup  system.JournalBackupCmd  `cmd:"" help:"Snapshot the SQLite journal."`
		Backups system.JournalBackupsCmd `cmd:"" help:"List journal snapshots."`
		Restore system.JournalRestoreCmd `cmd:"" help:"Replace the journal with a snapshot."`
	} `cmd:"" help:"Inspect and back up the local journal of admin actions."`
	Doctor system.DoctorCmd `cmd:"" help:"Run health checks and diagnostics."`
	Token  struct {
		Set    system.TokenSetCmd    `cmd:"" help:"Store the API token in the OS keyring."`
		Get    system.TokenGetCmd    `cmd:"" help:"Show the stored API token."`
		Delete system.TokenDeleteCmd `cmd:"" help:"Remove the API token from the OS keyring."`
		Status system.TokenStatusCmd `cmd:"" help:"Show where the API token comes from."`
	} `cmd:"" help:"Manage the API token."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Admin client for the authorized IP whitelist API"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(kong.JSON, constants.DefaultConfigFile),
		kong.Vars{
			"version": constants.Version,
			"api_url": constants.DefaultAPIURL,
		},
	)

	configDir := kong.ExpandPath(CLI.ConfigDir)
	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: configDir,
		Quiet:     ctx.Command() == "tui",
		Format:    CLI.LogFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	token, source, err := keyring.ResolveToken()
	if err != nil {
		logger.Warn("Failed to read API token", "error", err)
	}
	logger.Debug("Resolved API token", "source", source)

	client := api.New(api.Options{
		BaseURL: CLI.APIURL,
		Token:   token,
		Timeout: CLI.Timeout,
	})

	store, journalErr := openJournal(CLI.JournalTarget)
	if journalErr != nil {
		logger.Warn("Journal unavailable", "target", CLI.JournalTarget, "error", journalErr)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := &cli.Context{
		Ctx:          sigCtx,
		Service:      whitelist.NewService(client, store),
		Client:       client,
		Journal:      store,
		JournalError: journalErr,
		ConfigDir:    configDir,
		TokenSource:  source,
		PollInterval: CLI.Poll,
	}

	err = ctx.Run(appCtx)
	if store != nil {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("Failed to close journal", "error", cerr)
		}
	}
	if err != nil {
		stop()
		apperrors.Fatal(err)
	}
}

// openJournal picks the backend from the target and prepares its schema.
// A nil store with an error means commands run without a journal.
func openJournal(target string) (journal.Store, error) {
	var store journal.Store
	if journal.IsPostgres(target) {
		if err := postgres.ValidateConnString(target); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				fmt.Fprintf(os.Stderr, "❌ Error: PostgreSQL connection strings with embedded credentials are NOT allowed.\n")
				fmt.Fprintf(os.Stderr, "       Use one of these secure alternatives:\n")
				fmt.Fprintf(os.Stderr, "       1. Environment:   export PGPASSWORD=...\n")
				fmt.Fprintf(os.Stderr, "       2. .pgpass file:  Use connection string without password: \"postgresql://user@host:5432/authip\"\n")
				os.Exit(1)
			}
			return nil, err
		}
		store = postgres.New(target)
	} else {
		store = sqlite.NewStore(kong.ExpandPath(target))
	}

	if err := store.Init(); err != nil {
		return nil, err
	}
	return store, nil
}
