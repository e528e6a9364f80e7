package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/julianstephens/authip/internal/api"
	"github.com/julianstephens/authip/internal/journal"
	"github.com/julianstephens/authip/internal/keyring"
	"github.com/julianstephens/authip/internal/whitelist"
)

type Context struct {
	// Ctx is cancelled on interrupt. Defaults to context.Background.
	Ctx context.Context

	Service *whitelist.Service
	Client  *api.Client
	// Journal is nil when the journal could not be opened.
	Journal      journal.Store
	JournalError error

	ConfigDir    string
	TokenSource  keyring.Source
	PollInterval time.Duration

	// Out defaults to os.Stdout.
	Out io.Writer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Background returns the command's base context.
func (c *Context) Background() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// Stdout returns the command output writer.
func (c *Context) Stdout() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Clock returns the current time.
func (c *Context) Clock() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Stdout(), format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Stdout(), args...)
}

// RequireJournal returns the journal or the reason it is unavailable.
func (c *Context) RequireJournal() (journal.Store, error) {
	if c.Journal != nil {
		return c.Journal, nil
	}
	if c.JournalError != nil {
		return nil, fmt.Errorf("journal unavailable: %w", c.JournalError)
	}
	return nil, errors.New("journal unavailable")
}
