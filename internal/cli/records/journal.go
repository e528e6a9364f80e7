package records

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/journal"
)

type JournalCmd struct {
	Limit  int    `help:"Maximum number of entries." default:"20"`
	Record string `help:"Only entries about this record ID."`
}

func (c *JournalCmd) Run(ctx *cli.Context) error {
	store, err := ctx.RequireJournal()
	if err != nil {
		return err
	}

	var entries []journal.Entry
	if c.Record != "" {
		entries, err = store.ForRecord(ctx.Background(), c.Record, c.Limit)
	} else {
		entries, err = store.Recent(ctx.Background(), c.Limit)
	}
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(entries) == 0 {
		ctx.Println("No journal entries")
		return nil
	}

	now := ctx.Clock()
	for _, e := range entries {
		mark := "✓"
		if e.Outcome == constants.OutcomeError {
			mark = "❌"
		}
		at := brfmt.DisplayInstant(e.At)
		ctx.Printf("%s %s (%s) %-6s %s", mark, at, humanize.RelTime(e.At, now, "ago", "from now"), e.Action, e.IPAddress)
		if e.RecordID != "" {
			ctx.Printf(" (ID: %s)", e.RecordID)
		}
		ctx.Println()
		if e.Detail != "" {
			ctx.Printf("      %s\n", e.Detail)
		}
		if e.Error != "" {
			ctx.Printf("      Error: %s\n", e.Error)
		}
	}
	return nil
}
