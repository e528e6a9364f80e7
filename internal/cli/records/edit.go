package records

import (
	"fmt"
	"strings"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/models"
)

type EditCmd struct {
	ID          string `arg:"" help:"Record ID to edit."`
	IP          string `help:"New IP address or CIDR prefix."`
	Description string `help:"New description." short:"d"`
	Expires     string `help:"New expiration date, dd/mm/yyyy."`
	Time        string `help:"New expiration time, HH:MM[:SS]."`
	Quota       string `help:"New monthly quota."`
}

// Run updates only the fields given on the command line; the rest keep
// their stored values.
func (c *EditCmd) Run(ctx *cli.Context) error {
	id := models.RecordID(strings.TrimSpace(c.ID))
	rec, err := ctx.Service.Find(ctx.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to find record with ID %s: %w", id, err)
	}

	e := ctx.Service.EditFor(rec)
	if c.IP != "" {
		e.IPAddress = strings.TrimSpace(c.IP)
	}
	if c.Description != "" {
		e.Description = strings.TrimSpace(c.Description)
	}
	if c.Expires != "" {
		e.ExpiresOn = brfmt.ApplyDateMask(c.Expires)
	}
	if c.Time != "" {
		e.ExpiresTime = strings.TrimSpace(c.Time)
	}
	if c.Quota != "" {
		e.Quota = brfmt.MaskNumber(c.Quota)
	}

	if _, err := ctx.Service.Update(ctx.Background(), id, e); err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	p := e.Payload()
	ctx.Printf("✓ Updated record %s: %s\n", id, p.IPAddress)
	ctx.Printf("  Expires: %s   Monthly quota: %s\n", brfmt.FormatDateTime(p.ExpiresAt), brfmt.FormatInt(p.MonthlyQuota))
	return nil
}
