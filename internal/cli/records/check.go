package records

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/ipmatch"
)

// ErrNotCovered is returned when no record authorizes the address.
var ErrNotCovered = errors.New("address is not authorized")

type CheckCmd struct {
	IP             string `arg:"" help:"Address to check."`
	IncludeExpired bool   `help:"Also consider expired records."`
}

func (c *CheckCmd) Run(ctx *cli.Context) error {
	addr, err := netip.ParseAddr(strings.TrimSpace(c.IP))
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", c.IP, err)
	}

	records, err := ctx.Service.List(ctx.Background())
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	now := ctx.Clock()
	m := ipmatch.New(records, ipmatch.Options{IncludeExpired: c.IncludeExpired, Now: now})

	matches := m.Match(addr)
	if len(matches) == 0 {
		ctx.Printf("❌ %s is not covered by any of %d active records\n", addr, m.Len())
		return ErrNotCovered
	}

	ctx.Printf("✓ %s is authorized\n", addr)
	for _, rule := range matches {
		r := rule.Record
		status := ""
		if r.Expired(now) {
			status = " [EXPIRED]"
		}
		ctx.Printf("  %s (ID: %s)%s %s\n", rule.Prefix, r.ID, status, r.Description)
		ctx.Printf("      Remaining: %s of %s   Expires: %s\n",
			brfmt.FormatInt(ipmatch.Remaining(r)),
			brfmt.FormatInt(int64(r.MonthlyQuota)),
			brfmt.FormatDateTime(r.ExpiresAt))
	}
	if n := m.Skipped(); n > 0 {
		ctx.Printf("⚠ %d record(s) with an unreadable IP were ignored\n", n)
	}
	return nil
}
