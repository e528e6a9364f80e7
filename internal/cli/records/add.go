package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/whitelist"
)

type AddCmd struct {
	IP          string `arg:"" help:"IP address or CIDR prefix to authorize."`
	Quota       string `help:"Monthly query quota (grouping allowed, e.g. 50.000)." required:""`
	Expires     string `help:"Expiration date, dd/mm/yyyy. Defaults to today + 31 days."`
	Description string `help:"Free-text description." short:"d"`
}

func (c *AddCmd) Run(ctx *cli.Context) error {
	expires := c.Expires
	if strings.TrimSpace(expires) == "" {
		expires = brfmt.DefaultExpiration(ctx.Clock())
	}
	d := models.Draft{
		IPAddress:   strings.TrimSpace(c.IP),
		Description: strings.TrimSpace(c.Description),
		ExpiresOn:   brfmt.ApplyDateMask(expires),
		Quota:       brfmt.MaskNumber(c.Quota),
	}

	rec, err := ctx.Service.Create(ctx.Background(), d)
	if err != nil {
		if errors.Is(err, whitelist.ErrDuplicateIP) {
			return fmt.Errorf("IP %s is already registered", d.IPAddress)
		}
		return fmt.Errorf("failed to add IP: %w", err)
	}

	if rec != nil && rec.ID != "" {
		ctx.Printf("✓ Added IP %s (ID: %s)\n", d.IPAddress, rec.ID)
	} else {
		ctx.Printf("✓ Added IP %s\n", d.IPAddress)
	}
	ctx.Printf("  Expires: %s   Monthly quota: %s\n", d.ExpiresOn, d.Quota)
	return nil
}
