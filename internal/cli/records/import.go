package records

import (
	"fmt"

	"github.com/julianstephens/authip/internal/cli"
	apperrors "github.com/julianstephens/authip/internal/errors"
	"github.com/julianstephens/authip/internal/importer"
)

type ImportCmd struct {
	File   string `arg:"" help:"YAML file with a records list." type:"existingfile"`
	DryRun bool   `help:"Validate and check duplicates without creating anything."`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	f, err := importer.Load(c.File)
	if err != nil {
		return err
	}

	report, err := importer.Run(ctx.Background(), ctx.Service, f, importer.Options{
		DryRun: c.DryRun,
		Now:    ctx.Clock(),
	})
	for _, res := range report.Results {
		switch res.Status {
		case importer.StatusCreated, importer.StatusValid:
			ctx.Printf("✓ %-20s %s\n", res.Entry.IP, res.Status)
		case importer.StatusSkipped:
			ctx.Printf("⊘ %-20s skipped (already registered)\n", res.Entry.IP)
		default:
			ctx.Printf("❌ %-20s failed: %s\n", res.Entry.IP, apperrors.Format(res.Err))
		}
	}
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	ctx.Println()
	if c.DryRun {
		ctx.Printf("Dry run: %d valid, %d skipped, %d failed\n",
			report.Count(importer.StatusValid), report.Count(importer.StatusSkipped), report.Count(importer.StatusFailed))
	} else {
		ctx.Printf("Imported: %d created, %d skipped, %d failed\n",
			report.Count(importer.StatusCreated), report.Count(importer.StatusSkipped), report.Count(importer.StatusFailed))
	}

	if n := report.Count(importer.StatusFailed); n > 0 {
		return fmt.Errorf("%d entries failed", n)
	}
	return nil
}
