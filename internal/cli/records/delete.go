package records

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/models"
)

type DeleteCmd struct {
	ID  string `arg:"" help:"Record ID to delete."`
	Yes bool   `help:"Skip the confirmation prompt." short:"y"`
}

// confirmFunc asks the user to confirm; replaced in tests.
var confirmFunc = func(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

func (c *DeleteCmd) Run(ctx *cli.Context) error {
	id := models.RecordID(strings.TrimSpace(c.ID))
	rec, err := ctx.Service.Find(ctx.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to find record with ID %s: %w", id, err)
	}

	if !c.Yes {
		ok, err := confirmFunc(fmt.Sprintf("Delete %s (ID: %s)?", rec.IPAddress, id))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			ctx.Println("Cancelled")
			return nil
		}
	}

	if err := ctx.Service.Delete(ctx.Background(), id, rec.IPAddress); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	ctx.Printf("Deleted IP %s (ID: %s)\n", rec.IPAddress, id)
	return nil
}
