package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	model := tui.NewModel(ctx.Service, tui.Options{
		Context:      ctx.Background(),
		PollInterval: ctx.PollInterval,
		APIURL:       ctx.Client.BaseURL(),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx.Background()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
