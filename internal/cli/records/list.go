package records

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/sorting"
	"github.com/julianstephens/authip/internal/table"
)

type ListCmd struct {
	IP          string `help:"Only records whose IP contains this text."`
	Description string `help:"Only records whose description contains this text."`
	Sort        string `help:"Sort column (id, ip_address, description, data_ativacao, data_vencimento, limite_consultas_mensal, carregado)."`
	Desc        bool   `help:"Sort descending."`
	JSON        bool   `help:"Shorthand for --format json." name:"json"`
	Format      string `help:"Output format." enum:"table,json,yaml" default:"table"`
}

// listed is the machine-readable form of a row.
type listed struct {
	ID           string `json:"id" yaml:"id"`
	IPAddress    string `json:"ip_address" yaml:"ip_address"`
	Description  string `json:"description" yaml:"description"`
	ActivatedAt  string `json:"data_ativacao" yaml:"data_ativacao"`
	ExpiresAt    string `json:"data_vencimento" yaml:"data_vencimento"`
	MonthlyQuota int64  `json:"limite_consultas_mensal" yaml:"limite_consultas_mensal"`
	Loaded       int64  `json:"carregado" yaml:"carregado"`
	UsagePercent string `json:"usage_percent" yaml:"usage_percent"`
	Expired      bool   `json:"expired" yaml:"expired"`
}

var (
	headerCellStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
	expiredCellStyle = cellStyle.Foreground(lipgloss.Color("196"))
)

func (c *ListCmd) Run(ctx *cli.Context) error {
	state, err := c.sortState()
	if err != nil {
		return err
	}

	records, err := ctx.Service.List(ctx.Background())
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	view := table.Build(records, table.Options{
		Criteria: table.Criteria{IP: c.IP, Description: c.Description},
		Sort:     state,
		Now:      ctx.Clock(),
	})

	format := c.Format
	if c.JSON {
		format = "json"
	}
	switch format {
	case "json", "yaml":
		return writeMachine(ctx, format, view)
	}

	if len(view.Rows) == 0 {
		ctx.Println("No records found")
		return nil
	}

	headers := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		headers = append(headers, col.Title+sorting.Indicator(state, col.Key))
	}
	rows := make([][]string, 0, len(view.Rows))
	for _, r := range view.Rows {
		rows = append(rows, r.Cells)
	}

	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerCellStyle
			}
			if row >= 0 && row < len(view.Rows) && view.Rows[row].Expired {
				return expiredCellStyle
			}
			return cellStyle
		})
	ctx.Println(t.Render())

	n, quota, loaded := view.Totals()
	ctx.Printf("Total rows: %s   Total quota: %s   Total loaded: %s\n", n, quota, loaded)
	return nil
}

func (c *ListCmd) sortState() (sorting.State, error) {
	if c.Sort == "" {
		return sorting.State{}, nil
	}
	for _, k := range table.SortableKeys() {
		if k == c.Sort {
			dir := sorting.Asc
			if c.Desc {
				dir = sorting.Desc
			}
			return sorting.State{Key: k, Direction: dir}, nil
		}
	}
	return sorting.State{}, fmt.Errorf("unknown sort column %q", c.Sort)
}

func writeMachine(ctx *cli.Context, format string, view table.View) error {
	out := make([]listed, 0, len(view.Rows))
	for _, r := range view.Rows {
		rec := r.Record
		out = append(out, listed{
			ID:           rec.ID.String(),
			IPAddress:    rec.IPAddress,
			Description:  rec.Description,
			ActivatedAt:  rec.ActivatedAt,
			ExpiresAt:    rec.ExpiresAt,
			MonthlyQuota: int64(rec.MonthlyQuota),
			Loaded:       int64(rec.Loaded),
			UsagePercent: rec.UsagePercent(),
			Expired:      r.Expired,
		})
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(ctx.Stdout())
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(ctx.Stdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
