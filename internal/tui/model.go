package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	btable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/sorting"
	"github.com/julianstephens/authip/internal/table"
)

// Service is what the TUI needs from whitelist.Service.
type Service interface {
	List(ctx context.Context) ([]models.Record, error)
	Create(ctx context.Context, d models.Draft) (*models.Record, error)
	Update(ctx context.Context, id models.RecordID, e models.Edit) (*models.Record, error)
	Delete(ctx context.Context, id models.RecordID, ip string) error
}

type Options struct {
	// Context bounds every API call. Defaults to context.Background.
	Context      context.Context
	PollInterval time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// APIURL is shown in the title bar.
	APIURL string
}

// DraftFormModel backs the create form.
type DraftFormModel struct {
	IPAddress   string
	Description string
	ExpiresOn   string
	Quota       string
}

// EditFormModel backs the edit form.
type EditFormModel struct {
	IPAddress   string
	Description string
	ExpiresOn   string
	ExpiresTime string
	Quota       string
}

type banner struct {
	message string
	isError bool
	seq     int
}

type Model struct {
	svc  Service
	opts Options

	state constants.SessionState
	keys  KeyMap
	help  help.Model

	table    btable.Model
	spinner  spinner.Model
	ipFilter textinput.Model
	dsFilter textinput.Model

	records   []models.Record
	view      table.View
	sort      sorting.State
	loading   bool
	loadError string
	updatedAt time.Time

	form      *huh.Form
	draftForm *DraftFormModel
	editForm  *EditFormModel
	editing   *models.Record
	deleting  *models.Record

	banner    banner
	bannerSeq int

	quitting bool
	width    int
	height   int
}

func NewModel(svc Service, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t := btable.New(
		btable.WithColumns(columns(sorting.State{})),
		btable.WithFocused(true),
		btable.WithHeight(15),
	)
	styles := btable.DefaultStyles()
	styles.Header = headerStyle
	styles.Selected = selectedStyle
	t.SetStyles(styles)

	ip := textinput.New()
	ip.Prompt = "IP: "
	ip.Placeholder = "contains"
	ds := textinput.New()
	ds.Prompt = "Description: "
	ds.Placeholder = "contains"

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		svc:      svc,
		opts:     opts,
		state:    constants.StateTable,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		table:    t,
		spinner:  sp,
		ipFilter: ip,
		dsFilter: ds,
		loading:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick, m.poll())
}

func (m Model) ShortHelp() []key.Binding {
	switch m.state {
	case constants.StateFilter:
		return []key.Binding{m.keys.NextField, m.keys.Apply, m.keys.Cancel}
	case constants.StateConfirmDelete:
		return []key.Binding{m.keys.Confirm, m.keys.Cancel}
	}
	return []key.Binding{m.keys.Sort, m.keys.Filter, m.keys.Add, m.keys.Edit, m.keys.Delete, m.keys.Refresh, m.keys.Quit}
}

func (m Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down, m.keys.Sort},
		{m.keys.Filter, m.keys.Add, m.keys.Edit, m.keys.Delete},
		{m.keys.Refresh, m.keys.Help, m.keys.Quit},
	}
}

// criteria returns the current filter.
func (m Model) criteria() table.Criteria {
	return table.Criteria{IP: m.ipFilter.Value(), Description: m.dsFilter.Value()}
}

// rebuild recomputes the view from the loaded records and pushes it into
// the table widget, keeping the cursor in range.
func (m *Model) rebuild() {
	m.view = table.Build(m.records, table.Options{
		Criteria: m.criteria(),
		Sort:     m.sort,
		Now:      m.opts.Now(),
	})
	rows := make([]btable.Row, 0, len(m.view.Rows))
	for _, r := range m.view.Rows {
		rows = append(rows, btable.Row(r.Cells))
	}
	m.table.SetColumns(columns(m.sort))
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// selected returns the record under the cursor.
func (m Model) selected() (models.Record, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.view.Rows) {
		return models.Record{}, false
	}
	return m.view.Rows[c].Record, true
}

var columnWidths = map[string]int{
	models.KeyID:           6,
	models.KeyIPAddress:    18,
	models.KeyDescription:  22,
	models.KeyActivatedAt:  16,
	models.KeyExpiresAt:    16,
	models.KeyMonthlyQuota: 15,
	models.KeyLoaded:       12,
	table.KeyUsage:         9,
}

func columns(s sorting.State) []btable.Column {
	cols := make([]btable.Column, 0, len(table.Columns))
	for _, c := range table.Columns {
		cols = append(cols, btable.Column{
			Title: c.Title + sorting.Indicator(s, c.Key),
			Width: columnWidths[c.Key],
		})
	}
	return cols
}
