package tui

import (
	"errors"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/constants"
	apperrors "github.com/julianstephens/authip/internal/errors"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/table"
	"github.com/julianstephens/authip/internal/whitelist"
)

type recordsLoadedMsg struct {
	records []models.Record
	err     error
}

type pollMsg time.Time

type bannerExpiredMsg struct {
	seq int
}

// mutationDoneMsg reports the outcome of a create, update or delete.
type mutationDoneMsg struct {
	message string
	err     error
}

func (m Model) load() tea.Cmd {
	svc, ctx := m.svc, m.opts.Context
	return func() tea.Msg {
		records, err := svc.List(ctx)
		return recordsLoadedMsg{records: records, err: err}
	}
}

func (m Model) poll() tea.Cmd {
	if m.opts.PollInterval <= 0 {
		return nil
	}
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// showBanner sets the status line and schedules its removal.
func (m *Model) showBanner(message string, isError bool) tea.Cmd {
	m.bannerSeq++
	m.banner = banner{message: message, isError: isError, seq: m.bannerSeq}
	seq := m.bannerSeq
	return tea.Tick(constants.BannerDuration, func(time.Time) tea.Msg {
		return bannerExpiredMsg{seq: seq}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(max(msg.Height-12, 5))
		return m, nil

	case recordsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			logger.Error("Failed to load records", "error", msg.err)
			m.loadError = apperrors.Format(msg.err)
			return m, nil
		}
		m.loadError = ""
		m.records = msg.records
		m.updatedAt = m.opts.Now()
		m.rebuild()
		return m, nil

	case pollMsg:
		// Polling pauses while a form or prompt is open.
		if m.state != constants.StateTable || m.loading {
			return m, m.poll()
		}
		m.loading = true
		return m, tea.Batch(m.load(), m.poll())

	case bannerExpiredMsg:
		if msg.seq == m.banner.seq {
			m.banner = banner{}
		}
		return m, nil

	case mutationDoneMsg:
		cmd := m.showBanner(msg.message, msg.err != nil)
		if msg.err != nil {
			return m, cmd
		}
		m.loading = true
		return m, tea.Batch(cmd, m.load())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	switch m.state {
	case constants.StateCreate, constants.StateEdit:
		return m.updateForm(msg)
	case constants.StateFilter:
		return m.updateFilter(msg)
	case constants.StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	}
	return m.updateTable(msg)
}

func (m Model) updateTable(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Sort):
			n, _ := strconv.Atoi(msg.String())
			keys := table.SortableKeys()
			if n >= 1 && n <= len(keys) {
				m.sort = m.sort.Toggle(keys[n-1])
				m.rebuild()
			}
			return m, nil
		case key.Matches(msg, m.keys.Filter):
			m.state = constants.StateFilter
			m.dsFilter.Blur()
			cmd := m.ipFilter.Focus()
			return m, cmd
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.load()
		case key.Matches(msg, m.keys.Add):
			m.draftForm = &DraftFormModel{ExpiresOn: brfmt.DefaultExpiration(m.opts.Now())}
			m.form = NewDraftForm(m.draftForm)
			m.state = constants.StateCreate
			return m, m.form.Init()
		case key.Matches(msg, m.keys.Edit):
			rec, ok := m.selected()
			if !ok {
				return m, nil
			}
			m.editing = &rec
			m.editForm = editFormFor(rec)
			m.form = NewEditForm(m.editForm)
			m.state = constants.StateEdit
			return m, m.form.Init()
		case key.Matches(msg, m.keys.Delete):
			rec, ok := m.selected()
			if !ok {
				return m, nil
			}
			m.deleting = &rec
			m.state = constants.StateConfirmDelete
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case msg.Type == tea.KeyEsc:
			m.ipFilter.SetValue("")
			m.dsFilter.SetValue("")
			return m.leaveFilter(), nil
		case key.Matches(msg, m.keys.Apply):
			return m.leaveFilter(), nil
		case key.Matches(msg, m.keys.NextField):
			var cmd tea.Cmd
			if m.ipFilter.Focused() {
				m.ipFilter.Blur()
				cmd = m.dsFilter.Focus()
			} else {
				m.dsFilter.Blur()
				cmd = m.ipFilter.Focus()
			}
			return m, cmd
		}
	}

	var cmd tea.Cmd
	if m.ipFilter.Focused() {
		m.ipFilter, cmd = m.ipFilter.Update(msg)
	} else {
		m.dsFilter, cmd = m.dsFilter.Update(msg)
	}
	m.rebuild()
	return m, cmd
}

func (m Model) leaveFilter() Model {
	m.ipFilter.Blur()
	m.dsFilter.Blur()
	m.state = constants.StateTable
	m.rebuild()
	return m
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Confirm):
		rec := *m.deleting
		m.deleting = nil
		m.state = constants.StateTable
		svc, ctx := m.svc, m.opts.Context
		return m, func() tea.Msg {
			if err := svc.Delete(ctx, rec.ID, rec.IPAddress); err != nil {
				return mutationDoneMsg{message: apperrors.Format(err), err: err}
			}
			return mutationDoneMsg{message: "IP " + rec.IPAddress + " deleted"}
		}
	case key.Matches(keyMsg, m.keys.Cancel):
		m.deleting = nil
		m.state = constants.StateTable
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.closeForm()
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		submit := m.submit()
		m.closeForm()
		return m, tea.Batch(cmd, submit)
	case huh.StateAborted:
		m.closeForm()
	}
	return m, cmd
}

// submit returns the command that sends the completed form to the service.
func (m Model) submit() tea.Cmd {
	svc, ctx := m.svc, m.opts.Context
	if m.state == constants.StateCreate {
		d := m.draftForm.Draft()
		return func() tea.Msg {
			if _, err := svc.Create(ctx, d); err != nil {
				return mutationDoneMsg{message: createMessage(err), err: err}
			}
			return mutationDoneMsg{message: "IP " + d.IPAddress + " added"}
		}
	}

	id, e := m.editing.ID, m.editForm.Edit()
	return func() tea.Msg {
		if _, err := svc.Update(ctx, id, e); err != nil {
			return mutationDoneMsg{message: apperrors.Format(err), err: err}
		}
		return mutationDoneMsg{message: "Record " + id.String() + " updated"}
	}
}

func (m *Model) closeForm() {
	m.form = nil
	m.draftForm = nil
	m.editForm = nil
	m.editing = nil
	m.state = constants.StateTable
}

func createMessage(err error) string {
	if errors.Is(err, whitelist.ErrDuplicateIP) {
		return "This IP is already registered"
	}
	return apperrors.Format(err)
}
