package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/julianstephens/authip/internal/constants"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case constants.StateCreate, constants.StateEdit:
		content = m.viewForm()
	case constants.StateConfirmDelete:
		content = m.viewConfirmDelete()
	default:
		content = m.viewTable()
	}

	return docStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTitle(),
		m.viewBanner(),
		content,
		m.help.View(m),
	))
}

func (m Model) viewTitle() string {
	title := titleStyle.Render("Authorized IPs")
	status := m.viewStatus()
	if m.opts.APIURL != "" {
		status = m.opts.APIURL + "  " + status
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, " ", mutedStyle.Render(status))
}

func (m Model) viewStatus() string {
	if m.loading {
		return m.spinner.View() + " loading…"
	}
	if m.updatedAt.IsZero() {
		return ""
	}
	return "updated " + humanize.RelTime(m.updatedAt, m.opts.Now(), "ago", "from now")
}

func (m Model) viewBanner() string {
	switch {
	case m.banner.message == "":
		return ""
	case m.banner.isError:
		return dangerStyle.Render(m.banner.message)
	default:
		return successStyle.Render(m.banner.message)
	}
}

func (m Model) viewFilter() string {
	if m.state != constants.StateFilter && m.criteria().Empty() {
		return ""
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.ipFilter.View(), "   ", m.dsFilter.View())
}

func (m Model) viewTable() string {
	parts := []string{}
	if f := m.viewFilter(); f != "" {
		parts = append(parts, f)
	}
	if m.loadError != "" {
		parts = append(parts, dangerStyle.Render(m.loadError))
	}
	if len(m.view.Rows) == 0 && !m.loading {
		parts = append(parts, mutedStyle.Render("No records"))
	}
	parts = append(parts, m.table.View(), m.viewTotals())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewTotals() string {
	rows, quota, loaded := m.view.Totals()
	return totalsStyle.Render(fmt.Sprintf("Total rows: %s   Total quota: %s   Total loaded: %s", rows, quota, loaded))
}

func (m Model) viewForm() string {
	heading := "New authorized IP"
	if m.state == constants.StateEdit && m.editing != nil {
		heading = "Edit record " + m.editing.ID.String()
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(heading), "", m.form.View())
}

func (m Model) viewConfirmDelete() string {
	ip := ""
	if m.deleting != nil {
		ip = m.deleting.IPAddress
	}
	return lipgloss.Place(m.width, max(m.height-8, 5),
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render(fmt.Sprintf("Delete %s?", ip)),
			"",
			"[y] Yes",
			"[n] No",
		),
	)
}
