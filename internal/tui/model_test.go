package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/whitelist"
)

type fakeService struct {
	records   []models.Record
	createErr error
	created   []models.Draft
	updated   []models.Edit
	deleted   []models.RecordID
}

func (f *fakeService) List(ctx context.Context) ([]models.Record, error) {
	return f.records, nil
}

func (f *fakeService) Create(ctx context.Context, d models.Draft) (*models.Record, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, d)
	return &models.Record{ID: "99", IPAddress: d.IPAddress}, nil
}

func (f *fakeService) Update(ctx context.Context, id models.RecordID, e models.Edit) (*models.Record, error) {
	f.updated = append(f.updated, e)
	return nil, nil
}

func (f *fakeService) Delete(ctx context.Context, id models.RecordID, ip string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

var fixedNow = time.Date(2025, 1, 5, 13, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) (Model, *fakeService) {
	t.Helper()
	svc := &fakeService{records: []models.Record{
		{ID: "1", IPAddress: "10.0.0.1", Description: "Matriz", ExpiresAt: "2026-02-05 18:30:00", MonthlyQuota: 50000, Loaded: 1200},
		{ID: "2", IPAddress: "10.0.0.2", Description: "Filial", ExpiresAt: "2026-03-01 00:00:00", MonthlyQuota: 1000, Loaded: 10},
	}}
	m := NewModel(svc, Options{
		PollInterval: time.Minute,
		Now:          func() time.Time { return fixedNow },
	})
	m = step(t, m, recordsLoadedMsg{records: svc.records})
	return m, svc
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, r := range keys {
		var next tea.Model
		next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m, cmd
}

func TestRecordsLoaded(t *testing.T) {
	m, _ := newTestModel(t)

	if m.loading {
		t.Error("loading should be cleared after records arrive")
	}
	if len(m.view.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.view.Rows))
	}
	if !m.updatedAt.Equal(fixedNow) {
		t.Errorf("updatedAt = %v, want %v", m.updatedAt, fixedNow)
	}
	rows, quota, loaded := m.view.Totals()
	if rows != "2" || quota != "51.000" || loaded != "1.210" {
		t.Errorf("totals = %s %s %s", rows, quota, loaded)
	}
	if !strings.Contains(m.View(), "Total quota: 51.000") {
		t.Error("view should render the totals line")
	}
}

func TestLoadError(t *testing.T) {
	m, _ := newTestModel(t)
	m = step(t, m, recordsLoadedMsg{err: errors.New("upstream down")})

	if m.loadError != "Error: upstream down" {
		t.Errorf("loadError = %q", m.loadError)
	}
	if len(m.view.Rows) != 2 {
		t.Error("previous rows should be kept on a failed reload")
	}
}

func TestSortKeys(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "6")
	if m.sort.Key != models.KeyMonthlyQuota {
		t.Fatalf("sort key = %q", m.sort.Key)
	}
	if got := m.view.Rows[0].Record.ID; got != "2" {
		t.Errorf("ascending quota sort should put record 2 first, got %s", got)
	}
	if title := m.table.Columns()[5].Title; title != "Monthly quota ▲" {
		t.Errorf("column title = %q", title)
	}

	m, _ = press(t, m, "6")
	if m.sort.Direction.String() != "desc" {
		t.Errorf("pressing again should flip to desc, got %s", m.sort.Direction)
	}
	if got := m.view.Rows[0].Record.ID; got != "1" {
		t.Errorf("descending quota sort should put record 1 first, got %s", got)
	}
}

func TestFilter(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "/")
	if m.state != constants.StateFilter {
		t.Fatalf("state = %v, want filter", m.state)
	}
	m, _ = press(t, m, "0.2")
	if len(m.view.Rows) != 1 || m.view.Rows[0].Record.ID != "2" {
		t.Errorf("filter should narrow to record 2, got %d rows", len(m.view.Rows))
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != constants.StateTable || len(m.view.Rows) != 1 {
		t.Error("enter should keep the filter and return to the table")
	}

	m, _ = press(t, m, "/")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.view.Rows) != 2 {
		t.Error("esc should clear the filter")
	}
}

func TestDeleteFlow(t *testing.T) {
	m, svc := newTestModel(t)

	m, _ = press(t, m, "d")
	if m.state != constants.StateConfirmDelete {
		t.Fatalf("state = %v, want confirm delete", m.state)
	}
	if !strings.Contains(m.View(), "Delete 10.0.0.1?") {
		t.Error("confirmation should name the IP")
	}

	m, cmd := press(t, m, "y")
	if m.state != constants.StateTable || cmd == nil {
		t.Fatal("confirming should return to the table with a delete command")
	}
	done, ok := cmd().(mutationDoneMsg)
	if !ok {
		t.Fatalf("expected mutationDoneMsg")
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "1" {
		t.Errorf("deleted = %v", svc.deleted)
	}
	if done.message != "IP 10.0.0.1 deleted" {
		t.Errorf("message = %q", done.message)
	}
}

func TestDeleteCancel(t *testing.T) {
	m, svc := newTestModel(t)
	m, _ = press(t, m, "dn")
	if m.state != constants.StateTable || m.deleting != nil {
		t.Error("n should cancel the delete")
	}
	if len(svc.deleted) != 0 {
		t.Error("nothing should be deleted")
	}
}

func TestBanner(t *testing.T) {
	m, _ := newTestModel(t)

	m = step(t, m, mutationDoneMsg{message: "IP 10.0.0.9 added"})
	if m.banner.message != "IP 10.0.0.9 added" || m.banner.isError {
		t.Fatalf("banner = %+v", m.banner)
	}
	if !m.loading {
		t.Error("a successful mutation should reload the table")
	}
	first := m.banner.seq

	m = step(t, m, mutationDoneMsg{message: "Error: boom", err: errors.New("boom")})
	m = step(t, m, bannerExpiredMsg{seq: first})
	if m.banner.message != "Error: boom" {
		t.Error("an older timer should not clear a newer banner")
	}

	m = step(t, m, bannerExpiredMsg{seq: m.banner.seq})
	if m.banner.message != "" {
		t.Error("banner should clear when its timer fires")
	}
}

func TestPollPausedDuringForms(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "a")
	if m.state != constants.StateCreate {
		t.Fatalf("state = %v, want create", m.state)
	}
	if m.draftForm.ExpiresOn != "05/02/2025" {
		t.Errorf("default expiration = %q", m.draftForm.ExpiresOn)
	}

	m = step(t, m, pollMsg(fixedNow))
	if m.loading {
		t.Error("poll should not reload while a form is open")
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = step(t, m, pollMsg(fixedNow))
	if !m.loading {
		t.Error("poll should reload from the table")
	}
}

func TestCreateSubmit(t *testing.T) {
	m, svc := newTestModel(t)
	m.state = constants.StateCreate
	m.draftForm = &DraftFormModel{IPAddress: " 10.0.0.9 ", ExpiresOn: "05022026", Quota: "50000"}

	msg := m.submit()().(mutationDoneMsg)
	if msg.err != nil {
		t.Fatalf("submit failed: %v", msg.err)
	}
	if len(svc.created) != 1 {
		t.Fatalf("created %d records", len(svc.created))
	}
	d := svc.created[0]
	if d.IPAddress != "10.0.0.9" || d.ExpiresOn != "05/02/2026" || d.Quota != "50.000" {
		t.Errorf("draft = %+v", d)
	}

	svc.createErr = whitelist.ErrDuplicateIP
	msg = m.submit()().(mutationDoneMsg)
	if msg.message != "This IP is already registered" {
		t.Errorf("duplicate message = %q", msg.message)
	}
}

func TestEditPrefill(t *testing.T) {
	m, svc := newTestModel(t)

	m, _ = press(t, m, "e")
	if m.state != constants.StateEdit {
		t.Fatalf("state = %v, want edit", m.state)
	}
	fm := m.editForm
	if fm.ExpiresOn != "05/02/2026" || fm.ExpiresTime != "18:30:00" || fm.Quota != "50.000" {
		t.Errorf("edit form = %+v", fm)
	}

	fm.ExpiresTime = "08:00"
	msg := m.submit()().(mutationDoneMsg)
	if msg.err != nil || msg.message != "Record 1 updated" {
		t.Errorf("submit = %+v", msg)
	}
	if len(svc.updated) != 1 || svc.updated[0].Payload().ExpiresAt != "2026-02-05 08:00:00" {
		t.Errorf("updated = %+v", svc.updated)
	}
}
