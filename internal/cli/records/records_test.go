package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/authip/internal/api"
	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/journal"
	"github.com/julianstephens/authip/internal/journal/sqlite"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/whitelist"
)

// fakeAPI serves /api/auth-ips from memory using the success envelope.
type fakeAPI struct {
	mu      sync.Mutex
	records []models.Record
	nextID  int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/api/auth-ips")
	id = strings.TrimPrefix(id, "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		writeEnvelope(w, f.records)
	case r.Method == http.MethodPost && id == "":
		var p models.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		rec := models.Record{
			ID:           models.RecordID(strconv.Itoa(f.nextID)),
			IPAddress:    p.IPAddress,
			Description:  p.Description,
			ExpiresAt:    p.ExpiresAt,
			MonthlyQuota: models.Count(p.MonthlyQuota),
		}
		f.records = append(f.records, rec)
		writeEnvelope(w, rec)
	case r.Method == http.MethodPut:
		var p models.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for i := range f.records {
			if string(f.records[i].ID) == id {
				f.records[i].IPAddress = p.IPAddress
				f.records[i].Description = p.Description
				f.records[i].ExpiresAt = p.ExpiresAt
				f.records[i].MonthlyQuota = models.Count(p.MonthlyQuota)
				writeEnvelope(w, f.records[i])
				return
			}
		}
		http.Error(w, `{"success":false,"error":"not found"}`, http.StatusNotFound)
	case r.Method == http.MethodDelete:
		for i := range f.records {
			if string(f.records[i].ID) == id {
				f.records = append(f.records[:i], f.records[i+1:]...)
				writeEnvelope(w, nil)
				return
			}
		}
		http.Error(w, `{"success":false,"error":"not found"}`, http.StatusNotFound)
	default:
		http.Error(w, "unexpected request", http.StatusMethodNotAllowed)
	}
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

var fixedNow = time.Date(2025, 1, 5, 13, 0, 0, 0, time.UTC)

func setupTestContext(t *testing.T) (*cli.Context, *fakeAPI, *bytes.Buffer) {
	t.Helper()

	fake := &fakeAPI{nextID: 2, records: []models.Record{
		{ID: "1", IPAddress: "10.0.0.1", Description: "Matriz", ExpiresAt: "2026-02-05 18:30:00", MonthlyQuota: 50000, Loaded: 1200},
		{ID: "2", IPAddress: "192.168.0.0/24", Description: "Filial", ExpiresAt: "2024-01-01 00:00:00", MonthlyQuota: 1000, Loaded: 10},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store := sqlite.NewStore(filepath.Join(t.TempDir(), "journal.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := api.New(api.Options{BaseURL: srv.URL})
	out := &bytes.Buffer{}
	ctx := &cli.Context{
		Service: whitelist.NewService(client, store),
		Client:  client,
		Journal: store,
		Out:     out,
		Now:     func() time.Time { return fixedNow },
	}
	return ctx, fake, out
}

func TestListCmd_Table(t *testing.T) {
	ctx, _, out := setupTestContext(t)

	cmd := &ListCmd{Format: "table", Sort: "limite_consultas_mensal"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("ListCmd.Run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Monthly quota ▲", "10.0.0.1", "05/02/2026 18:30", "50.000", "2.40%", "Total rows: 2", "Total quota: 51.000"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "192.168.0.0/24") > strings.Index(got, "10.0.0.1") {
		t.Error("ascending quota sort should list the /24 first")
	}
}

func TestListCmd_Filter(t *testing.T) {
	ctx, _, out := setupTestContext(t)

	cmd := &ListCmd{Format: "table", Description: "FILIAL"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("ListCmd.Run() error = %v", err)
	}
	if strings.Contains(out.String(), "10.0.0.1") {
		t.Error("filter should exclude 10.0.0.1")
	}
	if !strings.Contains(out.String(), "Total rows: 1") {
		t.Error("totals should cover the filtered rows")
	}
}

func TestListCmd_Machine(t *testing.T) {
	tests := []struct {
		name string
		cmd  ListCmd
		want []string
	}{
		{
			name: "json flag",
			cmd:  ListCmd{Format: "table", JSON: true},
			want: []string{`"ip_address": "10.0.0.1"`, `"limite_consultas_mensal": 50000`, `"expired": true`},
		},
		{
			name: "yaml format",
			cmd:  ListCmd{Format: "yaml"},
			want: []string{"ip_address: 10.0.0.1", "limite_consultas_mensal: 50000", `usage_percent: "2.40"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _, out := setupTestContext(t)
			if err := tt.cmd.Run(ctx); err != nil {
				t.Fatalf("ListCmd.Run() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestListCmd_UnknownSort(t *testing.T) {
	ctx, _, _ := setupTestContext(t)
	cmd := &ListCmd{Format: "table", Sort: "usage"}
	if err := cmd.Run(ctx); err == nil {
		t.Error("expected an error for an unsortable column")
	}
}

func TestAddCmd(t *testing.T) {
	tests := []struct {
		name      string
		cmd       AddCmd
		wantError bool
		wantDate  string
	}{
		{
			name:     "masked inputs",
			cmd:      AddCmd{IP: "10.0.0.9", Quota: "50000", Expires: "05022026"},
			wantDate: "2026-02-05 00:00:00",
		},
		{
			name:     "default expiration",
			cmd:      AddCmd{IP: "10.0.0.10", Quota: "1.000"},
			wantDate: "2025-02-05 00:00:00",
		},
		{
			name:      "duplicate IP",
			cmd:       AddCmd{IP: " 10.0.0.1 ", Quota: "1"},
			wantError: true,
		},
		{
			name:      "invalid IP",
			cmd:       AddCmd{IP: "10.0.0", Quota: "1"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, fake, _ := setupTestContext(t)
			err := tt.cmd.Run(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("AddCmd.Run() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError {
				if len(fake.records) != 2 {
					t.Errorf("no record should be created, have %d", len(fake.records))
				}
				return
			}
			last := fake.records[len(fake.records)-1]
			if last.ExpiresAt != tt.wantDate {
				t.Errorf("expiration = %q, want %q", last.ExpiresAt, tt.wantDate)
			}
		})
	}
}

func TestEditCmd(t *testing.T) {
	ctx, fake, _ := setupTestContext(t)

	cmd := &EditCmd{ID: "1", Time: "08:00", Quota: "60000"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("EditCmd.Run() error = %v", err)
	}
	rec := fake.records[0]
	if rec.ExpiresAt != "2026-02-05 08:00:00" {
		t.Errorf("expiration = %q", rec.ExpiresAt)
	}
	if rec.MonthlyQuota != 60000 || rec.Description != "Matriz" {
		t.Errorf("record = %+v", rec)
	}

	if err := (&EditCmd{ID: "404"}).Run(ctx); err == nil {
		t.Error("expected an error for a missing record")
	}
}

func TestDeleteCmd(t *testing.T) {
	orig := confirmFunc
	defer func() { confirmFunc = orig }()

	t.Run("declined", func(t *testing.T) {
		ctx, fake, out := setupTestContext(t)
		confirmFunc = func(string) (bool, error) { return false, nil }
		if err := (&DeleteCmd{ID: "1"}).Run(ctx); err != nil {
			t.Fatalf("DeleteCmd.Run() error = %v", err)
		}
		if len(fake.records) != 2 || !strings.Contains(out.String(), "Cancelled") {
			t.Error("declining should keep the record")
		}
	})

	t.Run("confirmed", func(t *testing.T) {
		ctx, fake, _ := setupTestContext(t)
		var asked string
		confirmFunc = func(title string) (bool, error) { asked = title; return true, nil }
		if err := (&DeleteCmd{ID: "1"}).Run(ctx); err != nil {
			t.Fatalf("DeleteCmd.Run() error = %v", err)
		}
		if !strings.Contains(asked, "10.0.0.1") {
			t.Errorf("prompt = %q", asked)
		}
		if len(fake.records) != 1 {
			t.Error("record should be deleted")
		}
	})

	t.Run("yes flag", func(t *testing.T) {
		ctx, fake, _ := setupTestContext(t)
		confirmFunc = func(string) (bool, error) { t.Error("prompt should be skipped"); return false, nil }
		if err := (&DeleteCmd{ID: "2", Yes: true}).Run(ctx); err != nil {
			t.Fatalf("DeleteCmd.Run() error = %v", err)
		}
		if len(fake.records) != 1 {
			t.Error("record should be deleted")
		}
	})
}

func TestCheckCmd(t *testing.T) {
	tests := []struct {
		name    string
		cmd     CheckCmd
		wantErr error
		want    string
	}{
		{name: "exact address", cmd: CheckCmd{IP: "10.0.0.1"}, want: "Remaining: 48.800 of 50.000"},
		{name: "expired prefix skipped", cmd: CheckCmd{IP: "192.168.0.7"}, wantErr: ErrNotCovered, want: "not covered"},
		{name: "expired prefix included", cmd: CheckCmd{IP: "192.168.0.7", IncludeExpired: true}, want: "[EXPIRED]"},
		{name: "uncovered", cmd: CheckCmd{IP: "8.8.8.8"}, wantErr: ErrNotCovered, want: "not covered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _, out := setupTestContext(t)
			err := tt.cmd.Run(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckCmd.Run() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}

	ctx, _, _ := setupTestContext(t)
	if err := (&CheckCmd{IP: "not-an-ip"}).Run(ctx); err == nil || errors.Is(err, ErrNotCovered) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestImportCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.yaml")
	doc := `records:
  - ip: 10.0.0.20
    description: Nova
    expires: 05/02/2026
    quota: 50.000
  - ip: 10.0.0.1
    quota: "10"
  - ip: bogus
    quota: "10"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("failed to write import file: %v", err)
	}

	t.Run("dry run", func(t *testing.T) {
		ctx, fake, out := setupTestContext(t)
		err := (&ImportCmd{File: path, DryRun: true}).Run(ctx)
		if err == nil {
			t.Error("a failed entry should make the command fail")
		}
		if len(fake.records) != 2 {
			t.Error("dry run should not create records")
		}
		if !strings.Contains(out.String(), "Dry run: 1 valid, 1 skipped, 1 failed") {
			t.Errorf("unexpected summary:\n%s", out.String())
		}
	})

	t.Run("create", func(t *testing.T) {
		ctx, fake, out := setupTestContext(t)
		_ = (&ImportCmd{File: path}).Run(ctx)
		if len(fake.records) != 3 {
			t.Errorf("expected one new record, have %d", len(fake.records))
		}
		if !strings.Contains(out.String(), "Imported: 1 created, 1 skipped, 1 failed") {
			t.Errorf("unexpected summary:\n%s", out.String())
		}
	})
}

func TestJournalCmd(t *testing.T) {
	ctx, _, out := setupTestContext(t)

	if err := (&AddCmd{IP: "10.0.0.9", Quota: "5"}).Run(ctx); err != nil {
		t.Fatalf("AddCmd.Run() error = %v", err)
	}
	_ = (&AddCmd{IP: "10.0.0.9", Quota: "5"}).Run(ctx)
	out.Reset()

	if err := (&JournalCmd{Limit: 10}).Run(ctx); err != nil {
		t.Fatalf("JournalCmd.Run() error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "create") || !strings.Contains(got, "10.0.0.9") {
		t.Errorf("journal output missing the create entry:\n%s", got)
	}

	out.Reset()
	if err := (&JournalCmd{Limit: 10, Record: "3"}).Run(ctx); err != nil {
		t.Fatalf("JournalCmd.Run() error = %v", err)
	}
	if strings.Count(out.String(), "create") != 1 {
		t.Errorf("expected one entry for record 3:\n%s", out.String())
	}
}

func TestJournalCmd_LocalTime(t *testing.T) {
	ctx, _, out := setupTestContext(t)

	e := journal.NewEntry("delete", "1", "10.0.0.1", "", nil)
	e.At = time.Date(2025, 1, 5, 2, 30, 9, 0, time.UTC)
	if err := ctx.Journal.Append(context.Background(), e); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := (&JournalCmd{Limit: 10}).Run(ctx); err != nil {
		t.Fatalf("JournalCmd.Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "04/01/2025 23:30:09") {
		t.Errorf("journal entry should be shown in the API timezone:\n%s", out.String())
	}
}

func TestJournalCmd_Unavailable(t *testing.T) {
	ctx := &cli.Context{JournalError: errors.New("disk full")}
	err := (&JournalCmd{}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("JournalCmd.Run() error = %v", err)
	}
}
