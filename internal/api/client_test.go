package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/authip/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Token: "secret", Timeout: time.Second})
}

func TestListEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/auth-ips" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer secret")
		}
		if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("X-Request-ID is not a UUID: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"ip_address":"10.0.0.1","limite_consultas_mensal":"50000","carregado":12}]}`)
	})

	records, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(records))
	}
	if records[0].ID != "1" || records[0].MonthlyQuota != 50000 || records[0].Loaded != 12 {
		t.Errorf("List() record = %+v", records[0])
	}
}

func TestListBareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1},{"id":2}]`)
	})

	records, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("List() returned %d records, want 2", len(records))
	}
}

func TestListNullData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":null}`)
	})

	records, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("List() = %v, want empty slice", records)
	}
}

func TestListUnsuccessfulEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"database offline"}`)
	})

	_, err := client.List(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("List() error = %v, want *Error", err)
	}
	if apiErr.Message != "database offline" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "database offline")
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"envelope error", http.StatusBadRequest, `{"success":false,"error":"IP já cadastrado"}`, "IP já cadastrado"},
		{"object error", http.StatusInternalServerError, `{"success":false,"error":{"message":"boom"}}`, "boom"},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := client.Delete(context.Background(), "1")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("Delete() error = %v, want *Error", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.message {
				t.Errorf("Error = %+v, want status %d message %q", apiErr, tt.status, tt.message)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	err := client.Delete(context.Background(), "99")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
	if IsNotFound(errors.New("other")) {
		t.Error("IsNotFound(plain error) = true, want false")
	}
}

func TestCreateSendsPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var p models.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if p.IPAddress != "10.0.0.9" || p.ExpiresAt != "2025-02-05 00:00:00" || p.MonthlyQuota != 50000 {
			t.Errorf("payload = %+v", p)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":42,"ip_address":"10.0.0.9"}}`)
	})

	rec, err := client.Create(context.Background(), models.Payload{
		IPAddress:    "10.0.0.9",
		ExpiresAt:    "2025-02-05 00:00:00",
		MonthlyQuota: 50000,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec == nil || rec.ID != "42" {
		t.Errorf("Create() = %+v, want record 42", rec)
	}
}

func TestUpdatePathAndEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/auth-ips/7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	rec, err := client.Update(context.Background(), "7", models.Payload{IPAddress: "1.1.1.1"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Update() = %+v, want nil", rec)
	}
}

func TestNoTokenNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header sent without a token")
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	if _, err := client.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
}

func TestContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.List(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(Options{})
	if c.BaseURL() != "https://api-js-in100.vercel.app" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.http.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", c.http.Timeout)
	}
}
