package journal

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewEntry(t *testing.T) {
	ok := NewEntry("create", "7", "10.0.0.1", "quota=1.000", nil)
	if _, err := uuid.Parse(ok.ID); err != nil {
		t.Errorf("ID %q is not a UUID", ok.ID)
	}
	if ok.Outcome != "ok" || ok.Error != "" {
		t.Errorf("successful entry = %+v", ok)
	}
	if ok.At.IsZero() || ok.At.Location().String() != "UTC" {
		t.Errorf("At = %v, want a UTC timestamp", ok.At)
	}

	failed := NewEntry("delete", "7", "", "", errors.New("boom"))
	if failed.Outcome != "error" || failed.Error != "boom" {
		t.Errorf("failed entry = %+v", failed)
	}
}

func TestIsPostgres(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"postgres://user@localhost/authip", true},
		{"postgresql://localhost/authip", true},
		{"~/.config/authip/journal.db", false},
		{"/tmp/postgres.db", false},
	}
	for _, tt := range tests {
		if got := IsPostgres(tt.target); got != tt.want {
			t.Errorf("IsPostgres(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 20},
		{-5, 20},
		{5, 5},
		{5000, 1000},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
