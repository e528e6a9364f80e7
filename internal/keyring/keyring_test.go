package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGetToken(t *testing.T) {
	gokeyring.MockInit()

	if err := SetToken("  tok-123  "); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}

	got, err := GetToken()
	if err != nil {
		t.Fatalf("GetToken() failed: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("GetToken() = %q, want %q", got, "tok-123")
	}
}

func TestSetTokenEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetToken("   "); err == nil {
		t.Error("SetToken(\"   \") should return an error")
	}
}

func TestGetTokenNotFound(t *testing.T) {
	gokeyring.MockInit()
	_ = DeleteToken()

	if _, err := GetToken(); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetToken() error = %v, want %v", err, ErrNotFound)
	}
}

func TestDeleteToken(t *testing.T) {
	gokeyring.MockInit()

	if err := SetToken("tok"); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("DeleteToken() failed: %v", err)
	}
	if _, err := GetToken(); !errors.Is(err, ErrNotFound) {
		t.Errorf("After DeleteToken(), GetToken() error = %v, want %v", err, ErrNotFound)
	}
	if err := DeleteToken(); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteToken() error = %v, want %v", err, ErrNotFound)
	}
}

func TestResolveToken(t *testing.T) {
	gokeyring.MockInit()
	_ = DeleteToken()
	t.Setenv("AUTHIP_TOKEN", "")

	token, src, err := ResolveToken()
	if err != nil || token != "" || src != SourceNone {
		t.Errorf("ResolveToken() = (%q, %q, %v), want empty none", token, src, err)
	}

	if err := SetToken("from-keyring"); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}
	token, src, _ = ResolveToken()
	if token != "from-keyring" || src != SourceKeyring {
		t.Errorf("ResolveToken() = (%q, %q), want keyring token", token, src)
	}

	t.Setenv("AUTHIP_TOKEN", "from-env")
	token, src, _ = ResolveToken()
	if token != "from-env" || src != SourceEnv {
		t.Errorf("ResolveToken() = (%q, %q), want env token", token, src)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("IsAvailable() = false with mock keyring, want true")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefgh", "****efgh"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
