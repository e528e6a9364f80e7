package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/authip/internal/constants"
)

var (
	// ErrNotFound is returned when no token is stored in the keyring
	ErrNotFound = errors.New("API token not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Source reports where a resolved token came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceEnv     Source = "environment"
	SourceKeyring Source = "keyring"
)

// GetToken retrieves the API token from the OS keyring.
func GetToken() (string, error) {
	token, err := keyring.Get(constants.AppName, constants.DefaultKeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return token, nil
}

// SetToken stores the API token in the OS keyring.
func SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := keyring.Set(constants.AppName, constants.DefaultKeyringUser, token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// DeleteToken removes the API token from the OS keyring.
func DeleteToken() error {
	err := keyring.Delete(constants.AppName, constants.DefaultKeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// ResolveToken returns the token to send to the API. AUTHIP_TOKEN wins over
// the keyring; a missing token is not an error since the API may be open.
func ResolveToken() (string, Source, error) {
	if token := strings.TrimSpace(os.Getenv(constants.TokenEnvVar)); token != "" {
		return token, SourceEnv, nil
	}
	token, err := GetToken()
	switch {
	case err == nil:
		return token, SourceKeyring, nil
	case errors.Is(err, ErrNotFound):
		return "", SourceNone, nil
	default:
		return "", SourceNone, err
	}
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// Mask hides all but the last four characters of a token.
func Mask(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
