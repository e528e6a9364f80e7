package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/keyring"
)

// promptTokenFunc reads a token interactively; replaced in tests.
var promptTokenFunc = func() (string, error) {
	var token string
	err := huh.NewInput().
		Title("API token").
		EchoMode(huh.EchoModePassword).
		Value(&token).
		Run()
	return token, err
}

// TokenSetCmd stores the API token in the OS keyring
type TokenSetCmd struct {
	Token string `arg:"" optional:"" help:"API token. Prompted for when omitted."`
}

func (cmd *TokenSetCmd) Run(ctx *cli.Context) error {
	token := cmd.Token
	if strings.TrimSpace(token) == "" {
		var err error
		if token, err = promptTokenFunc(); err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	if err := keyring.SetToken(token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	ctx.Println("✓ API token stored in OS keyring")
	return nil
}

// TokenGetCmd prints the stored API token, masked unless --reveal is given
type TokenGetCmd struct {
	Reveal bool `help:"Print the token in clear text."`
}

func (cmd *TokenGetCmd) Run(ctx *cli.Context) error {
	token, err := keyring.GetToken()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no API token found in keyring. Use 'authip token set' to store one")
		}
		return fmt.Errorf("failed to retrieve token from keyring: %w", err)
	}
	if cmd.Reveal {
		ctx.Println(token)
	} else {
		ctx.Println(keyring.Mask(token))
	}
	return nil
}

// TokenDeleteCmd removes the API token from the OS keyring
type TokenDeleteCmd struct{}

func (cmd *TokenDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteToken(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no API token found in keyring")
		}
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	ctx.Println("✓ API token deleted from OS keyring")
	return nil
}

// TokenStatusCmd reports where the API token comes from
type TokenStatusCmd struct{}

func (cmd *TokenStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return keyring.ErrKeyringUnavailable
	}
	ctx.Println("✓ OS keyring is available")

	_, source, err := keyring.ResolveToken()
	if err != nil {
		return fmt.Errorf("failed to resolve token: %w", err)
	}
	switch source {
	case keyring.SourceEnv:
		ctx.Printf("✓ Using token from %s\n", constants.TokenEnvVar)
	case keyring.SourceKeyring:
		ctx.Println("✓ API token is stored in keyring")
	default:
		ctx.Println("ℹ No API token configured; requests are sent without authorization")
	}
	return nil
}
