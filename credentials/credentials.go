// Package credentials loads bot credentials from a TOML file.
//
// The file carries the bot token and optionally the gateway intents:
//
//	token = "..."
//	intents = 3243773
//
// Because the token grants full control of the bot, Load refuses files
// readable by group or others.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/heraldlib/herald"
)

// EnvVar names the environment variable consulted when no explicit path is
// given.
const EnvVar = "HERALD_CREDENTIALS"

var (
	// ErrNotFound is returned when no file exists on the search path.
	ErrNotFound = errors.New("credentials: no credentials file found")

	// ErrInsecurePermissions is returned for files readable by group or
	// others.
	ErrInsecurePermissions = errors.New("credentials: file is readable by group or others")
)

// Credentials holds the secrets needed to run a bot.
type Credentials struct {
	Token   string         `toml:"token"`
	Intents herald.Intents `toml:"intents"`
}

// Config returns a client configuration carrying the credentials.
func (c *Credentials) Config() herald.Config {
	return herald.Config{Token: c.Token, Intents: c.Intents}
}

// Load reads the first credentials file on the search path: the explicit
// path when non-empty, then $HERALD_CREDENTIALS, then ./credentials.toml,
// then ~/.config/herald/credentials.toml.
func Load(path string) (*Credentials, error) {
	file, err := search(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s", ErrInsecurePermissions, file)
	}

	var creds Credentials
	if _, err := toml.DecodeFile(file, &creds); err != nil {
		return nil, fmt.Errorf("credentials: parsing %s: %w", file, err)
	}
	if creds.Token == "" {
		return nil, fmt.Errorf("credentials: %s: %w", file, herald.ErrNoToken)
	}
	return &creds, nil
}

func search(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(EnvVar); p != "" {
		return p, nil
	}
	if _, err := os.Stat("credentials.toml"); err == nil {
		return "credentials.toml", nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "herald", "credentials.toml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNotFound
}
