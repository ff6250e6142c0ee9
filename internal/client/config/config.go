// Package config loads the EcoTrack client settings from the environment
// and lets command-line flags override them.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

type Config struct {
	IdentityURL string `env:"ECOTRACK_IDENTITY_URL" envDefault:"http://localhost:8080"`
	APIURL      string `env:"ECOTRACK_API_URL"      envDefault:"http://localhost:5000"`
	SessionFile string `env:"ECOTRACK_SESSION_FILE"`
	Provider    string `env:"ECOTRACK_PROVIDER"     envDefault:"google"`
	Offline     bool   `env:"ECOTRACK_OFFLINE"      envDefault:"false"`
	LogFile     string `env:"ECOTRACK_LOG_FILE"`
}

// Load parses the environment. An unset session file defaults to
// <user config dir>/ecotrack/session.json.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("locate config dir: %w", err)
		}
		cfg.SessionFile = filepath.Join(dir, "ecotrack", "session.json")
	}
	return cfg, nil
}

// BindFlags registers flags whose defaults are the loaded values, so a
// flag given on the command line wins over the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.IdentityURL, "identity-url", c.IdentityURL, "EcoTrack identity service URL")
	fs.StringVar(&c.APIURL, "api-url", c.APIURL, "EcoTrack API URL")
	fs.StringVar(&c.SessionFile, "session-file", c.SessionFile, "where the signed-in session is kept")
	fs.StringVar(&c.Provider, "provider", c.Provider, "federated sign-in provider")
	fs.BoolVar(&c.Offline, "offline", c.Offline, "use an in-memory identity gateway")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "write logs to this file instead of discarding them")
}

func (c Config) Validate() error {
	if !c.Offline {
		if err := checkURL("identity URL", c.IdentityURL); err != nil {
			return err
		}
	}
	if err := checkURL("API URL", c.APIURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Provider) == "" {
		return errors.New("provider must not be empty")
	}
	if !c.Offline && c.SessionFile == "" {
		return errors.New("session file must not be empty")
	}
	return nil
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", name, raw)
	}
	return nil
}
