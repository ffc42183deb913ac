package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath overrides the location of the config file
const EnvPath = "VOLTBILL_CONFIG"

const (
	defaultDataDir         = ".voltbill"
	defaultAccountsFile    = "users.dat"
	defaultBillsFile       = "user_bills.dat"
	defaultStateDB         = "state.db"
	defaultLogLevel        = "warn"
	defaultSessionLifetime = 12 * time.Hour
)

// Config holds the CLI configuration
type Config struct {
	DataDir         string  `yaml:"data_dir,omitempty"`
	AccountsFile    string  `yaml:"accounts_file,omitempty"`
	BillsFile       string  `yaml:"bills_file,omitempty"`
	StateDB         string  `yaml:"state_db,omitempty"`
	Mirror          Mirror  `yaml:"mirror,omitempty"`
	LogLevel        string  `yaml:"log_level,omitempty"`
	SessionToken    string  `yaml:"session_token,omitempty"`
	SessionLifetime string  `yaml:"session_lifetime,omitempty"`
	DefaultAccount  Account `yaml:"default_account,omitempty"`
}

// Mirror configures the relational credential mirror. An empty driver
// disables it.
type Mirror struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// Account is the account seeded into an empty credential log
type Account struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Path returns the config file location
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".voltbill.yaml"), nil
}

// Load loads the configuration from disk
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration at path. A missing file is an empty config.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.SessionLifetime != "" {
		if _, err := time.ParseDuration(cfg.SessionLifetime); err != nil {
			return nil, fmt.Errorf("invalid session_lifetime %q: %w", cfg.SessionLifetime, err)
		}
	}

	return &cfg, nil
}

// Save saves the configuration to disk
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the configuration to path, readable only by the owner
func SaveTo(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Dir returns the data directory
func (c *Config) Dir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultDataDir), nil
}

func (c *Config) resolve(name, fallback string) (string, error) {
	if name == "" {
		name = fallback
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, err := c.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// AccountsPath returns the credential log location
func (c *Config) AccountsPath() (string, error) {
	return c.resolve(c.AccountsFile, defaultAccountsFile)
}

// BillsPath returns the billing log location
func (c *Config) BillsPath() (string, error) {
	return c.resolve(c.BillsFile, defaultBillsFile)
}

// StatePath returns the SQLite state database location
func (c *Config) StatePath() (string, error) {
	return c.resolve(c.StateDB, defaultStateDB)
}

// Level returns the configured log level name
func (c *Config) Level() string {
	if c.LogLevel == "" {
		return defaultLogLevel
	}
	return c.LogLevel
}

// Lifetime returns how long a login session stays valid
func (c *Config) Lifetime() time.Duration {
	d, err := time.ParseDuration(c.SessionLifetime)
	if err != nil || d <= 0 {
		return defaultSessionLifetime
	}
	return d
}
