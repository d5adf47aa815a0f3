package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// NamingRule computes the fixture key for one row. It receives the row's full
// attribute map and a zero-padded fallback index and its return value is used
// verbatim; rules are trusted to be injective per table.
type NamingRule func(attrs map[string]interface{}, index string) string

// Execer is the database surface handed to population code.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Registrar collects explicit record registrations from population code.
// A registered name wins over any naming rule or name-column inference for
// the matching row.
type Registrar interface {
	Register(name, table string, attrs map[string]interface{})
	RegisterRow(ctx context.Context, name, table, pkColumn string, pkValue interface{}) error
}

// PopulateFunc is the user-supplied population step. It runs against a live,
// freshly cleaned schema and registers created records by name.
type PopulateFunc func(ctx context.Context, db Execer, rec Registrar) error

type Config struct {
	FixturesDir     string   `json:"fixtures_dir" mapstructure:"fixtures_dir"`
	TmpDir          string   `json:"tmp_dir" mapstructure:"tmp_dir"`
	FilesToCheck    []string `json:"files_to_check" mapstructure:"files_to_check"`
	Tables          []string `json:"tables" mapstructure:"tables"`
	UseSHA1Digests  bool     `json:"use_sha1_digests" mapstructure:"use_sha1_digests"`
	WriteEmptyFiles bool     `json:"write_empty_files" mapstructure:"write_empty_files"`
	Database        Database `json:"database" mapstructure:"database"`

	// Programmatic surface, set before a build starts and immutable during it.
	Populate   PopulateFunc `json:"-" mapstructure:"-"`
	AfterBuild func() error `json:"-" mapstructure:"-"`
	rules      map[string]NamingRule
}

type Database struct {
	Provider string `json:"provider" mapstructure:"provider"`
	URLEnv   string `json:"url_env" mapstructure:"url_env"`
}

func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FixturesDir == "" {
		c.FixturesDir = filepath.Join("test", "fixtures")
	}
	if c.TmpDir == "" {
		c.TmpDir = "tmp"
	}
	if len(c.FilesToCheck) == 0 {
		if used := viper.ConfigFileUsed(); used != "" {
			c.FilesToCheck = []string{used}
		}
	}
	if c.Database.Provider == "" {
		c.Database.Provider = "postgresql"
	}
	if c.Database.URLEnv == "" {
		c.Database.URLEnv = "DATABASE_URL"
	}
}

// NameModelWith registers a naming rule for a table. Bad registrations are
// configuration errors and surface immediately, not at build time.
func (c *Config) NameModelWith(table string, rule NamingRule) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("naming rule registered for empty table name")
	}
	if rule == nil {
		return fmt.Errorf("nil naming rule registered for table %s", table)
	}
	if c.rules == nil {
		c.rules = make(map[string]NamingRule)
	}
	c.rules[table] = rule
	return nil
}

// NamingRuleFor returns the registered rule for a table, or nil.
func (c *Config) NamingRuleFor(table string) NamingRule {
	return c.rules[table]
}

// NamedTables returns the tables with registered rules, sorted.
func (c *Config) NamedTables() []string {
	names := make([]string, 0, len(c.rules))
	for t := range c.rules {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

// FingerprintPath is the persisted fingerprint location, kept outside the
// fixtures directory so it never counts as a fixture artifact.
func (c *Config) FingerprintPath() string {
	return filepath.Join(c.TmpDir, "fixturesnap_fingerprint.yml")
}

func (c *Config) GetDatabaseURL() (string, error) {
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.FixturesDir, c.TmpDir} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	supportedProviders := []string{"postgresql", "postgres", "mysql", "sqlite", "sqlite3"}
	supported := false
	for _, provider := range supportedProviders {
		if c.Database.Provider == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database provider: %s. Supported providers: %v", c.Database.Provider, supportedProviders)
	}

	if c.FixturesDir == "" {
		return fmt.Errorf("fixtures_dir cannot be empty")
	}
	if c.TmpDir == "" {
		return fmt.Errorf("tmp_dir cannot be empty")
	}
	for _, path := range c.FilesToCheck {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("files_to_check contains an empty path")
		}
	}

	return nil
}
