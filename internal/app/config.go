package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/notedapp/noted-sync/pkg/logger"
	"github.com/notedapp/noted-sync/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AppConfig is the full application configuration.
type AppConfig struct {
	File     string         `yaml:"-"` // config file path, not serialized
	Log      logger.Config  `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
}

// DatabaseConfig configures the local sqlite store holding notes,
// credentials and sync mappings.
type DatabaseConfig struct {
	// Path is the sqlite database file path.
	Path string `yaml:"path" default:"storage/database/noted.sqlite3" validate:"required"`
	// AutoMigrate enables schema migration on startup.
	AutoMigrate bool `yaml:"auto-migrate" default:"true"`
}

// AuthConfig configures the device-flow identity provider.
type AuthConfig struct {
	// ClientID is the application's registration with the identity
	// provider. Empty until the user fills it in; sign-in refuses to start
	// without it so local-only commands still work.
	ClientID string `yaml:"client-id"`
	// Authority is the identity provider base URL.
	Authority string `yaml:"authority" default:"https://login.microsoftonline.com/common/oauth2/v2.0" validate:"required,url"`
	// Scopes requested for the access token.
	Scopes []string `yaml:"scopes" default:"[\"Files.ReadWrite.AppFolder\",\"User.Read\",\"offline_access\"]"`
}

// RemoteConfig configures the remote note store API.
type RemoteConfig struct {
	// BaseURL is the note store API root, scoped to the app-private folder.
	BaseURL string `yaml:"base-url" default:"https://graph.microsoft.com/v1.0/me/drive/special/approot" validate:"required,url"`
	// RequestTimeout bounds a single HTTP call.
	RequestTimeout string `yaml:"request-timeout" default:"20s"`
	// RatePerSecond throttles outgoing calls; the remote API rate-limits.
	RatePerSecond float64 `yaml:"rate-per-second" default:"4"`
	// MaxRetries bounds internal retries of transient transport errors.
	MaxRetries int `yaml:"max-retries" default:"3"`
}

// SyncConfig configures the sync engine and the background schedule.
type SyncConfig struct {
	// Schedule is a cron expression for periodic runs in agent mode.
	Schedule string `yaml:"schedule" default:"*/5 * * * *"`
	// RunTimeout bounds one whole sync run.
	RunTimeout string `yaml:"run-timeout" default:"5m"`
	// SkewTolerance is the window within which two modification times are
	// treated as equal, absorbing clock drift between clients.
	SkewTolerance string `yaml:"skew-tolerance" default:"2s"`
}

// LoadConfig loads configuration from a file, applying defaults and
// validating the result. Returns the config and the file's absolute path.
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	c := new(AppConfig)
	c.File = realpath

	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "set default config failed")
	}

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	if err := yaml.Unmarshal(file, c); err != nil {
		return nil, realpath, errors.Wrap(err, "parse config file failed")
	}

	// Re-apply defaults to fill fields present in the YAML but left empty.
	// defaults.Set only fills zero values.
	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "re-set default config failed")
	}

	if err := validator.New().Struct(c); err != nil {
		return nil, realpath, errors.Wrap(err, "validate config failed")
	}

	return c, realpath, nil
}

// Save writes the configuration back to its file.
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}

	if err := os.WriteFile(c.File, data, 0o644); err != nil {
		return errors.Wrap(err, "write config file failed")
	}

	return nil
}

// GetRunTimeout returns the sync run timeout.
func (c *AppConfig) GetRunTimeout() time.Duration {
	if d, err := util.ParseDuration(c.Sync.RunTimeout); err == nil {
		return d
	}
	return 5 * time.Minute
}

// GetSkewTolerance returns the timestamp comparison tolerance.
func (c *AppConfig) GetSkewTolerance() time.Duration {
	if d, err := util.ParseDuration(c.Sync.SkewTolerance); err == nil {
		return d
	}
	return 2 * time.Second
}

// GetRequestTimeout returns the per-call HTTP timeout.
func (c *AppConfig) GetRequestTimeout() time.Duration {
	if d, err := util.ParseDuration(c.Remote.RequestTimeout); err == nil {
		return d
	}
	return 20 * time.Second
}
