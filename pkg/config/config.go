// Package config loads the doorman server configuration.
//
// The configuration file is line oriented: one directive per line, a
// case-insensitive keyword followed by space-separated values. Blank lines
// and lines starting with '#' are ignored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default token lifetimes (seconds) when the config does not override them.
const (
	DefaultMaxGrantLife = 300 * time.Second
	DefaultMaxTokenLife = 604800 * time.Second
)

// Application is a client registered through the Application directive.
type Application struct {
	ClientID    string
	RedirectURI string
	Name        string
}

// Resource is a shared resource registered through the Resource directive.
type Resource struct {
	// Scope is public, private, or shared.
	Scope string

	// Group optionally restricts a shared resource to a POSIX group
	// (name or numeric gid). Empty means any holder of the shared scope.
	Group string

	RemotePath string
	LocalPath  string
}

// Config is the parsed and validated server configuration.
type Config struct {
	// ServerName is the hostname clients must use (Host header check).
	ServerName string

	// ServerPort is the TLS listener port. Zero means the default of
	// 9000 + (uid mod 1000).
	ServerPort int

	// LogFile is "stderr", "syslog", "none", or a file path.
	LogFile string

	// LogLevel is "error", "info", or "debug".
	LogLevel string

	// MaxGrantLife bounds grant (authorization code) token lifetime.
	MaxGrantLife time.Duration

	// MaxTokenLife bounds access and renewal token lifetime.
	MaxTokenLife time.Duration

	// IntrospectGroup, when set, restricts the introspection endpoint to
	// members of this group (name or numeric gid).
	IntrospectGroup string

	// RegisterGroup, when set, restricts dynamic client registration to
	// members of this group.
	RegisterGroup string

	// BasicAuth enables HTTP Basic authentication as a backup to Bearer.
	BasicAuth bool

	// Metrics exposes prometheus counters under /metrics.
	Metrics bool

	// TestPassword, when set, bypasses the system authenticator: any
	// known user with this password is accepted. Test use only.
	TestPassword string

	// StateFile is where the signing key is persisted.
	StateFile string

	Applications []Application
	Resources    []Resource
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		LogFile:      "stderr",
		LogLevel:     "info",
		MaxGrantLife: DefaultMaxGrantLife,
		MaxTokenLife: DefaultMaxTokenLife,
		StateFile:    defaultStateFile(),
	}
}

// Load reads and parses the named configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := New()
	if err := cfg.parse(f, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints not enforced during parsing.
func (c *Config) Validate() error {
	if c.MaxGrantLife <= 0 {
		return fmt.Errorf("MaxGrantLife must be positive")
	}
	if c.MaxTokenLife <= 0 {
		return fmt.Errorf("MaxTokenLife must be positive")
	}
	switch c.LogLevel {
	case "error", "info", "debug":
	default:
		return fmt.Errorf("unknown LogLevel %q", c.LogLevel)
	}
	for _, r := range c.Resources {
		if r.Group != "" && r.Scope != "shared" {
			return fmt.Errorf("resource %s: group restriction requires shared scope", r.RemotePath)
		}
	}
	return nil
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "doorman.state"
	}
	return filepath.Join(home, ".config", "doorman", "doorman.state")
}
