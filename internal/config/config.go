package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

const (
	DefaultAddress       = "localhost"
	DefaultPort          = 8080
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultSessionTTL    = time.Hour
	DefaultSweepInterval = time.Minute
	DefaultAuditDir      = "audit"
	DefaultFlushInterval = 5 * time.Second
	DefaultFlushHands    = 100
	DefaultAuthTimeout   = 500 * time.Millisecond
)

// Config represents the complete blackjackd configuration
type Config struct {
	Server  ServerSettings  `hcl:"server,block"`
	Session SessionSettings `hcl:"session,block"`
	Audit   AuditSettings   `hcl:"audit,block"`
	Auth    AuthSettings    `hcl:"auth,block"`
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Port      int    `hcl:"port,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
}

// SessionSettings controls session lifetime. Durations use Go syntax
// ("90s", "1h").
type SessionSettings struct {
	TTL           string `hcl:"ttl,optional"`
	SweepInterval string `hcl:"sweep_interval,optional"`
}

// AuditSettings controls the on-disk record of finished games
type AuditSettings struct {
	Enabled       bool   `hcl:"enabled,optional"`
	Dir           string `hcl:"dir,optional"`
	FlushInterval string `hcl:"flush_interval,optional"`
	FlushHands    int    `hcl:"flush_hands,optional"`
}

// AuthSettings points at an external token validation service. Auth is
// disabled when URL is empty.
type AuthSettings struct {
	URL         string `hcl:"url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
	Timeout     string `hcl:"timeout,optional"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:   DefaultAddress,
			Port:      DefaultPort,
			LogLevel:  DefaultLogLevel,
			LogFormat: DefaultLogFormat,
		},
		Session: SessionSettings{
			TTL:           DefaultSessionTTL.String(),
			SweepInterval: DefaultSweepInterval.String(),
		},
		Audit: AuditSettings{
			Enabled:       false,
			Dir:           DefaultAuditDir,
			FlushInterval: DefaultFlushInterval.String(),
			FlushHands:    DefaultFlushHands,
		},
		Auth: AuthSettings{
			Timeout: DefaultAuthTimeout.String(),
		},
	}
}

// Load reads configuration from an HCL file. A missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and fills in defaults for missing values
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw struct {
		Server  *ServerSettings  `hcl:"server,block"`
		Session *SessionSettings `hcl:"session,block"`
		Audit   *AuditSettings   `hcl:"audit,block"`
		Auth    *AuthSettings    `hcl:"auth,block"`
	}
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config := Config{}
	if raw.Server != nil {
		config.Server = *raw.Server
	}
	if raw.Session != nil {
		config.Session = *raw.Session
	}
	if raw.Audit != nil {
		config.Audit = *raw.Audit
	}
	if raw.Auth != nil {
		config.Auth = *raw.Auth
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = DefaultAddress
	}
	if config.Server.Port == 0 {
		config.Server.Port = DefaultPort
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = DefaultLogLevel
	}
	if config.Server.LogFormat == "" {
		config.Server.LogFormat = DefaultLogFormat
	}
	if config.Session.TTL == "" {
		config.Session.TTL = DefaultSessionTTL.String()
	}
	if config.Session.SweepInterval == "" {
		config.Session.SweepInterval = DefaultSweepInterval.String()
	}
	if config.Audit.Dir == "" {
		config.Audit.Dir = DefaultAuditDir
	}
	if config.Audit.FlushInterval == "" {
		config.Audit.FlushInterval = DefaultFlushInterval.String()
	}
	if config.Audit.FlushHands == 0 {
		config.Audit.FlushHands = DefaultFlushHands
	}
	if config.Auth.Timeout == "" {
		config.Auth.Timeout = DefaultAuthTimeout.String()
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Server.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	switch c.Server.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Server.LogFormat)
	}

	ttl, err := c.SessionTTL()
	if err != nil {
		return err
	}
	sweep, err := c.SweepInterval()
	if err != nil {
		return err
	}
	if sweep > ttl {
		return fmt.Errorf("sweep interval %s must not exceed session ttl %s", sweep, ttl)
	}

	if c.Audit.Enabled {
		if _, err := c.FlushInterval(); err != nil {
			return err
		}
		if c.Audit.FlushHands < 1 {
			return fmt.Errorf("audit flush_hands must be positive")
		}
	}

	if c.AuthEnabled() {
		if _, err := c.AuthTimeout(); err != nil {
			return err
		}
	}

	return nil
}

// SessionTTL returns the parsed session lifetime
func (c *Config) SessionTTL() (time.Duration, error) {
	return positiveDuration("session ttl", c.Session.TTL)
}

// SweepInterval returns the parsed expiry sweep interval
func (c *Config) SweepInterval() (time.Duration, error) {
	return positiveDuration("session sweep_interval", c.Session.SweepInterval)
}

// FlushInterval returns the parsed audit flush interval
func (c *Config) FlushInterval() (time.Duration, error) {
	return positiveDuration("audit flush_interval", c.Audit.FlushInterval)
}

// AuthEnabled reports whether callers must present a token
func (c *Config) AuthEnabled() bool {
	return c.Auth.URL != ""
}

// AuthTimeout returns the parsed auth request timeout
func (c *Config) AuthTimeout() (time.Duration, error) {
	return positiveDuration("auth timeout", c.Auth.Timeout)
}

// Address returns the full listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

func positiveDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return d, nil
}
