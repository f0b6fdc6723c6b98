// Package config loads the notes server configuration from CLI flags and
// environment variables, validates it, and fills in defaults.
//
// CLI flags turn off optional surfaces (--no-mcp, --no-realtime) and
// override the listen address (--addr). Everything else comes from the
// environment.
package config

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notes-api/internal/db"
	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/kuitang/notes-api/internal/ratelimit"
)

const (
	defaultPort     = "4000"
	defaultDatabase = "notes"
	defaultCORS     = "*"
)

// Environments accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all server configuration.
type Config struct {
	// Server settings
	ListenAddr      string
	BaseURL         string
	CORSOrigin      string
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Store
	StoreURI      string
	StoreDatabase string // MongoDB database name
	StoreKey      string // optional, 64 hex characters (SQLCipher)

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// Optional surfaces (controlled by CLI flags)
	NoMCP      bool
	NoRealtime bool
}

// Flags holds the parsed CLI flag values.
type Flags struct {
	Addr       string
	NoMCP      bool
	NoRealtime bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses args (typically os.Args[1:]) into Flags.
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("notes-server", flag.ContinueOnError)
	fs.StringVar(&f.Addr, "addr", "", "Listen address (overrides LISTEN_ADDR and PORT)")
	fs.BoolVar(&f.NoMCP, "no-mcp", false, "Disable the MCP endpoint at /mcp")
	fs.BoolVar(&f.NoRealtime, "no-realtime", false, "Disable the WebSocket change feed at /ws")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables and flag values.
func LoadConfig(flags Flags) (*Config, error) {
	cfg := &Config{
		NoMCP:      flags.NoMCP,
		NoRealtime: flags.NoRealtime,
	}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":"+getEnvOrDefault("PORT", defaultPort))
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}
	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("BASE_URL", ""), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + listenPort(cfg.ListenAddr)
	}
	cfg.CORSOrigin = getEnvOrDefault("CORS_ORIGIN", defaultCORS)
	cfg.Env = strings.ToLower(getEnvOrDefault("APP_ENV", EnvDevelopment))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.ShutdownTimeout = parseDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	// Store
	cfg.StoreURI = getEnvOrDefault("STORE_URI", getEnvOrDefault("MONGODB_URI", ""))
	cfg.StoreDatabase = getEnvOrDefault("STORE_DATABASE", defaultDatabase)
	cfg.StoreKey = getEnvOrDefault("STORE_KEY", "")

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.StoreURI == "" {
		errs = append(errs, "STORE_URI is required (or MONGODB_URI; e.g. sqlite://./data/notes.db)")
	}
	if c.StoreKey != "" {
		if len(c.StoreKey) != 64 {
			errs = append(errs, "STORE_KEY must be 64 hex characters (32 bytes)")
		} else if _, err := hex.DecodeString(c.StoreKey); err != nil {
			errs = append(errs, "STORE_KEY must be hex encoded")
		}
		if c.StoreURI != "" && db.BackendFor(c.StoreURI) != db.BackendSQLite {
			errs = append(errs, "STORE_KEY is only supported by the sqlite store")
		}
	}
	if db.BackendFor(c.StoreURI) == db.BackendMongo && c.StoreDatabase == "" {
		errs = append(errs, "STORE_DATABASE must not be empty for mongodb")
	}
	if c.IsProduction() && db.IsInMemory(c.StoreURI) {
		errs = append(errs, "STORE_URI must not be an in-memory store in production")
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Sprintf("APP_ENV must be one of development, production, test (got %q)", c.Env))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}
	if strings.TrimSpace(c.CORSOrigin) == "" {
		errs = append(errs, "CORS_ORIGIN must not be empty (use * to allow any origin)")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// StoreOptions returns the options for db.Open.
func (c *Config) StoreOptions() db.Options {
	return db.Options{URI: c.StoreURI, Database: c.StoreDatabase, Key: c.StoreKey}
}

// PrintStartupSummary writes a human-readable summary of the configuration to w.
func (c *Config) PrintStartupSummary(w io.Writer, version string) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "notes-api %s starting (%s)...\n", version, c.Env)

	fmt.Fprintf(w, "  Store:    %s (%s)\n", db.BackendFor(c.StoreURI), logutil.RedactURI(c.StoreURI))
	if c.StoreKey != "" {
		fmt.Fprintln(w, "  Encrypt:  SQLCipher (STORE_KEY)")
	}
	fmt.Fprintf(w, "  Limit:    %.0f rps, burst %d\n", c.RateLimitConfig.RPS, c.RateLimitConfig.Burst)
	fmt.Fprintf(w, "  CORS:     %s\n", c.CORSOrigin)
	fmt.Fprintf(w, "  MCP:      %s\n", enabled(!c.NoMCP))
	fmt.Fprintf(w, "  Realtime: %s\n", enabled(!c.NoRealtime))
	fmt.Fprintf(w, "  Logging:  %s\n", obs.ParseLevel(c.LogLevel))
	fmt.Fprintf(w, "  Listen:   %s\n", c.ListenAddr)
	fmt.Fprintf(w, "  Base:     %s\n", c.BaseURL)
	fmt.Fprintln(w, "")
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func listenPort(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
