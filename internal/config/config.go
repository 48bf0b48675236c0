// Package config loads the portal's runtime settings from environment
// variables, fills in defaults, and validates the result before anything
// else starts.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration. One value is loaded at startup
// and passed down by value; nothing re-reads the environment afterwards.
type Config struct {
	// HTTP server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug, release, or test

	// Logging and routing
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // console writer for local development
	APIBasePath string

	// Storage and retrieval
	DBPath    string  // SQLite database file
	DataPath  string  // knowledge base markdown file
	Threshold float64 // retrieval confidence cutoff in [0,1]

	Auth AuthConfig

	// Token-bucket rate limiting
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig
	OTEL     OTELConfig
}

// AuthConfig covers JWT signing and the bootstrap admin account.
type AuthConfig struct {
	JWTSecret     string        // required in release mode
	JWTTTL        time.Duration // token lifetime
	AdminEmail    string        // seeded at startup when set, stored lowercase
	AdminPassword string
}

// CORSConfig lists the origins allowed to call the API from a browser. Empty
// means allow all.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls the opt-in security headers.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig controls trace export over OTLP gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool   // plaintext transport to the collector
	ServiceName string
	SampleRatio float64 // in [0,1]
}

// MustLoad is Load for main(): the process cannot run on a broken
// configuration, so it panics instead of returning the error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and normalization, and
// validates the assembled Config. Malformed numeric or duration values fall
// back to their defaults rather than failing the load; validation only
// rejects values that are present but semantically wrong.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath:    getenv("DB_PATH", "portal.db"),
		DataPath:  getenv("DATA_PATH", "data/knowledge.md"),
		Threshold: getfloat("THRESHOLD", 0.2),

		Auth: AuthConfig{
			JWTSecret:     getenv("JWT_SECRET", ""),
			JWTTTL:        getdur("JWT_TTL", 8*time.Hour),
			AdminEmail:    strings.ToLower(getenv("ADMIN_EMAIL", "")),
			AdminPassword: getenv("ADMIN_PASSWORD", ""),
		},

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "portal-support"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch {
	case strings.TrimSpace(c.Port) == "":
		return errors.New("PORT must not be empty")
	case c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0:
		return errors.New("timeouts must be positive durations")
	case c.MaxHeaderBytes <= 0:
		return errors.New("MAX_HEADER_BYTES must be > 0")
	case strings.TrimSpace(c.DBPath) == "":
		return errors.New("DB_PATH must not be empty")
	case strings.TrimSpace(c.DataPath) == "":
		return errors.New("DATA_PATH must not be empty")
	case c.Threshold < 0 || c.Threshold > 1:
		return errors.New("THRESHOLD must be between 0 and 1")
	case c.GinMode == "release" && strings.TrimSpace(c.Auth.JWTSecret) == "":
		return errors.New("JWT_SECRET must be set in release mode")
	case c.Auth.JWTTTL <= 0:
		return errors.New("JWT_TTL must be > 0")
	case c.RateRPS < 0:
		return errors.New("RATE_RPS must be >= 0")
	case c.RateBurst < 1:
		return errors.New("RATE_BURST must be >= 1")
	case c.Security.HSTSMaxAge < 0:
		return errors.New("HSTS_MAX_AGE must be >= 0")
	case c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1:
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Environment helpers. An unset or empty variable always yields the default;
// so does a value that fails to parse.

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getfloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getbool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty entries. Returns nil for an empty input.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeBasePath guarantees a leading slash and no trailing slash, with
// "/" standing in for an empty path.
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
