// Package config provides a standardized way to load, validate, and access
// application configuration for the fan-out services. It supports loading
// configuration from environment variables, files (JSON or YAML), and
// defaults, populated once at startup and passed to each constructor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fanout-lab/fanout/internal/errors"
)

// Service names, used to select which environment variables apply.
const (
	ServiceDelay = "delayd"
	ServiceFront = "frontd"
)

// Config holds all application configuration
type Config struct {
	Service   string          `json:"service" yaml:"service"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Upstream  UpstreamConfig  `json:"upstream" yaml:"upstream"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// ServerConfig holds HTTP server related configuration
type ServerConfig struct {
	Port     int    `json:"port" yaml:"port"`
	LogLevel string `json:"log_level" yaml:"log_level"`
	// MaxDelay caps the delay a client may request. Values above the cap are
	// rejected as a validation error instead of holding a request open
	// indefinitely.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay,omitempty"`
	// RequestTimeout bounds the whole request, so it must exceed MaxDelay.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout,omitempty"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout,omitempty"`
	// WriteTimeout is zero by default: responses are held open for the
	// requested delay, which a fixed write deadline would cut short.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout,omitempty"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout,omitempty"`
}

// UpstreamConfig holds delay service client configuration for the front service
type UpstreamConfig struct {
	// URL overrides Host/Port when set.
	URL  string `json:"url" yaml:"url"`
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// FetchGrace is added on top of the requested delay to form the outbound
	// call deadline.
	FetchGrace           time.Duration `json:"fetch_grace" yaml:"fetch_grace,omitempty"`
	EnableCircuitBreaker bool          `json:"enable_circuit_breaker" yaml:"enable_circuit_breaker"`
}

// BaseURL returns the delay service base URL
func (u UpstreamConfig) BaseURL() string {
	if u.URL != "" {
		return strings.TrimRight(u.URL, "/")
	}
	return fmt.Sprintf("http://%s:%d", u.Host, u.Port)
}

// DatabaseConfig holds PostgreSQL related configuration
type DatabaseConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	User         string `json:"user" yaml:"user"`
	Password     string `json:"password" yaml:"password"`
	Name         string `json:"name" yaml:"name"`
	SSLMode      string `json:"sslmode" yaml:"sslmode"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	// SleepGrace is added on top of the requested sleep to form the query
	// deadline.
	SleepGrace time.Duration `json:"sleep_grace" yaml:"sleep_grace,omitempty"`
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// SecurityConfig holds security related configuration
type SecurityConfig struct {
	// RateLimit and IPRateLimit are requests per minute; 0 disables the limit.
	RateLimit      int      `json:"rate_limit" yaml:"rate_limit"`
	IPRateLimit    int      `json:"ip_rate_limit" yaml:"ip_rate_limit"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers"`
	// AllowedIPs restricts callers when non-empty; empty allows everyone.
	AllowedIPs []string `json:"allowed_ips" yaml:"allowed_ips"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration
type TelemetryConfig struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	OTLPEndpoint  string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	SamplingRatio float64 `json:"sampling_ratio" yaml:"sampling_ratio"`
}

// DefaultConfig returns a configuration with sensible defaults for a service
func DefaultConfig(service string) *Config {
	cfg := &Config{
		Service: service,
		Server: ServerConfig{
			Port:           8080,
			LogLevel:       "info",
			MaxDelay:       300 * time.Second,
			RequestTimeout: 330 * time.Second,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   0,
			IdleTimeout:    120 * time.Second,
		},
		Upstream: UpstreamConfig{
			Host:       "slow_api",
			Port:       8080,
			FetchGrace: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         "postgres",
			Port:         5432,
			User:         "example",
			Password:     "example",
			Name:         "example",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			SleepGrace:   5 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit:      600,
			IPRateLimit:    120,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Content-Type",
				"Accept-Encoding",
				"X-Request-ID",
			},
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "localhost:4317",
			SamplingRatio: 0.1,
		},
	}

	if service == ServiceFront {
		cfg.Server.Port = 8000
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service != ServiceDelay && c.Service != ServiceFront {
		return errors.NewValidationError("Service must be delayd or frontd")
	}

	if c.Server.Port < 1024 || c.Server.Port > 65535 {
		return errors.NewValidationError("Server.Port must be between 1024 and 65535")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if _, ok := validLogLevels[strings.ToLower(c.Server.LogLevel)]; !ok {
		return errors.NewValidationError("Server.LogLevel must be one of: debug, info, warn, error")
	}

	if c.Server.MaxDelay <= 0 {
		return errors.NewValidationError("Server.MaxDelay must be positive")
	}
	if c.Server.RequestTimeout <= c.Server.MaxDelay {
		return errors.NewValidationError("Server.RequestTimeout must exceed Server.MaxDelay")
	}

	if c.Security.RateLimit < 0 {
		return errors.NewValidationError("Security.RateLimit cannot be negative")
	}
	if c.Security.IPRateLimit < 0 {
		return errors.NewValidationError("Security.IPRateLimit cannot be negative")
	}

	if c.Service == ServiceFront {
		if c.Upstream.URL == "" {
			if c.Upstream.Host == "" {
				return errors.NewValidationError("Upstream.Host cannot be empty")
			}
			if c.Upstream.Port < 1 || c.Upstream.Port > 65535 {
				return errors.NewValidationError("Upstream.Port must be between 1 and 65535")
			}
		}

		if c.Database.Enabled {
			if c.Database.Host == "" {
				return errors.NewValidationError("Database.Host cannot be empty")
			}
			if c.Database.User == "" {
				return errors.NewValidationError("Database.User cannot be empty")
			}
			if c.Database.Name == "" {
				return errors.NewValidationError("Database.Name cannot be empty")
			}
			if c.Database.MaxOpenConns < 1 {
				return errors.NewValidationError("Database.MaxOpenConns must be positive")
			}
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return errors.NewValidationError("Telemetry.OTLPEndpoint is required when tracing is enabled")
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables on top of defaults.
//
// The listen port comes from PORT for the delay service and PORT_APP for the
// front service; the front service reads the delay service's port from
// PORT_API, matching the container conventions of the demo deployment.
func LoadFromEnv(service string) (*Config, error) {
	cfg := DefaultConfig(service)
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	portVar := "PORT"
	if cfg.Service == ServiceFront {
		portVar = "PORT_APP"
	}
	if val := os.Getenv(portVar); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Server.LogLevel = val
	}
	if d, ok := durationEnv("MAX_DELAY"); ok {
		cfg.Server.MaxDelay = d
	}
	if d, ok := durationEnv("REQUEST_TIMEOUT"); ok {
		cfg.Server.RequestTimeout = d
	}
	if d, ok := durationEnv("READ_TIMEOUT"); ok {
		cfg.Server.ReadTimeout = d
	}
	if d, ok := durationEnv("WRITE_TIMEOUT"); ok {
		cfg.Server.WriteTimeout = d
	}
	if d, ok := durationEnv("IDLE_TIMEOUT"); ok {
		cfg.Server.IdleTimeout = d
	}

	// Upstream (front service only)
	if val := os.Getenv("UPSTREAM_URL"); val != "" {
		cfg.Upstream.URL = val
	}
	if val := os.Getenv("UPSTREAM_HOST"); val != "" {
		cfg.Upstream.Host = val
	}
	if val := os.Getenv("PORT_API"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Upstream.Port = port
		}
	}
	if d, ok := durationEnv("UPSTREAM_FETCH_GRACE"); ok {
		cfg.Upstream.FetchGrace = d
	}
	if val := os.Getenv("ENABLE_CIRCUIT_BREAKER"); val != "" {
		cfg.Upstream.EnableCircuitBreaker = boolValue(val)
	}

	// Database (front service only)
	if val := os.Getenv("DB_ENABLED"); val != "" {
		cfg.Database.Enabled = boolValue(val)
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		cfg.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Database.Port = port
		}
	}
	if val := os.Getenv("DB_USER"); val != "" {
		cfg.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		cfg.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		cfg.Database.Name = val
	}
	if val := os.Getenv("DB_SSLMODE"); val != "" {
		cfg.Database.SSLMode = val
	}
	if val := os.Getenv("DB_MAX_OPEN_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Database.MaxOpenConns = n
		}
	}
	if val := os.Getenv("DB_MAX_IDLE_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			cfg.Database.MaxIdleConns = n
		}
	}
	if d, ok := durationEnv("DB_SLEEP_GRACE"); ok {
		cfg.Database.SleepGrace = d
	}

	// Security
	if val := os.Getenv("RATE_LIMIT"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil && limit >= 0 {
			cfg.Security.RateLimit = limit
		}
	}
	if val := os.Getenv("IP_RATE_LIMIT"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil && limit >= 0 {
			cfg.Security.IPRateLimit = limit
		}
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		cfg.Security.AllowedOrigins = strings.Split(val, ",")
	}
	if val := os.Getenv("ALLOWED_METHODS"); val != "" {
		cfg.Security.AllowedMethods = strings.Split(val, ",")
	}
	if val := os.Getenv("ALLOWED_HEADERS"); val != "" {
		cfg.Security.AllowedHeaders = strings.Split(val, ",")
	}
	if val := os.Getenv("ALLOWED_IPS"); val != "" {
		cfg.Security.AllowedIPs = strings.Split(val, ",")
	}

	// Telemetry
	if val := os.Getenv("ENABLE_TRACING"); val != "" {
		cfg.Telemetry.Enabled = boolValue(val)
	}
	if val := os.Getenv("OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("TRACE_SAMPLING_RATIO"); val != "" {
		if ratio, err := strconv.ParseFloat(val, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.Telemetry.SamplingRatio = ratio
		}
	}
}

// durationEnv parses an environment variable as a duration. Bare integers are
// treated as seconds, everything else goes through time.ParseDuration.
func durationEnv(key string) (time.Duration, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(val); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if d, err := time.ParseDuration(val); err == nil && d >= 0 {
		return d, true
	}
	return 0, false
}

func boolValue(val string) bool {
	return strings.ToLower(val) == "true" || val == "1"
}

// fileConfig mirrors Config with string duration fields for parsing
type fileConfig struct {
	Server struct {
		Port           int    `json:"port" yaml:"port"`
		LogLevel       string `json:"log_level" yaml:"log_level"`
		MaxDelay       string `json:"max_delay" yaml:"max_delay"`
		RequestTimeout string `json:"request_timeout" yaml:"request_timeout"`
		ReadTimeout    string `json:"read_timeout" yaml:"read_timeout"`
		WriteTimeout   string `json:"write_timeout" yaml:"write_timeout"`
		IdleTimeout    string `json:"idle_timeout" yaml:"idle_timeout"`
	} `json:"server" yaml:"server"`
	Upstream struct {
		URL                  string `json:"url" yaml:"url"`
		Host                 string `json:"host" yaml:"host"`
		Port                 int    `json:"port" yaml:"port"`
		FetchGrace           string `json:"fetch_grace" yaml:"fetch_grace"`
		EnableCircuitBreaker bool   `json:"enable_circuit_breaker" yaml:"enable_circuit_breaker"`
	} `json:"upstream" yaml:"upstream"`
	Database struct {
		Enabled      bool   `json:"enabled" yaml:"enabled"`
		Host         string `json:"host" yaml:"host"`
		Port         int    `json:"port" yaml:"port"`
		User         string `json:"user" yaml:"user"`
		Password     string `json:"password" yaml:"password"`
		Name         string `json:"name" yaml:"name"`
		SSLMode      string `json:"sslmode" yaml:"sslmode"`
		MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns"`
		MaxIdleConns int    `json:"max_idle_conns" yaml:"max_idle_conns"`
		SleepGrace   string `json:"sleep_grace" yaml:"sleep_grace"`
	} `json:"database" yaml:"database"`
	Security struct {
		RateLimit      int      `json:"rate_limit" yaml:"rate_limit"`
		IPRateLimit    int      `json:"ip_rate_limit" yaml:"ip_rate_limit"`
		AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
		AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods"`
		AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers"`
		AllowedIPs     []string `json:"allowed_ips" yaml:"allowed_ips"`
	} `json:"security" yaml:"security"`
	Telemetry struct {
		Enabled       bool    `json:"enabled" yaml:"enabled"`
		OTLPEndpoint  string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
		SamplingRatio float64 `json:"sampling_ratio" yaml:"sampling_ratio"`
	} `json:"telemetry" yaml:"telemetry"`
}

// LoadFromFile loads configuration from a JSON or YAML file on top of defaults
func LoadFromFile(path, service string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var fc fileConfig
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON config file")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML config file")
		}
	default:
		return nil, errors.NewValidationError("unsupported config file format: " + ext)
	}

	cfg := DefaultConfig(service)
	applyFile(cfg, &fc)
	return cfg, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.Server.Port != 0 {
		cfg.Server.Port = fc.Server.Port
	}
	if fc.Server.LogLevel != "" {
		cfg.Server.LogLevel = fc.Server.LogLevel
	}
	setDuration(&cfg.Server.MaxDelay, fc.Server.MaxDelay)
	setDuration(&cfg.Server.RequestTimeout, fc.Server.RequestTimeout)
	setDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout)
	setDuration(&cfg.Server.IdleTimeout, fc.Server.IdleTimeout)

	if fc.Upstream.URL != "" {
		cfg.Upstream.URL = fc.Upstream.URL
	}
	if fc.Upstream.Host != "" {
		cfg.Upstream.Host = fc.Upstream.Host
	}
	if fc.Upstream.Port != 0 {
		cfg.Upstream.Port = fc.Upstream.Port
	}
	setDuration(&cfg.Upstream.FetchGrace, fc.Upstream.FetchGrace)
	if fc.Upstream.EnableCircuitBreaker {
		cfg.Upstream.EnableCircuitBreaker = true
	}

	if fc.Database.Enabled {
		cfg.Database.Enabled = true
	}
	if fc.Database.Host != "" {
		cfg.Database.Host = fc.Database.Host
	}
	if fc.Database.Port != 0 {
		cfg.Database.Port = fc.Database.Port
	}
	if fc.Database.User != "" {
		cfg.Database.User = fc.Database.User
	}
	if fc.Database.Password != "" {
		cfg.Database.Password = fc.Database.Password
	}
	if fc.Database.Name != "" {
		cfg.Database.Name = fc.Database.Name
	}
	if fc.Database.SSLMode != "" {
		cfg.Database.SSLMode = fc.Database.SSLMode
	}
	if fc.Database.MaxOpenConns != 0 {
		cfg.Database.MaxOpenConns = fc.Database.MaxOpenConns
	}
	if fc.Database.MaxIdleConns != 0 {
		cfg.Database.MaxIdleConns = fc.Database.MaxIdleConns
	}
	setDuration(&cfg.Database.SleepGrace, fc.Database.SleepGrace)

	if fc.Security.RateLimit != 0 {
		cfg.Security.RateLimit = fc.Security.RateLimit
	}
	if fc.Security.IPRateLimit != 0 {
		cfg.Security.IPRateLimit = fc.Security.IPRateLimit
	}
	if len(fc.Security.AllowedOrigins) > 0 {
		cfg.Security.AllowedOrigins = fc.Security.AllowedOrigins
	}
	if len(fc.Security.AllowedMethods) > 0 {
		cfg.Security.AllowedMethods = fc.Security.AllowedMethods
	}
	if len(fc.Security.AllowedHeaders) > 0 {
		cfg.Security.AllowedHeaders = fc.Security.AllowedHeaders
	}
	if len(fc.Security.AllowedIPs) > 0 {
		cfg.Security.AllowedIPs = fc.Security.AllowedIPs
	}

	if fc.Telemetry.Enabled {
		cfg.Telemetry.Enabled = true
	}
	if fc.Telemetry.OTLPEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = fc.Telemetry.OTLPEndpoint
	}
	if fc.Telemetry.SamplingRatio != 0 {
		cfg.Telemetry.SamplingRatio = fc.Telemetry.SamplingRatio
	}
}

// setDuration parses raw as a duration and stores it when valid. Bare
// integers are treated as seconds.
func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		*dst = time.Duration(secs) * time.Second
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		*dst = d
	}
}

// Load loads the configuration from multiple sources with the following
// precedence:
//  1. Environment variables (highest precedence)
//  2. Config file
//  3. Default values (lowest precedence)
//
// A .env file in the working directory is read first, if present, so local
// runs can use the same variable names as the container deployment.
func Load(configFile, service string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if configFile != "" {
		fileCfg, err := LoadFromFile(configFile, service)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	} else {
		cfg = DefaultConfig(service)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// String returns a string representation of the configuration
// with sensitive fields masked
func (c *Config) String() string {
	// Create a copy to avoid modifying the original
	masked := *c

	if masked.Database.Password != "" {
		masked.Database.Password = "********"
	}

	bytes, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling config: %v", err)
	}

	return string(bytes)
}
