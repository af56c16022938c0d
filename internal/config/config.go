// Package config loads application configuration from a YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are
// separated by a double underscore: DISTRIBUTOR_DATABASE__URL.
const EnvPrefix = "DISTRIBUTOR_"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	CORS      CORSConfig      `koanf:"cors"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
	JWT       JWTConfig       `koanf:"jwt"`
	Firebase  FirebaseConfig  `koanf:"firebase"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// RedisConfig configures the shared token cache. Empty Addr disables it.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type JWTConfig struct {
	SecretKey string `koanf:"secret_key"`
	Issuer    string `koanf:"issuer"`
}

// FirebaseConfig holds the service account used for FCM.
// Push delivery is disabled when any credential field is empty.
type FirebaseConfig struct {
	ProjectID   string        `koanf:"project_id"`
	ClientEmail string        `koanf:"client_email"`
	PrivateKey  string        `koanf:"private_key"`
	TokenURL    string        `koanf:"token_url"`
	APIBaseURL  string        `koanf:"api_base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	RateLimit   float64       `koanf:"rate_limit"`
}

// IsConfigured reports whether all credential fields are present.
func (c FirebaseConfig) IsConfigured() bool {
	return c.ProjectID != "" && c.ClientEmail != "" && c.PrivateKey != ""
}

type SchedulerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Interval          time.Duration `koanf:"interval"`
	Retention         time.Duration `koanf:"retention"`
	LeaseDuration     time.Duration `koanf:"lease_duration"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	FanoutConcurrency int           `koanf:"fanout_concurrency"`
	PageSize          int           `koanf:"page_size"`
}

// Default returns the configuration used for keys absent from every source.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			MigrationsPath:  "migrations",
		},
		Redis: RedisConfig{
			KeyPrefix: "distributor:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Firebase: FirebaseConfig{
			Timeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:           true,
			Interval:          time.Minute,
			Retention:         48 * time.Hour,
			LeaseDuration:     10 * time.Minute,
			FanoutConcurrency: 1,
			PageSize:          100,
		},
	}
}

// Load reads configuration from path (optional) and the environment,
// layered on top of Default.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DISTRIBUTOR_FIREBASE__PROJECT_ID to firebase.project_id.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	if c.Scheduler.Retention <= 0 {
		errs = append(errs, errors.New("scheduler.retention must be positive"))
	}
	if c.Scheduler.LeaseDuration <= 0 {
		errs = append(errs, errors.New("scheduler.lease_duration must be positive"))
	}
	if c.Scheduler.HeartbeatInterval < 0 || (c.Scheduler.LeaseDuration > 0 && c.Scheduler.HeartbeatInterval >= c.Scheduler.LeaseDuration) {
		errs = append(errs, errors.New("scheduler.heartbeat_interval must be shorter than scheduler.lease_duration"))
	}
	if c.Scheduler.FanoutConcurrency < 1 {
		errs = append(errs, errors.New("scheduler.fanout_concurrency must be at least 1"))
	}
	if c.Scheduler.PageSize < 1 {
		errs = append(errs, errors.New("scheduler.page_size must be at least 1"))
	}

	if c.Firebase.RateLimit < 0 {
		errs = append(errs, errors.New("firebase.rate_limit must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
