// Package config loads gateway settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes.
const (
	AuthModeDevelopment = "development"
	AuthModeExternal    = "external"
)

// Audit stores.
const (
	AuditStoreMemory   = "memory"
	AuditStorePostgres = "postgres"
	AuditStoreRedis    = "redis"
	AuditStoreBadger   = "badger"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	AuthMode       string `mapstructure:"AUTH_MODE"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	TokenURL          string        `mapstructure:"TOKEN_URL"`
	TokenClientID     string        `mapstructure:"TOKEN_CLIENT_ID"`
	TokenClientSecret string        `mapstructure:"TOKEN_CLIENT_SECRET"`
	TokenAudience     string        `mapstructure:"TOKEN_AUDIENCE"`
	TokenScopes       []string      `mapstructure:"TOKEN_SCOPES"`
	TokenSkew         time.Duration `mapstructure:"TOKEN_SKEW"`
	TokenTimeout      time.Duration `mapstructure:"TOKEN_TIMEOUT"`

	PHSABaseURL       string        `mapstructure:"PHSA_BASE_URL"`
	DownstreamTimeout time.Duration `mapstructure:"DOWNSTREAM_TIMEOUT"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LabFetchSize      int           `mapstructure:"LAB_FETCH_SIZE"`

	// ODRBaseURL enables MSP visit history. Empty leaves it unconfigured.
	ODRBaseURL       string `mapstructure:"ODR_BASE_URL"`
	ODRMspVisitsPath string `mapstructure:"ODR_MSP_VISITS_PATH"`

	AuditStore        string        `mapstructure:"AUDIT_STORE"`
	AuditKafkaBrokers []string      `mapstructure:"AUDIT_KAFKA_BROKERS"`
	AuditKafkaTopic   string        `mapstructure:"AUDIT_KAFKA_TOPIC"`
	AuditBadgerDir    string        `mapstructure:"AUDIT_BADGER_DIR"`
	AuditWriteTimeout time.Duration `mapstructure:"AUDIT_WRITE_TIMEOUT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	TraceSampleRatio float64       `mapstructure:"TRACE_SAMPLE_RATIO"`
	ShutdownTimeout  time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":                "8000",
	"ENV":                 "development",
	"LOG_LEVEL":           "info",
	"AUTH_MODE":           "", // inferred from ENV
	"TOKEN_SKEW":          "60s",
	"TOKEN_TIMEOUT":       "10s",
	"DOWNSTREAM_TIMEOUT":  "5s",
	"REQUEST_TIMEOUT":     "30s",
	"LAB_FETCH_SIZE":      25,
	"ODR_MSP_VISITS_PATH": "/odr/mspVisits",
	"AUDIT_STORE":         AuditStoreMemory,
	"AUDIT_KAFKA_TOPIC":   "gateway-audit",
	"AUDIT_WRITE_TIMEOUT": "3s",
	"DB_MAX_CONNS":        20,
	"DB_MIN_CONNS":        2,
	"CORS_ORIGINS":        "http://localhost:3000",
	"TRACE_SAMPLE_RATIO":  1.0,
	"SHUTDOWN_TIMEOUT":    "10s",
}

// keys lists every bound variable so Unmarshal sees environment-only values.
var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"AUTH_MODE", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"TOKEN_URL", "TOKEN_CLIENT_ID", "TOKEN_CLIENT_SECRET", "TOKEN_AUDIENCE", "TOKEN_SCOPES",
	"TOKEN_SKEW", "TOKEN_TIMEOUT",
	"PHSA_BASE_URL", "DOWNSTREAM_TIMEOUT", "REQUEST_TIMEOUT", "LAB_FETCH_SIZE",
	"ODR_BASE_URL", "ODR_MSP_VISITS_PATH",
	"AUDIT_STORE", "AUDIT_KAFKA_BROKERS", "AUDIT_KAFKA_TOPIC", "AUDIT_BADGER_DIR", "AUDIT_WRITE_TIMEOUT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "TRACE_SAMPLE_RATIO", "SHUTDOWN_TIMEOUT",
}

// Load reads .env (when present) and the environment. It does not validate;
// callers run Validate or ValidateDatabase for what they need.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.TokenScopes = splitList(cfg.TokenScopes)
	cfg.AuditKafkaBrokers = splitList(cfg.AuditKafkaBrokers)
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.AuditStore = strings.ToLower(strings.TrimSpace(cfg.AuditStore))

	return cfg, nil
}

// splitList accepts both comma and space separated values and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, f := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, f)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE, or infers it: development under
// ENV=development, external otherwise.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeExternal
}

// Validate checks the settings the serve command depends on.
func (c *Config) Validate() error {
	var errs []error

	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
		if c.IsProduction() {
			errs = append(errs, errors.New("AUTH_MODE=development is not allowed with ENV=production"))
		}
	case AuthModeExternal:
		if c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
			errs = append(errs, errors.New("AUTH_MODE=external requires AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeDevelopment, AuthModeExternal, mode))
	}

	if err := c.ValidateToken(); err != nil {
		errs = append(errs, err)
	}
	if c.PHSABaseURL == "" {
		errs = append(errs, errors.New("PHSA_BASE_URL is required"))
	}
	if c.ODRBaseURL != "" {
		if u, err := url.Parse(c.ODRBaseURL); err != nil || !u.IsAbs() {
			errs = append(errs, errors.New("ODR_BASE_URL must be an absolute URL"))
		}
		if !strings.HasPrefix(c.ODRMspVisitsPath, "/") {
			errs = append(errs, errors.New("ODR_MSP_VISITS_PATH must start with /"))
		}
	}
	if c.DownstreamTimeout <= 0 {
		errs = append(errs, errors.New("DOWNSTREAM_TIMEOUT must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.LabFetchSize <= 0 {
		errs = append(errs, errors.New("LAB_FETCH_SIZE must be positive"))
	}
	if err := c.ValidateAudit(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateToken checks the client credential settings.
func (c *Config) ValidateToken() error {
	var errs []error
	if c.TokenURL == "" {
		errs = append(errs, errors.New("TOKEN_URL is required"))
	}
	if c.TokenClientID == "" {
		errs = append(errs, errors.New("TOKEN_CLIENT_ID is required"))
	}
	if c.TokenClientSecret == "" {
		errs = append(errs, errors.New("TOKEN_CLIENT_SECRET is required"))
	}
	if c.TokenSkew < 0 {
		errs = append(errs, errors.New("TOKEN_SKEW must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateAudit checks that the selected audit store has its backing
// service configured.
func (c *Config) ValidateAudit() error {
	switch c.AuditStore {
	case AuditStoreMemory, AuditStoreBadger:
	case AuditStorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("AUDIT_STORE=postgres requires DATABASE_URL")
		}
	case AuditStoreRedis:
		if c.RedisURL == "" {
			return errors.New("AUDIT_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("AUDIT_STORE must be memory, postgres, redis or badger, got %q", c.AuditStore)
	}
	if len(c.AuditKafkaBrokers) > 0 && c.AuditKafkaTopic == "" {
		return errors.New("AUDIT_KAFKA_TOPIC is required when AUDIT_KAFKA_BROKERS is set")
	}
	return nil
}

// ValidateDatabase checks the settings the migrate command depends on.
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}
