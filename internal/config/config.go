// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	TokenTTL       time.Duration `yaml:"token_ttl"` // lifetime of tokens minted by the seed tool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres | memory
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns"`
	ApplySchema bool   `yaml:"apply_schema"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RateLimitRuleConfig mirrors model.RateLimitRule for yaml decoding.
type RateLimitRuleConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type RateLimitConfig struct {
	StoreTimeout       time.Duration                  `yaml:"store_timeout"`
	Retries            int                            `yaml:"retries"`
	RetryBackoff       time.Duration                  `yaml:"retry_backoff"`
	KeyPrefix          string                         `yaml:"key_prefix"`
	TrustXForwardedFor bool                           `yaml:"trust_x_forwarded_for"`
	Rules              map[string]RateLimitRuleConfig `yaml:"rules"` // scope -> rule
}

type PromoConfig struct {
	MaxUsesPerUser        int           `yaml:"max_uses_per_user"`
	SuffixLength          int           `yaml:"suffix_length"`
	MaxGenerationAttempts int           `yaml:"max_generation_attempts"`
	StoreTimeout          time.Duration `yaml:"store_timeout"`
}

type SchedulerConfig struct {
	PoolStatsInterval time.Duration `yaml:"pool_stats_interval"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Promo     PromoConfig     `yaml:"promo"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// LoadConfig reads the yaml file at path, applies env overrides and defaults,
// then validates. A missing file is an error unless dev is set, in which case
// an all-defaults memory-backed config is used.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case dev && errors.Is(err, os.ErrNotExist):
		cfg.Storage.Driver = DriverMemory
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	if dev && cfg.HTTP.JWTSecret == "" {
		cfg.HTTP.JWTSecret = "dev-secret-change-me"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.HTTP.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	// http
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.TokenTTL <= 0 {
		cfg.HTTP.TokenTTL = 24 * time.Hour
	}
	// log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	// storage
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverPostgres
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	// redis
	if cfg.Redis.DialTimeout <= 0 {
		cfg.Redis.DialTimeout = time.Second
	}
	if cfg.Redis.ReadTimeout <= 0 {
		cfg.Redis.ReadTimeout = 200 * time.Millisecond
	}
	if cfg.Redis.WriteTimeout <= 0 {
		cfg.Redis.WriteTimeout = 200 * time.Millisecond
	}
	// ratelimit
	if cfg.RateLimit.StoreTimeout <= 0 {
		cfg.RateLimit.StoreTimeout = 200 * time.Millisecond
	}
	if cfg.RateLimit.Retries < 0 {
		cfg.RateLimit.Retries = 0
	}
	if cfg.RateLimit.RetryBackoff <= 0 {
		cfg.RateLimit.RetryBackoff = 25 * time.Millisecond
	}
	if cfg.RateLimit.KeyPrefix == "" {
		cfg.RateLimit.KeyPrefix = "ratelimit"
	}
	if cfg.RateLimit.Rules == nil {
		cfg.RateLimit.Rules = map[string]RateLimitRuleConfig{}
	}
	for scope, def := range defaultRules {
		if _, ok := cfg.RateLimit.Rules[scope]; !ok {
			cfg.RateLimit.Rules[scope] = def
		}
	}
	// promo
	if cfg.Promo.MaxUsesPerUser <= 0 {
		cfg.Promo.MaxUsesPerUser = 10
	}
	if cfg.Promo.SuffixLength <= 0 {
		cfg.Promo.SuffixLength = 8
	}
	if cfg.Promo.MaxGenerationAttempts <= 0 {
		cfg.Promo.MaxGenerationAttempts = 10
	}
	if cfg.Promo.StoreTimeout <= 0 {
		cfg.Promo.StoreTimeout = 500 * time.Millisecond
	}
	// scheduler
	if cfg.Scheduler.PoolStatsInterval <= 0 {
		cfg.Scheduler.PoolStatsInterval = 15 * time.Second
	}
}

var defaultRules = map[string]RateLimitRuleConfig{
	"api":          {Limit: 300, Window: time.Minute},
	"badge-verify": {Limit: 10, Window: time.Minute},
	"promo-issue":  {Limit: 20, Window: time.Minute},
	"promo-verify": {Limit: 30, Window: time.Minute},
	"promo-redeem": {Limit: 5, Window: time.Minute},
	"engagement":   {Limit: 60, Window: time.Minute},
}

// Validate performs minimal checks on a config that already has defaults.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
		if c.Redis.URL == "" {
			return errors.New("redis.url is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.HTTP.JWTSecret == "" {
		return errors.New("http.jwt_secret is required")
	}
	for scope, r := range c.RateLimit.Rules {
		if r.Limit <= 0 || r.Window < time.Millisecond {
			return fmt.Errorf("ratelimit.rules.%s: limit and window must be positive", scope)
		}
		if r.Window > 24*time.Hour {
			return fmt.Errorf("ratelimit.rules.%s: window must not exceed 24h", scope)
		}
	}
	return nil
}
