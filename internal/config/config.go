// Package config loads the configuration for the pokedex binaries.
//
// Sources, highest priority first:
//  1. explicit path (--config);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only (cleanenv).
//
// Environment variables always overlay the file.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Sternrassler/pokedex-client/pkg/client"
	"github.com/Sternrassler/pokedex-client/pkg/logging"
	"github.com/Sternrassler/pokedex-client/pkg/pagination"
	"github.com/Sternrassler/pokedex-client/pkg/ratelimit"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/redis/go-redis/v9"
)

// Config is the full configuration shared by the CLI and the BFF.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local" validate:"required"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Redis    RedisConfig    `yaml:"redis"`
	Pager    PagerConfig    `yaml:"pager"`
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info" validate:"oneof=debug info warn warning error"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY" env-default:"false"`
}

// HTTPConfig is the BFF listener.
type HTTPConfig struct {
	Host            string        `yaml:"host"             env:"HTTP_HOST"             env-default:"0.0.0.0"`
	Port            string        `yaml:"port"             env:"HTTP_PORT"             env-default:"8080" validate:"required,numeric"`
	PublicURL       string        `yaml:"public_url"       env:"HTTP_PUBLIC_URL"       validate:"omitempty,url"`
	CORSOrigins     []string      `yaml:"cors_origins"     env:"CORS_ORIGINS"          env-separator:"," env-default:"*"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"HTTP_REQUEST_TIMEOUT"  env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr is the listen address in host:port form.
func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// UpstreamConfig is the PokeAPI transport.
//
// cleanenv cannot tell an explicit zero from a missing key, so switches
// default to their zero value and the limiter is turned off with
// RateLimitDisabled rather than a zero rate.
type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url"            env:"POKEAPI_BASE_URL"    env-default:"https://pokeapi.co/api/v2" validate:"required,url"`
	UserAgent         string        `yaml:"user_agent"          env:"USER_AGENT"          env-default:"pokedex-client/0.1.0" validate:"required"`
	Timeout           time.Duration `yaml:"timeout"             env:"UPSTREAM_TIMEOUT"    env-default:"30s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"      env-default:"10" validate:"gt=0"`
	Burst             int           `yaml:"burst"               env:"RATE_LIMIT_BURST"    env-default:"5" validate:"gte=1"`
	RateLimitDisabled bool          `yaml:"rate_limit_disabled" env:"RATE_LIMIT_DISABLED" env-default:"false"`
	CacheTTL          time.Duration `yaml:"cache_ttl"           env:"CACHE_TTL"           env-default:"10m"`
}

// RedisConfig enables the response cache, the shared cooldown and position storage.
// An empty Addr disables Redis.
type RedisConfig struct {
	Addr        string        `yaml:"addr"         env:"REDIS_ADDR"`
	Password    string        `yaml:"password"     env:"REDIS_PASSWORD"`
	DB          int           `yaml:"db"           env:"REDIS_DB"     env-default:"0" validate:"gte=0,lte=15"`
	PositionTTL time.Duration `yaml:"position_ttl" env:"POSITION_TTL" env-default:"720h"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// PagerConfig is the list engine. Items are deduplicated by ID unless
// AllowDuplicates is set.
type PagerConfig struct {
	PageSize        int  `yaml:"page_size"        env:"PAGE_SIZE"              env-default:"20" validate:"gte=1,lte=100"`
	AllowDuplicates bool `yaml:"allow_duplicates" env:"PAGER_ALLOW_DUPLICATES" env-default:"false"`
	Threshold       int  `yaml:"threshold"        env:"LOAD_MORE_THRESHOLD"    env-default:"5" validate:"gte=1"`
}

// MustLoad panics on load failure.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

// Load resolves the config source, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		return validated(&cfg)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) environment only
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	return validated(&cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Logging returns the logger configuration.
func (c *Config) Logging(service string) logging.Config {
	lc := logging.DefaultConfig()
	lc.Service = service
	lc.Level = logging.LogLevel(c.Log.Level)
	lc.Pretty = c.Log.Pretty
	return lc
}

// Client returns the transport configuration. redisClient may be nil.
func (c *Config) Client(redisClient *redis.Client) client.Config {
	cc := client.DefaultConfig(redisClient, c.Upstream.UserAgent)
	cc.BaseURL = c.Upstream.BaseURL
	cc.Timeout = c.Upstream.Timeout
	cc.CacheTTL = c.Upstream.CacheTTL
	cc.RateLimit = ratelimit.Config{
		RequestsPerSecond: c.Upstream.RequestsPerSecond,
		Burst:             c.Upstream.Burst,
	}
	if c.Upstream.RateLimitDisabled {
		cc.RateLimit.RequestsPerSecond = 0
	}
	return cc
}

// Pagination returns the pager configuration.
func (c *Config) Pagination() pagination.Config {
	pc := pagination.DefaultConfig()
	pc.PageSize = c.Pager.PageSize
	pc.DedupeByID = !c.Pager.AllowDuplicates
	return pc
}

// RedisOptions returns the go-redis options, nil when Redis is disabled.
func (c *Config) RedisOptions() *redis.Options {
	if !c.Redis.Enabled() {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}
