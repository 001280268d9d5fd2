package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SITEBOOK_UPSTREAM_BASE_URL.
const EnvPrefix = "SITEBOOK"

type Config struct {
	Port        string
	UpstreamURL string
	Timeout     time.Duration
	JWTSecret   string
	TokenTTL    time.Duration
	DatabaseURL string
	CORSOrigins []string

	Log       LogConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig

	WhatsAppCountryCode string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig controls the query cache. Backend is "memory" or "redis".
type CacheConfig struct {
	Backend              string
	StaleTime            time.Duration
	GCTime               time.Duration
	StaleWhileRevalidate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RetryConfig struct {
	Max       int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

type RateLimitConfig struct {
	RPS   int
	Burst int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("upstream.base_url", "http://localhost:8000/api")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("jwt_secret", "dev-secret-change-in-production")
	v.SetDefault("token_ttl", "12h")
	v.SetDefault("database_url", "")
	v.SetDefault("cors_origins", "http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.stale_time", "30s")
	v.SetDefault("cache.gc_time", "5m")
	v.SetDefault("cache.stale_while_revalidate", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("retry.max", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("whatsapp.country_code", "91")
}

// Load reads configuration from the environment and, when SITEBOOK_CONFIG
// points at a YAML file, from that file. Environment values win.
func Load() (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// NewViper returns a viper instance with defaults, environment binding and
// the optional config file applied. Commands bind their flags onto it
// before calling FromViper.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("port"),
		UpstreamURL: strings.TrimRight(v.GetString("upstream.base_url"), "/"),
		Timeout:     v.GetDuration("upstream.timeout"),
		JWTSecret:   v.GetString("jwt_secret"),
		TokenTTL:    v.GetDuration("token_ttl"),
		DatabaseURL: v.GetString("database_url"),
		CORSOrigins: splitList(v.GetString("cors_origins")),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Cache: CacheConfig{
			Backend:              strings.ToLower(v.GetString("cache.backend")),
			StaleTime:            v.GetDuration("cache.stale_time"),
			GCTime:               v.GetDuration("cache.gc_time"),
			StaleWhileRevalidate: v.GetBool("cache.stale_while_revalidate"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Retry: RetryConfig{
			Max:       v.GetInt("retry.max"),
			BaseDelay: v.GetDuration("retry.base_delay"),
			MaxDelay:  v.GetDuration("retry.max_delay"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetInt("rate_limit.rps"),
			Burst: v.GetInt("rate_limit.burst"),
		},
		WhatsAppCountryCode: v.GetString("whatsapp.country_code"),
	}

	if cfg.UpstreamURL == "" {
		return nil, fmt.Errorf("upstream.base_url is required")
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown cache.backend %q (valid: memory, redis)", cfg.Cache.Backend)
	}
	if cfg.Retry.Max < 0 {
		return nil, fmt.Errorf("retry.max must be >= 0")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
