package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/travelplanner-backend/internal/platform/envutil"
)

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n), nil
	}
	return time.ParseDuration(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		dd, err := time.ParseDuration(strings.TrimSpace(u))
		if err != nil && strings.TrimSpace(u) != "" {
			return err
		}
		d.Duration = dd
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	dd, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: duration must be like \"5s\" or an int nanoseconds: %w", node.Line, err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: D(5 * time.Second),
			IdleTimeout:       D(2 * time.Minute),
			ShutdownTimeout:   D(15 * time.Second),
			MaxRequestBytes:   64 << 10,
			SSEHeartbeat:      D(15 * time.Second),
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "file:planner.db?cache=shared",
			AutoMigrate: true,
		},
		Redis: RedisConfig{DialTimeout: D(5 * time.Second)},
		Provider: ProviderConfig{
			Backend:     "openai",
			Temperature: 0.4,
			MaxTokens:   2200,
		},
		Budget: BudgetConfig{
			Total:          D(95 * time.Second),
			JSONAttemptCap: D(35 * time.Second),
			TextAttemptCap: D(25 * time.Second),
			Reserve:        D(3 * time.Second),
			MinTextBudget:  D(20 * time.Second),
		},
		Cache: CacheConfig{
			TTL:     D(7 * 24 * time.Hour),
			LRUSize: 512,
			LRUTTL:  D(10 * time.Minute),
		},
		RateLimit: RateLimitConfig{
			GenerateMax:    6,
			GenerateWindow: D(60 * time.Second),
		},
		Metrics: MetricsConfig{Enabled: true},
		Otel:    OtelConfig{ServiceName: "travelplanner"},
	}
}

// Load resolves configuration: defaults, then the YAML file, then .env,
// then environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("PLANNER_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", envutil.String("PLANNER_ENV", cfg.Env))
	cfg.HTTP.Addr = envutil.String("PLANNER_HTTP_ADDR", cfg.HTTP.Addr)
	if origins := envutil.List("CORS_ORIGINS"); len(origins) > 0 {
		cfg.HTTP.CORSOrigins = origins
	}

	cfg.Auth.JWTSecret = envutil.String("PLANNER_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = envutil.String("PLANNER_JWT_ISSUER", cfg.Auth.JWTIssuer)

	cfg.Database.Driver = envutil.String("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envutil.String("DATABASE_URL", cfg.Database.DSN)
	cfg.Database.AutoMigrate = envutil.Bool("DATABASE_AUTO_MIGRATE", cfg.Database.AutoMigrate)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Provider.Backend = strings.ToLower(envutil.String("PLANNER_BACKEND", cfg.Provider.Backend))
	cfg.Provider.Model = envutil.String("PLANNER_MODEL", cfg.Provider.Model)
	cfg.Provider.FallbackModel = envutil.String("PLANNER_FALLBACK_MODEL", cfg.Provider.FallbackModel)
	cfg.Provider.BaseURL = envutil.String("PLANNER_BASE_URL", cfg.Provider.BaseURL)
	cfg.Provider.Temperature = envutil.Float("PLANNER_TEMPERATURE", cfg.Provider.Temperature)
	cfg.Provider.MaxTokens = envutil.Int("PLANNER_MAX_TOKENS", cfg.Provider.MaxTokens)
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = envutil.String(apiKeyVar(cfg.Provider.Backend), "")
	}

	cfg.RateLimit.GenerateMax = envutil.Int("PLANNER_RATE_LIMIT_MAX", cfg.RateLimit.GenerateMax)
	cfg.RateLimit.GenerateWindow = D(envutil.Seconds("PLANNER_RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimit.GenerateWindow.Duration))

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
}

// apiKeyVar names the environment variable holding the key for backend.
func apiKeyVar(backend string) string {
	switch backend {
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "local":
		return "LOCAL_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func (cfg *Config) validate() error {
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 64 << 10
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	switch cfg.Provider.Backend {
	case "openai", "openrouter", "local", "anthropic", "gemini", "mock", "disabled":
	default:
		return fmt.Errorf("provider.backend %q is not supported", cfg.Provider.Backend)
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required (PLANNER_JWT_SECRET)")
	}
	b := cfg.Budget
	if b.Total.Duration <= 0 || b.JSONAttemptCap.Duration <= 0 || b.TextAttemptCap.Duration <= 0 {
		return errors.New("budget durations must be positive")
	}
	if b.Reserve.Duration < 0 || b.Reserve.Duration >= b.Total.Duration {
		return fmt.Errorf("budget.reserve %s must be below budget.total %s", b.Reserve.Duration, b.Total.Duration)
	}
	if cfg.RateLimit.GenerateMax < 0 || cfg.RateLimit.GenerateWindow.Duration < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if cfg.Cache.TTL.Duration <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	return nil
}
