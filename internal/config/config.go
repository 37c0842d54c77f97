package config

import "time"

// Duration accepts "35s" style strings or integer nanoseconds in JSON and YAML.
type Duration struct {
	Duration time.Duration
}

func D(d time.Duration) Duration { return Duration{Duration: d} }

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `json:"max_request_bytes" yaml:"max_request_bytes"`
	CORSOrigins       []string `json:"cors_origins" yaml:"cors_origins"`
	// SSEHeartbeat is the interval of comment frames on idle streams.
	SSEHeartbeat Duration `json:"sse_heartbeat" yaml:"sse_heartbeat"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer" yaml:"jwt_issuer"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver      string `json:"driver" yaml:"driver"`
	DSN         string `json:"dsn" yaml:"dsn"`
	AutoMigrate bool   `json:"auto_migrate" yaml:"auto_migrate"`
}

type RedisConfig struct {
	// Addr empty selects the in-process rate limiter.
	Addr        string   `json:"addr" yaml:"addr"`
	Password    string   `json:"password" yaml:"password"`
	DB          int      `json:"db" yaml:"db"`
	DialTimeout Duration `json:"dial_timeout" yaml:"dial_timeout"`
}

type ProviderConfig struct {
	Backend       string  `json:"backend" yaml:"backend"`
	Model         string  `json:"model" yaml:"model"`
	FallbackModel string  `json:"fallback_model" yaml:"fallback_model"`
	BaseURL       string  `json:"base_url" yaml:"base_url"`
	APIKey        string  `json:"api_key" yaml:"api_key"`
	SchemaMode    string  `json:"schema_mode" yaml:"schema_mode"`
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens"`
	// Referer and Title identify the app to OpenRouter.
	Referer string `json:"referer" yaml:"referer"`
	Title   string `json:"title" yaml:"title"`
}

type BudgetConfig struct {
	Total          Duration `json:"total" yaml:"total"`
	JSONAttemptCap Duration `json:"json_attempt_cap" yaml:"json_attempt_cap"`
	TextAttemptCap Duration `json:"text_attempt_cap" yaml:"text_attempt_cap"`
	Reserve        Duration `json:"reserve" yaml:"reserve"`
	MinTextBudget  Duration `json:"min_text_budget" yaml:"min_text_budget"`
}

type CacheConfig struct {
	TTL     Duration `json:"ttl" yaml:"ttl"`
	LRUSize int      `json:"lru_size" yaml:"lru_size"`
	LRUTTL  Duration `json:"lru_ttl" yaml:"lru_ttl"`
}

type RateLimitConfig struct {
	GenerateMax    int      `json:"generate_max" yaml:"generate_max"`
	GenerateWindow Duration `json:"generate_window" yaml:"generate_window"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Addr optionally serves /metrics on a separate listener.
	Addr string `json:"addr" yaml:"addr"`
}

type OtelConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

type Config struct {
	Env       string          `json:"env" yaml:"env"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Provider  ProviderConfig  `json:"provider" yaml:"provider"`
	Budget    BudgetConfig    `json:"budget" yaml:"budget"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Otel      OtelConfig      `json:"otel" yaml:"otel"`
}
