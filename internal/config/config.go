package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	WorkspaceRoot   string
	GitBinary       string
	GitCloneTimeout time.Duration
	GitCloneDepth   int
	GitProtocols    []string

	AIProvider    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	AIModel       string
	AIMaxTokens   int
	AITemperature float32

	GraderTimeout     time.Duration
	GraderMaxAttempts int
	GraderRetryDelay  time.Duration
	MaxConcurrent     int
	TotalMarks        int

	RedisURL    string
	CacheTTL    time.Duration
	DatabaseURL string
	NATSURL     string
	NATSSubject string

	JWTSecret       string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Grader")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("git.binary", "git")
	v.SetDefault("git.clone_timeout", "2m")
	v.SetDefault("git.clone_depth", 1)
	v.SetDefault("git.allowed_protocols", "https,ssh,git")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.max_tokens", 500)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("grader.timeout", "60s")
	v.SetDefault("grader.max_attempts", 1)
	v.SetDefault("grader.retry_delay", "2s")
	v.SetDefault("max_concurrent", 4)
	v.SetDefault("total_marks", 10)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("nats.subject", "grader.evaluations")
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	cloneTimeout, err := parseDuration(v, "git.clone_timeout", 2*time.Minute)
	if err != nil {
		return Config{}, err
	}
	graderTimeout, err := parseDuration(v, "grader.timeout", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	retryDelay, err := parseDuration(v, "grader.retry_delay", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "cache.ttl", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "rate_limit.window", time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		WorkspaceRoot:     v.GetString("workspace_root"),
		GitBinary:         v.GetString("git.binary"),
		GitCloneTimeout:   cloneTimeout,
		GitCloneDepth:     v.GetInt("git.clone_depth"),
		GitProtocols:      parseList(v.GetString("git.allowed_protocols")),
		AIProvider:        strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		OpenAIBaseURL:     v.GetString("openai_base_url"),
		GeminiAPIKey:      v.GetString("gemini_api_key"),
		AIModel:           v.GetString("ai.model"),
		AIMaxTokens:       v.GetInt("ai.max_tokens"),
		AITemperature:     float32(v.GetFloat64("ai.temperature")),
		GraderTimeout:     graderTimeout,
		GraderMaxAttempts: v.GetInt("grader.max_attempts"),
		GraderRetryDelay:  retryDelay,
		MaxConcurrent:     v.GetInt("max_concurrent"),
		TotalMarks:        v.GetInt("total_marks"),
		RedisURL:          v.GetString("redis.url"),
		CacheTTL:          cacheTTL,
		DatabaseURL:       v.GetString("database.url"),
		NATSURL:           v.GetString("nats.url"),
		NATSSubject:       v.GetString("nats.subject"),
		JWTSecret:         v.GetString("jwt.secret"),
		RateLimitMax:      v.GetInt("rate_limit.max"),
		RateLimitWindow:   rateWindow,
	}

	switch cfg.AIProvider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if len(cfg.GitProtocols) == 0 {
		return Config{}, fmt.Errorf("git.allowed_protocols must name at least one protocol")
	}

	if cfg.TotalMarks < 1 {
		return Config{}, fmt.Errorf("total marks must be positive, got %d", cfg.TotalMarks)
	}

	if cfg.GraderMaxAttempts <= 0 {
		cfg.GraderMaxAttempts = 1
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	if cfg.AIMaxTokens <= 0 {
		cfg.AIMaxTokens = 500
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return value, nil
}

// parseList splits a comma separated value into lower-cased, non-empty items.
func parseList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
