package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ReplyForge services.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Completion CompletionConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type LogConfig struct {
	Format string // json, console
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type CompletionConfig struct {
	Provider  string
	Timeout   time.Duration
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Project string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type WorkerConfig struct {
	PollInterval    time.Duration
	FinalizeRetries int
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or
// invalid; callers exit before starting any loop or listener.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("REPLYFORGE_PORT", 8080),
			Env:  envString("REPLYFORGE_ENV", "development"),
		},
		Log: LogConfig{
			Format: envString("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Completion: CompletionConfig{
			Provider: os.Getenv("COMPLETION_PROVIDER"),
			Timeout:  envDurationSecs("COMPLETION_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Project: os.Getenv("OPENAI_PROJECT"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		Worker: WorkerConfig{
			PollInterval:    envDurationMillis("WORKER_POLL_INTERVAL_MS", 200*time.Millisecond),
			FinalizeRetries: envInt("WORKER_FINALIZE_RETRIES", 3),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Completion.Provider == "" {
		return fmt.Errorf("COMPLETION_PROVIDER is required")
	}
	if !validProviders[c.Completion.Provider] {
		return fmt.Errorf("COMPLETION_PROVIDER must be one of openai, anthropic; got %q", c.Completion.Provider)
	}

	if c.Completion.Provider == "openai" {
		if c.Completion.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when COMPLETION_PROVIDER is openai")
		}
		if c.Completion.OpenAI.Project == "" {
			return fmt.Errorf("OPENAI_PROJECT is required when COMPLETION_PROVIDER is openai")
		}
	}
	if c.Completion.Provider == "anthropic" && c.Completion.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when COMPLETION_PROVIDER is anthropic")
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL_MS must be positive")
	}
	if c.Worker.FinalizeRetries < 1 {
		return fmt.Errorf("WORKER_FINALIZE_RETRIES must be at least 1")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envDurationMillis(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}
