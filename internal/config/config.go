package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values shared by the API and worker binaries.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	RedisURL       string
	QueueNamespace string

	NATSURL   string
	JWTSecret string

	AIProvider   string
	OllamaURL    string
	OllamaModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	ModelTimeout time.Duration

	WorkerConcurrency int
	MaxAttempts       int
	RetryDelay        time.Duration
	PollInterval      time.Duration
	LeaseTimeout      time.Duration
	JanitorInterval   time.Duration
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
	v.SetEnvPrefix("COPILOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Canvas Copilot Backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8000")
	v.SetDefault("queue.namespace", "copilot:grading")
	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("model.timeout", "120s")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.retry_delay", "60s")
	v.SetDefault("worker.poll_interval", "500ms")
	v.SetDefault("worker.lease_timeout", "10m")
	v.SetDefault("worker.janitor_interval", "15s")

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		RedisURL:          v.GetString("redis.url"),
		QueueNamespace:    v.GetString("queue.namespace"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		OllamaURL:         v.GetString("ollama.url"),
		OllamaModel:       v.GetString("ollama.model"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		OpenAIModel:       v.GetString("openai.model"),
		WorkerConcurrency: v.GetInt("worker.concurrency"),
		MaxAttempts:       v.GetInt("worker.max_attempts"),
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"model.timeout", &cfg.ModelTimeout},
		{"worker.retry_delay", &cfg.RetryDelay},
		{"worker.poll_interval", &cfg.PollInterval},
		{"worker.lease_timeout", &cfg.LeaseTimeout},
		{"worker.janitor_interval", &cfg.JanitorInterval},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = parsed
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis url must be provided")
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return cfg, nil
}
