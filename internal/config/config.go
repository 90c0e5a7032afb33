package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice gateway.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	VoiceLiveEndpoint string
	VoiceLiveAPIKey   string
	VoiceLiveModel    string

	SearchEndpoint  string
	SearchAPIKey    string
	SearchIndexName string

	OpenAIEndpoint      string
	OpenAIAPIKey        string
	EmbeddingDeployment string
	EmbeddingDimensions int

	DatabaseURL string

	SystemInstructionPath string

	ContextRefreshInterval time.Duration
	ToolDispatchTimeout    time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "sara"),
		AllowAnyOrigin:        false,
		VoiceLiveEndpoint:     trimmedEnv("AZURE_VOICELIVE_ENDPOINT"),
		VoiceLiveAPIKey:       trimmedEnv("AZURE_VOICELIVE_API_KEY"),
		VoiceLiveModel:        envOrDefault("AZURE_VOICELIVE_MODEL", "gpt-4o-realtime"),
		SearchEndpoint:        trimmedEnv("AZURE_SEARCH_ENDPOINT"),
		SearchAPIKey:          trimmedEnv("AZURE_SEARCH_API_KEY"),
		SearchIndexName:       envOrDefault("AZURE_SEARCH_INDEX_NAME", "ezdan-properties"),
		OpenAIEndpoint:        trimmedEnv("AZURE_OPENAI_ENDPOINT"),
		OpenAIAPIKey:          trimmedEnv("AZURE_OPENAI_API_KEY"),
		EmbeddingDeployment:   envOrDefault("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-3-large"),
		EmbeddingDimensions:   3072,
		DatabaseURL:           trimmedEnv("DATABASE_URL"),
		SystemInstructionPath: envOrDefault("SYSTEM_INSTRUCTION_PATH", "system_instruction.md"),
		ShutdownTimeout:       15 * time.Second,
		// The Doha date context is cheap to recompute; five minutes keeps
		// instruction text fresh across midnight without any call noticing.
		ContextRefreshInterval: 5 * time.Minute,
		ToolDispatchTimeout:    20 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextRefreshInterval, err = durationFromEnv("APP_CONTEXT_REFRESH_INTERVAL", cfg.ContextRefreshInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ToolDispatchTimeout, err = durationFromEnv("APP_TOOL_DISPATCH_TIMEOUT", cfg.ToolDispatchTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDimensions, err = intFromEnv("AZURE_OPENAI_EMBEDDING_DIMENSIONS", cfg.EmbeddingDimensions)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.VoiceLiveEndpoint == "" {
		return Config{}, fmt.Errorf("AZURE_VOICELIVE_ENDPOINT is required")
	}
	if cfg.VoiceLiveAPIKey == "" {
		return Config{}, fmt.Errorf("AZURE_VOICELIVE_API_KEY is required")
	}
	if cfg.ContextRefreshInterval < time.Minute {
		return Config{}, fmt.Errorf("APP_CONTEXT_REFRESH_INTERVAL must be at least 1m")
	}
	if cfg.EmbeddingDimensions <= 0 {
		return Config{}, fmt.Errorf("AZURE_OPENAI_EMBEDDING_DIMENSIONS must be positive")
	}
	if cfg.ToolDispatchTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_TOOL_DISPATCH_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
