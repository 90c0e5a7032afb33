package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AZURE_VOICELIVE_ENDPOINT", "wss://example.cognitiveservices.azure.com")
	t.Setenv("AZURE_VOICELIVE_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.VoiceLiveModel != "gpt-4o-realtime" {
		t.Fatalf("VoiceLiveModel = %q, want default model", cfg.VoiceLiveModel)
	}
	if cfg.SearchIndexName != "ezdan-properties" {
		t.Fatalf("SearchIndexName = %q, want default index", cfg.SearchIndexName)
	}
	if cfg.EmbeddingDimensions != 3072 {
		t.Fatalf("EmbeddingDimensions = %d, want 3072", cfg.EmbeddingDimensions)
	}
	if cfg.ContextRefreshInterval != 5*time.Minute {
		t.Fatalf("ContextRefreshInterval = %v, want 5m", cfg.ContextRefreshInterval)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = true, want false default")
	}
}

func TestLoadRequiresVoiceLiveCredentials(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AZURE_VOICELIVE_ENDPOINT", "wss://example.cognitiveservices.azure.com")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() = nil error, want missing api key error")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AZURE_VOICELIVE_ENDPOINT", "wss://example.cognitiveservices.azure.com")
	t.Setenv("AZURE_VOICELIVE_API_KEY", "test-key")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() = nil error, want duration parse error")
	}
}

func TestLoadRejectsTooFrequentRefresh(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AZURE_VOICELIVE_ENDPOINT", "wss://example.cognitiveservices.azure.com")
	t.Setenv("AZURE_VOICELIVE_API_KEY", "test-key")
	t.Setenv("APP_CONTEXT_REFRESH_INTERVAL", "5s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() = nil error, want refresh interval error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_CONTEXT_REFRESH_INTERVAL",
		"APP_TOOL_DISPATCH_TIMEOUT",
		"AZURE_VOICELIVE_ENDPOINT",
		"AZURE_VOICELIVE_API_KEY",
		"AZURE_VOICELIVE_MODEL",
		"AZURE_SEARCH_ENDPOINT",
		"AZURE_SEARCH_API_KEY",
		"AZURE_SEARCH_INDEX_NAME",
		"AZURE_OPENAI_ENDPOINT",
		"AZURE_OPENAI_API_KEY",
		"AZURE_OPENAI_EMBEDDING_DEPLOYMENT",
		"AZURE_OPENAI_EMBEDDING_DIMENSIONS",
		"DATABASE_URL",
		"SYSTEM_INSTRUCTION_PATH",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
