package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfig_DefaultsWithoutCredentials(t *testing.T) {
	unsetEnv(t, "GEMINI_API_KEY", "GOOGLE_API_KEY", "HISTORY_BACKEND", "LLM_PROVIDER", "GEMINI_MODEL",
		"BUDDY_MODEL_TIMEOUT", "BUDDY_CONTEXT_TURNS", "BUDDY_MAX_MESSAGE_CHARS")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected unconfigured model to be valid, got %v", err)
	}
	if cfg.ModelAPIKey() != "" {
		t.Fatalf("expected empty api key, got %q", cfg.ModelAPIKey())
	}
	if cfg.BuddyModelTimeout != 15*time.Second {
		t.Fatalf("expected 15s model timeout, got %v", cfg.BuddyModelTimeout)
	}
	if cfg.BuddyContextTurns != 10 || cfg.BuddyMaxMessageChar != 4000 {
		t.Fatalf("unexpected buddy defaults: %+v", cfg)
	}
	if cfg.ModelName() != "gemini-1.5-flash" {
		t.Fatalf("unexpected default model %q", cfg.ModelName())
	}
}

func TestConfig_ModelAPIKeyFallsBackToGoogleKey(t *testing.T) {
	cfg := Config{LLMProvider: ProviderGemini, GoogleAPIKey: " g-key "}
	if cfg.ModelAPIKey() != "g-key" {
		t.Fatalf("expected google key fallback, got %q", cfg.ModelAPIKey())
	}
	cfg.GeminiAPIKey = "gem-key"
	if cfg.ModelAPIKey() != "gem-key" {
		t.Fatalf("expected gemini key priority, got %q", cfg.ModelAPIKey())
	}

	openai := Config{LLMProvider: ProviderOpenAI, LLMAPIKey: "sk", GeminiAPIKey: "gem-key", LLMModel: "gpt"}
	if openai.ModelAPIKey() != "sk" || openai.ModelName() != "gpt" {
		t.Fatalf("expected openai credentials, got key=%q model=%q", openai.ModelAPIKey(), openai.ModelName())
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"memory ok", Config{LLMProvider: ProviderGemini, HistoryBackend: HistoryMemory}, nil},
		{"unknown provider", Config{LLMProvider: "bard", HistoryBackend: HistoryMemory}, ErrUnknownProvider},
		{"redis without addr", Config{LLMProvider: ProviderGemini, HistoryBackend: HistoryRedis}, ErrRedisAddrRequired},
		{"postgres without url", Config{LLMProvider: ProviderOpenAI, HistoryBackend: HistoryPostgres}, ErrDatabaseURLRequired},
		{"unknown backend", Config{LLMProvider: ProviderGemini, HistoryBackend: "sqlite"}, ErrUnknownHistoryBackend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestConfig_DemoSessionsNeverInProduction(t *testing.T) {
	cfg := Config{DemoSessions: true, AppEnv: "production"}
	if cfg.DemoSessionsEnabled() {
		t.Fatalf("expected demo sessions disabled in production")
	}
	cfg.AppEnv = "development"
	if !cfg.DemoSessionsEnabled() {
		t.Fatalf("expected demo sessions enabled in development")
	}
}
