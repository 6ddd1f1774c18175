package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"CONFIG_FILE", "PORT", "ENV", "LOG_LEVEL", "MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL",
	"OPENAI_API_KEY", "OPENAI_API_ENDPOINT", "MAX_TOKENS", "TIMEOUT", "AVAILABILITY_TIMEOUT",
	"DATABASE_DRIVER", "DATABASE_PATH", "DATABASE_DSN", "UPLOAD_DIR", "MAX_UPLOAD_MB",
	"JWT_SECRET", "ALLOWED_ORIGINS",
}

// clearEnv blanks every key so values from the host environment do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OllamaHost != "http://localhost:11434" || cfg.OllamaModel != "llama2" {
		t.Fatalf("unexpected model defaults: %+v", cfg)
	}
	if cfg.MaxTokens != 1024 || cfg.Timeout() != 120*time.Second || cfg.AvailabilityTimeout() != 10*time.Second {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.ModelProvider != "ollama" || cfg.DatabaseDriver != "sqlite" {
		t.Fatalf("unexpected drivers: %+v", cfg)
	}
	if cfg.Addr() != ":8000" {
		t.Fatalf("unexpected addr %s", cfg.Addr())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("TIMEOUT", "30")
	t.Setenv("MODEL_PROVIDER", "OpenAI")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.OllamaModel != "mistral" || cfg.Timeout() != 30*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ModelProvider != "openai" {
		t.Fatalf("provider should be normalized, got %q", cfg.ModelProvider)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	body := strings.Join([]string{
		"port: 7000",
		"ollama_model: phi3",
		"max_tokens: 512",
		"allowed_origins:",
		"  - http://yaml.test",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_TOKENS", "2048")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7000 || cfg.OllamaModel != "phi3" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.MaxTokens != 2048 {
		t.Fatalf("environment should win over yaml, got %d", cfg.MaxTokens)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://yaml.test" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"provider":       {"MODEL_PROVIDER": "bard"},
		"driver":         {"DATABASE_DRIVER": "mysql"},
		"postgres dsn":   {"DATABASE_DRIVER": "postgres"},
		"port":           {"PORT": "eighty"},
		"timeout":        {"TIMEOUT": "-5"},
		"missing secret": {"JWT_SECRET": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
