package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort                = 8000
	defaultEnv                 = "development"
	defaultLogLevel            = "info"
	defaultProvider            = "ollama"
	defaultOllamaHost          = "http://localhost:11434"
	defaultOllamaModel         = "llama2"
	defaultMaxTokens           = 1024
	defaultTimeoutSeconds      = 120
	defaultAvailabilitySeconds = 10
	defaultDatabaseDriver      = "sqlite"
	defaultDatabasePath        = "./data/neuroflash.db"
	defaultUploadDir           = "./uploads"
	defaultMaxUploadMB         = 20
)

// Config stores runtime configuration. Values come from defaults, then the
// optional YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Port                int      `yaml:"port"`
	Env                 string   `yaml:"env"`
	LogLevel            string   `yaml:"log_level"`
	ModelProvider       string   `yaml:"model_provider"`
	OllamaHost          string   `yaml:"ollama_host"`
	OllamaModel         string   `yaml:"ollama_model"`
	OpenAIKey           string   `yaml:"openai_api_key"`
	OpenAIEndpoint      string   `yaml:"openai_api_endpoint"`
	MaxTokens           int      `yaml:"max_tokens"`
	TimeoutSeconds      int      `yaml:"timeout"`
	AvailabilitySeconds int      `yaml:"availability_timeout"`
	DatabaseDriver      string   `yaml:"database_driver"`
	DatabasePath        string   `yaml:"database_path"`
	DatabaseDSN         string   `yaml:"database_dsn"`
	UploadDir           string   `yaml:"upload_dir"`
	MaxUploadMB         int      `yaml:"max_upload_mb"`
	JWTSecret           string   `yaml:"jwt_secret"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// Load reads configuration, providing sensible defaults.
func Load() (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	cfg := Config{
		Port:                defaultPort,
		Env:                 defaultEnv,
		LogLevel:            defaultLogLevel,
		ModelProvider:       defaultProvider,
		OllamaHost:          defaultOllamaHost,
		OllamaModel:         defaultOllamaModel,
		MaxTokens:           defaultMaxTokens,
		TimeoutSeconds:      defaultTimeoutSeconds,
		AvailabilitySeconds: defaultAvailabilitySeconds,
		DatabaseDriver:      defaultDatabaseDriver,
		DatabasePath:        defaultDatabasePath,
		UploadDir:           defaultUploadDir,
		MaxUploadMB:         defaultMaxUploadMB,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ModelProvider = strings.ToLower(getEnv("MODEL_PROVIDER", c.ModelProvider))
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.OllamaModel = getEnv("OLLAMA_MODEL", c.OllamaModel)
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIEndpoint = getEnv("OPENAI_API_ENDPOINT", c.OpenAIEndpoint)
	c.DatabaseDriver = strings.ToLower(getEnv("DATABASE_DRIVER", c.DatabaseDriver))
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.DatabaseDSN = getEnv("DATABASE_DSN", c.DatabaseDSN)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	if raw := getEnv("ALLOWED_ORIGINS", ""); raw != "" {
		c.AllowedOrigins = splitList(raw)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Port},
		{"MAX_TOKENS", &c.MaxTokens},
		{"TIMEOUT", &c.TimeoutSeconds},
		{"AVAILABILITY_TIMEOUT", &c.AvailabilitySeconds},
		{"MAX_UPLOAD_MB", &c.MaxUploadMB},
	}
	for _, item := range ints {
		raw := getEnv(item.key, "")
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", item.key, err)
		}
		*item.dst = v
	}
	return nil
}

func (c *Config) validate() error {
	switch c.ModelProvider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported MODEL_PROVIDER %q (want ollama or openai)", c.ModelProvider)
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want sqlite or postgres)", c.DatabaseDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.MaxTokens <= 0 || c.TimeoutSeconds <= 0 || c.AvailabilitySeconds <= 0 || c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_TOKENS, TIMEOUT, AVAILABILITY_TIMEOUT and MAX_UPLOAD_MB must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// EnsureDirs creates the upload directory and, for sqlite, the database directory.
func (c Config) EnsureDirs() error {
	if err := os.MkdirAll(c.UploadDir, 0o755); err != nil {
		return fmt.Errorf("ensure upload dir %s: %w", c.UploadDir, err)
	}
	if c.DatabaseDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(c.DatabasePath), 0o755); err != nil {
			return fmt.Errorf("ensure database dir %s: %w", c.DatabasePath, err)
		}
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) IsDevelopment() bool {
	return c.Env != "production"
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) AvailabilityTimeout() time.Duration {
	return time.Duration(c.AvailabilitySeconds) * time.Second
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
