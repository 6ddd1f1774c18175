package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultTemperature = 0.7
)

// Error codes reported by Generate.
const (
	CodeConnection = "connection_error"
	CodeNonSuccess = "non_success_response"
	CodeUnexpected = "unexpected_error"
)

// Client talks to a text-generation model server.
type Client interface {
	Model() string
	// CheckAvailability never fails; problems are reported through Availability.Reason.
	CheckAvailability(ctx context.Context) Availability
	Generate(ctx context.Context, req Request) (*Generation, error)
}

type Availability struct {
	Available bool
	Reason    string
}

// Request is a single non-streaming generation call. Nil fields take the client defaults.
type Request struct {
	Prompt      string
	MaxTokens   *int
	Temperature *float64
	System      *string
}

type Generation struct {
	Text           string
	Model          string
	ProcessingTime time.Duration
}

// Error is the failure payload of a generation call.
type Error struct {
	Code           string
	Message        string
	Details        string
	ProcessingTime time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}

func messageFor(code string) string {
	switch code {
	case CodeConnection:
		return "Connection error"
	case CodeNonSuccess:
		return "Failed to generate text"
	default:
		return "Unexpected error"
	}
}

// Config selects and tunes a provider.
type Config struct {
	Provider            string
	Host                string
	Model               string
	APIKey              string
	Endpoint            string
	MaxTokens           int
	Timeout             time.Duration
	AvailabilityTimeout time.Duration
}

// New builds the client for cfg.Provider.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return NewOllamaClient(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.AvailabilityTimeout <= 0 {
		cfg.AvailabilityTimeout = 10 * time.Second
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return cfg
}

func (r Request) temperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

func (r Request) maxTokens(fallback int) int {
	if r.MaxTokens == nil || *r.MaxTokens <= 0 {
		return fallback
	}
	return *r.MaxTokens
}

func (r Request) system() string {
	if r.System == nil {
		return ""
	}
	return *r.System
}
