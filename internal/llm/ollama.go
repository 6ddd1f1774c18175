package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type ollamaGenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	System      string  `json:"system,omitempty"`
	Stream      bool    `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaClient calls the native Ollama HTTP API.
type OllamaClient struct {
	cfg        Config
	httpClient *http.Client
}

func NewOllamaClient(cfg Config) *OllamaClient {
	cfg = cfg.withDefaults()
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	return &OllamaClient{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

func (c *OllamaClient) Model() string {
	return c.cfg.Model
}

func (c *OllamaClient) CheckAvailability(ctx context.Context) Availability {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AvailabilityTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Host+"/api/tags", nil)
	if err != nil {
		return Availability{Reason: fmt.Sprintf("Unexpected error: %v", err)}
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Availability{Reason: fmt.Sprintf("Connection error: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Availability{Reason: fmt.Sprintf("Connection error: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return Availability{Reason: fmt.Sprintf("Failed to get models: %s", string(body))}
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return Availability{Reason: fmt.Sprintf("Unexpected error: decode model list: %v", err)}
	}
	for _, m := range tags.Models {
		if m.Name == c.cfg.Model {
			return Availability{Available: true}
		}
	}
	return Availability{Reason: missingModelReason(c.cfg.Model)}
}

func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Generation, error) {
	start := time.Now()
	fail := func(code, details string) (*Generation, error) {
		return nil, &Error{Code: code, Message: messageFor(code), Details: details, ProcessingTime: time.Since(start)}
	}

	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:       c.cfg.Model,
		Prompt:      req.Prompt,
		Temperature: req.temperature(),
		MaxTokens:   req.maxTokens(c.cfg.MaxTokens),
		System:      req.system(),
		Stream:      false,
	})
	if err != nil {
		return fail(CodeUnexpected, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return fail(CodeUnexpected, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(CodeConnection, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(CodeConnection, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(CodeNonSuccess, string(body))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fail(CodeUnexpected, fmt.Sprintf("decode response: %v", err))
	}

	return &Generation{
		Text:           out.Response,
		Model:          c.cfg.Model,
		ProcessingTime: time.Since(start),
	}, nil
}

func missingModelReason(model string) string {
	return fmt.Sprintf("Model '%s' not found in Ollama. Please run 'ollama pull %s'", model, model)
}
