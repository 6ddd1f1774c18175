package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient targets any OpenAI-compatible endpoint, including Ollama's /v1.
type OpenAIClient struct {
	cfg    Config
	client *openai.Client
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	cfg = cfg.withDefaults()

	key := cfg.APIKey
	if key == "" {
		// Ollama ignores the key but the client requires one.
		key = "ollama"
	}
	oc := openai.DefaultConfig(key)
	switch {
	case cfg.Endpoint != "":
		oc.BaseURL = cfg.Endpoint
	case cfg.Host != "":
		oc.BaseURL = cfg.Host + "/v1"
	}
	oc.HTTPClient = &http.Client{}

	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(oc),
	}
}

func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}

func (c *OpenAIClient) CheckAvailability(ctx context.Context) Availability {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AvailabilityTimeout)
	defer cancel()

	list, err := c.client.ListModels(ctx)
	if err != nil {
		switch classify(err) {
		case CodeConnection:
			return Availability{Reason: fmt.Sprintf("Connection error: %v", err)}
		case CodeNonSuccess:
			return Availability{Reason: fmt.Sprintf("Failed to get models: %v", err)}
		default:
			return Availability{Reason: fmt.Sprintf("Unexpected error: %v", err)}
		}
	}
	for _, m := range list.Models {
		if m.ID == c.cfg.Model {
			return Availability{Available: true}
		}
	}
	return Availability{Reason: missingModelReason(c.cfg.Model)}
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Generation, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := req.system(); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   req.maxTokens(c.cfg.MaxTokens),
		Temperature: float32(req.temperature()),
	})
	if err != nil {
		code := classify(err)
		return nil, &Error{
			Code:           code,
			Message:        messageFor(code),
			Details:        err.Error(),
			ProcessingTime: time.Since(start),
		}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{
			Code:           CodeUnexpected,
			Message:        messageFor(CodeUnexpected),
			Details:        "response contained no choices",
			ProcessingTime: time.Since(start),
		}
	}

	return &Generation{
		Text:           resp.Choices[0].Message.Content,
		Model:          c.cfg.Model,
		ProcessingTime: time.Since(start),
	}, nil
}

func classify(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return CodeNonSuccess
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return CodeNonSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return CodeConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeConnection
	}
	return CodeUnexpected
}
