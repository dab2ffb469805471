package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const providerOpenAI = "openai-compatible"

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// GenerationError wraps a failed call to a text-generation provider.
type GenerationError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatClient is shared by the generator and the summarizer.
type chatClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func newChatClient(cfg OpenAIConfig) (*chatClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &chatClient{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *chatClient) complete(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Provider: providerOpenAI, Err: fmt.Errorf("request chat completion: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Provider: providerOpenAI, Err: fmt.Errorf("read chat response body: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return "", &GenerationError{
			Provider:   providerOpenAI,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("chat completion failed body=%s", truncate(string(rawRespBody), 512)),
		}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", &GenerationError{Provider: providerOpenAI, Err: fmt.Errorf("decode chat completion response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &GenerationError{Provider: providerOpenAI, Err: errors.New("empty chat completion choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

// OpenAIGenerator asks an OpenAI-compatible chat completions endpoint for SQL.
type OpenAIGenerator struct {
	chat *chatClient
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	chat, err := newChatClient(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIGenerator{chat: chat}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Generation, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Generation{}, fmt.Errorf("question is required")
	}
	text, err := g.chat.complete(ctx, buildMessages(req), 0)
	if err != nil {
		return Generation{}, err
	}
	sql := ExtractSQL(text)
	if sql == "" {
		return Generation{}, ErrNoSQL
	}
	return Generation{
		Text:        text,
		SQL:         sql,
		Explanation: fmt.Sprintf("SQL generated for: %q", strings.TrimSpace(req.Question)),
		Provider:    providerOpenAI,
		Model:       g.chat.model,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
