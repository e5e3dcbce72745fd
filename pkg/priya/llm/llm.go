// Package llm is the chat-completion client used by the priya pipeline.
// It speaks the OpenAI-compatible chat completions protocol (OpenRouter by
// default) and walks a failover.Pool of API keys for every request.
//
// Complete never returns an error: when every key fails it returns the
// configured fallback reply so the pipeline always has text to deliver.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/priyabot/priya/pkg/priya/failover"
)

// Role tags a message in the conversation sent to the model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a completion request. ImageURL, when
// set, turns the message into a multi-part text + image message.
type Message struct {
	Role     Role
	Content  string
	ImageURL string
}

// Config holds completion provider settings.
type Config struct {
	// BaseURL is the OpenAI-compatible API root (default OpenRouter).
	BaseURL string `yaml:"base_url"`

	// Model is the fixed model identifier.
	Model string `yaml:"model"`

	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the output length.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds each attempt against one key.
	Timeout time.Duration `yaml:"timeout"`

	// FallbackReply is returned when every key failed.
	FallbackReply string `yaml:"fallback_reply"`

	// VisionPrompt is the instruction sent with image descriptions.
	VisionPrompt string `yaml:"vision_prompt"`

	// Keys is the credential pool, in failover order.
	Keys []string `yaml:"keys"`
}

// DefaultConfig returns the OpenRouter defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://openrouter.ai/api/v1",
		Model:         "openai/gpt-4o-mini",
		Temperature:   0.7,
		MaxTokens:     1000,
		Timeout:       60 * time.Second,
		FallbackReply: "🥺 Bestie free AI limits khatam ho gaye… thoda baad try karo 💔",
		VisionPrompt:  "Describe this image clearly and in detail.",
	}
}

// Client turns message lists into reply text.
type Client struct {
	cfg        Config
	pool       *failover.Pool
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a completion client. The pool's per-attempt timeout is taken
// from cfg.Timeout.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = def.FallbackReply
	}
	if cfg.VisionPrompt == "" {
		cfg.VisionPrompt = def.VisionPrompt
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger = logger.With("component", "llm")
	return &Client{
		cfg:        cfg,
		pool:       failover.NewPool("completion", cfg.Keys, failover.WithTimeout(cfg.Timeout), failover.WithLogger(logger)),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// KeyCount returns the number of usable API keys.
func (c *Client) KeyCount() int { return c.pool.Len() }

// Complete sends the messages and returns the model's reply, or the
// fallback reply when the pool is exhausted.
func (c *Client) Complete(ctx context.Context, messages []Message) string {
	reply, err := c.complete(ctx, messages)
	if err != nil {
		c.logger.Error("completion exhausted, using fallback reply", "error", err)
		return c.cfg.FallbackReply
	}
	return reply
}

// DescribeImage asks the model for a description of an image.
func (c *Client) DescribeImage(ctx context.Context, image []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return c.Complete(ctx, []Message{{
		Role:     RoleUser,
		Content:  c.cfg.VisionPrompt,
		ImageURL: dataURL,
	}})
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(c.buildRequest(messages))
	if err != nil {
		return "", fmt.Errorf("llm: marshaling request: %w", err)
	}

	return failover.Call(ctx, c.pool, func(ctx context.Context, key string) (string, error) {
		return c.completeOnce(ctx, key, body)
	})
}

// completeOnce performs a single request with one API key.
func (c *Client) completeOnce(ctx context.Context, key string, body []byte) (string, error) {
	endpoint := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	respBody, err := failover.ReadBody("completion", resp, 0)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("llm: parsing response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("llm: API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices: %w", failover.ErrEmptyResponse)
	}

	choice := chatResp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm: empty content: %w", failover.ErrEmptyResponse)
	}

	c.logger.Info("chat completion done",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"finish_reason", choice.FinishReason,
	)
	return content, nil
}

func (c *Client) buildRequest(messages []Message) chatRequest {
	wire := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if m.ImageURL == "" {
			wire = append(wire, chatMessage{Role: string(m.Role), Content: m.Content})
			continue
		}
		wire = append(wire, chatMessage{
			Role: string(m.Role),
			Content: []contentPart{
				{Type: "text", Text: m.Content},
				{Type: "image_url", ImageURL: &imageURL{URL: m.ImageURL}},
			},
		})
	}
	return chatRequest{
		Model:       c.cfg.Model,
		Messages:    wire,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
}

// ---------- Wire types ----------

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is a string or a []contentPart.
	Content any `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
