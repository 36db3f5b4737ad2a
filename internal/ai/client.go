package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxTokens   = 4096
	defaultTemperature = 0.3
	defaultInputChars  = 10000
)

var errEmptyCompletion = errors.New("model returned no content")

// Config captures the chat-completion endpoint settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
	InputChars  int // excerpt length sent to the model
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client calls an OpenAI-compatible chat-completion API. It never retries.
type Client struct {
	api chatCompleter
	cfg Config
}

// NewClient builds a client for cfg.BaseURL (".../v1").
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.InputChars <= 0 {
		cfg.InputChars = defaultInputChars
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{api: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Summarize returns a single dense paragraph describing text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	out, err := c.complete(ctx, summarySystemPrompt, summaryUserPrefix+Excerpt(text, c.cfg.InputChars))
	if err != nil {
		return "", &domain.AIError{Op: "summarize", Err: err}
	}
	return out, nil
}

// GenerateTags asks for six tags and returns the non-empty comma-separated
// segments, which may be fewer than six or none at all.
func (c *Client) GenerateTags(ctx context.Context, text string) ([]string, error) {
	out, err := c.complete(ctx, tagsSystemPrompt, tagsUserPrefix+Excerpt(text, c.cfg.InputChars))
	if err != nil {
		return nil, &domain.AIError{Op: "tags", Err: err}
	}
	return ParseTags(out), nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w (finish_reason=%q)", errEmptyCompletion, resp.Choices[0].FinishReason)
	}
	return content, nil
}

// ParseTags splits a comma-separated model answer, trimming each segment
// and dropping empty ones.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// Excerpt returns the first n characters (runes) of text.
func Excerpt(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
