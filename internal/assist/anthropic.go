package assist

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// messagesAPI is the slice of the SDK used here, swapped out in tests.
type messagesAPI interface {
	New(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

// AnthropicConfig configures an AnthropicGenerator.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
	HTTPClient *http.Client
}

// AnthropicGenerator is a Generator backed by the Anthropic Messages API.
type AnthropicGenerator struct {
	msgs      messagesAPI
	model     anthropicsdk.Model
	maxTokens int
}

// NewAnthropicGenerator builds a generator. The API key is required.
func NewAnthropicGenerator(cfg AnthropicConfig) (*AnthropicGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	client := anthropicsdk.NewClient(opts...)

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropicsdk.ModelClaudeSonnet4_5_20250929)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicGenerator{
		msgs:      &client.Messages,
		model:     anthropicsdk.Model(model),
		maxTokens: maxTokens,
	}, nil
}

// Generate sends messages and returns the concatenated text of the reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	params, err := g.buildParams(messages, opts)
	if err != nil {
		return "", err
	}

	msg, err := g.msgs.New(ctx, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (g *AnthropicGenerator) buildParams(messages []Message, opts Options) (anthropicsdk.MessageNewParams, error) {
	if len(messages) == 0 {
		return anthropicsdk.MessageNewParams{}, errors.New("anthropic: no messages")
	}

	out := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropicsdk.NewTextBlock(m.Content)
		switch m.Role {
		case RoleAssistant:
			out = append(out, anthropicsdk.NewAssistantMessage(block))
		default:
			out = append(out, anthropicsdk.NewUserMessage(block))
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     g.model,
		MaxTokens: int64(maxTokens),
		Messages:  out,
	}
	if system := strings.TrimSpace(opts.System); system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*opts.Temperature)
	}
	return params, nil
}
