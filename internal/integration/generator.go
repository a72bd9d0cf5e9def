package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1/"

// SystemPrompt frames every generation request.
const SystemPrompt = "You are a professional AI assistant working in an automated file triage system. " +
	"You receive documents dropped into an inbox and write a complete, well-structured response to each request. " +
	"Be accurate, clear and concise. Use markdown formatting where it helps readability."

// GenerateOptions are the per-request model parameters.
type GenerateOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Generator produces response text for a classified document.
type Generator interface {
	Generate(ctx context.Context, content string, label models.Classification, opts GenerateOptions) (string, error)
}

// ErrEmptyCompletion is returned when the service answers without text.
var ErrEmptyCompletion = errors.New("completion contained no text")

// GroqConfig configures the OpenAI-compatible chat completion client.
type GroqConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type chatGenerator struct {
	client openai.Client
}

// NewGroqGenerator creates a Generator that calls an OpenAI-compatible chat
// completions endpoint, Groq by default.
func NewGroqGenerator(cfg GroqConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("creating generator: api key is empty")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &chatGenerator{client: openai.NewClient(opts...)}, nil
}

// UserPrompt builds the user message for a document.
func UserPrompt(content string, label models.Classification) string {
	return fmt.Sprintf("Task Type: %s\n\nUser Request:\n%s\n\nPlease provide a comprehensive response to this request.", label, content)
}

func (g *chatGenerator) Generate(ctx context.Context, content string, label models.Classification, opts GenerateOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(UserPrompt(content, label)),
		},
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion: status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
