// Package openai answers note assistant requests (summarize, brainstorm,
// beautify) through the OpenAI chat completions API. Any compatible server,
// such as a local gateway, works through WithBaseURL.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/dictanote/pkg/provider/llm"
)

// Provider is the "openai" entry of the llm provider registry.
type Provider struct {
	client oai.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	maxRetries   int
	httpClient   *http.Client
}

// Option configures a Provider. cmd/dictanote maps provider entry options
// onto these.
type Option func(*config)

// WithBaseURL points the provider at another OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization bills requests to an OpenAI organization.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout bounds each request when no HTTP client is given.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient sends requests through c, typically the instrumented
// client from observe.HTTPClient. It takes precedence over WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) {
		cfg.httpClient = c
	}
}

// WithMaxRetries sets how often the SDK retries transient failures. Negative
// values keep the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New returns a Provider for model. Both apiKey and model are required.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	switch {
	case cfg.httpClient != nil:
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	case cfg.timeout > 0:
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements llm.Provider. A reply cut off at the token limit is
// reported as [llm.ErrTruncated] so a partial rewrite never reaches a note.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return nil, fmt.Errorf("openai: %s: %w", p.model, llm.ErrTruncated)
	}

	return &llm.CompletionResponse{
		Content: choice.Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return modelCapabilities(p.model)
}

// modelFamilies maps model name prefixes to their limits. More specific
// prefixes come first.
var modelFamilies = []struct {
	prefix string
	caps   llm.ModelCapabilities
}{
	{"gpt-4.1", llm.ModelCapabilities{ContextWindow: 1_047_576, MaxOutputTokens: 32_768, SupportsVision: true}},
	{"gpt-4o", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384, SupportsVision: true}},
	{"gpt-4-turbo", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096, SupportsVision: true}},
	{"gpt-4", llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{"gpt-3.5-turbo", llm.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{"o1-mini", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 65_536}},
	{"o3-mini", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{"o1", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsVision: true}},
	{"o3", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsVision: true}},
	{"o4-mini", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000, SupportsVision: true}},
}

// unknownModel is assumed for self-hosted or unlisted models.
var unknownModel = llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}

func modelCapabilities(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	for _, f := range modelFamilies {
		if strings.HasPrefix(lower, f.prefix) {
			return f.caps
		}
	}
	return unknownModel
}

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "system":
		return oai.SystemMessage(m.Content), nil
	case "user":
		return oai.UserMessage(m.Content), nil
	case "assistant":
		return oai.AssistantMessage(m.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}
