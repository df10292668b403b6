package nlp

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundprediction/conceptgraph/pkg/types"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// GeminiClient implements the Client interface for Google Gemini models.
type GeminiClient struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiClient creates a new Gemini client backed by the Gemini API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: cfg,
	}, nil
}

// Chat sends a chat request to Gemini.
func (c *GeminiClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return c.generate(ctx, messages, false)
}

// ChatWithStructuredOutput requests an application/json reply. The schema is
// conveyed by the prompt.
func (c *GeminiClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return c.generate(ctx, messages, true)
}

// Close is a no-op; the genai client holds no resources that need releasing.
func (c *GeminiClient) Close() error {
	return nil
}

func (c *GeminiClient) generate(ctx context.Context, messages []types.Message, jsonOutput bool) (*types.Response, error) {
	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: at least one user message is required")
	}

	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if c.config.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(c.config.Temperature)
	}
	if c.config.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if jsonOutput {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &EmptyResponseError{Provider: "gemini"}
	}

	out := &types.Response{
		Content: resp.Text(),
		Model:   c.config.Model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.TokenUsage = &types.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// toGeminiContents folds system messages into one instruction and maps the
// remaining turns onto Gemini's user/model roles.
func toGeminiContents(messages []types.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
