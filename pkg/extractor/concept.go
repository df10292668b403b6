package extractor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundprediction/conceptgraph/pkg/nlp"
	"github.com/soundprediction/conceptgraph/pkg/prompts"
	"github.com/soundprediction/conceptgraph/pkg/types"
	"github.com/soundprediction/conceptgraph/pkg/utils"
)

// DefaultExtractionTimeout bounds a single model call.
const DefaultExtractionTimeout = 60 * time.Second

// ConceptExtractor proposes concepts and relationships found in text.
type ConceptExtractor interface {
	Extract(ctx context.Context, text string) (*types.CandidateGraph, error)
}

// LLMConceptExtractor extracts a concept map with a language model.
type LLMConceptExtractor struct {
	client       nlp.Client
	prompt       prompts.PromptVersion
	timeout      time.Duration
	maxChars     int
	customPrompt string
	logger       *slog.Logger
}

// Option configures an LLMConceptExtractor.
type Option func(*LLMConceptExtractor)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *LLMConceptExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxChars truncates text to n runes before prompting. Zero disables truncation.
func WithMaxChars(n int) Option {
	return func(e *LLMConceptExtractor) { e.maxChars = n }
}

// WithCustomPrompt appends an extra instruction to the user prompt.
func WithCustomPrompt(s string) Option {
	return func(e *LLMConceptExtractor) { e.customPrompt = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *LLMConceptExtractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewLLMConceptExtractor creates an extractor using the topics prompt.
func NewLLMConceptExtractor(client nlp.Client, opts ...Option) *LLMConceptExtractor {
	e := &LLMConceptExtractor{
		client:  client,
		prompt:  prompts.NewExtractConceptsVersions().Topics(),
		timeout: DefaultExtractionTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the candidate graph for text. Empty text and empty or
// unparseable replies produce an empty graph.
func (e *LLMConceptExtractor) Extract(ctx context.Context, text string) (*types.CandidateGraph, error) {
	text = utils.TruncateRunes(text, e.maxChars)
	if text == "" {
		return &types.CandidateGraph{}, nil
	}

	pctx := map[string]interface{}{"text": text}
	if e.customPrompt != "" {
		pctx["custom_prompt"] = e.customPrompt
	}
	messages, err := e.prompt.Call(pctx)
	if err != nil {
		return nil, &ExtractionError{Stage: StageConcepts, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.ChatWithStructuredOutput(callCtx, messages, nil)
	if err != nil {
		if errors.Is(err, nlp.ErrEmptyResponse) {
			e.logger.WarnContext(ctx, "Extraction model returned no candidates")
			return &types.CandidateGraph{}, nil
		}
		return nil, &ExtractionError{Stage: StageConcepts, Err: err}
	}

	g, err := ParseCandidateGraph(resp.Content)
	if err != nil {
		return nil, &ExtractionError{Stage: StageConcepts, Err: err}
	}

	e.logger.DebugContext(ctx, "Concept extraction finished",
		"model", resp.Model,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"duration", time.Since(start))
	if g.IsEmpty() {
		e.logger.InfoContext(ctx, "No concepts found in document", "reply_chars", len(resp.Content))
	}
	return g, nil
}
