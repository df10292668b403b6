// Package nlp provides the language model clients used for concept extraction.
//
// Two providers are supported:
//   - Gemini, through google.golang.org/genai
//   - OpenAI and OpenAI-compatible services (Ollama, vLLM, LM Studio), through go-openai
//
// # Client Wrappers
//
// Base clients are wrapped for resilience and accounting:
//   - RetryClient: retry with exponential backoff on transient failures
//   - CircuitBreakerClient: stop calling a failing provider and alert operators
//   - TokenTrackingClient: write per-call token usage to Parquet files
//
// New assembles the stack from configuration:
//
//	client, err := nlp.New(cfg.NLP, nlp.Options{
//		CircuitBreaker: cfg.CircuitBreaker,
//		Alerter:        alerter,
//		Logger:         logger,
//	})
//	resp, err := client.ChatWithStructuredOutput(ctx, messages, nil)
//
// # Error Handling
//
// RateLimitError and EmptyResponseError support errors.Is for type checking.
package nlp
