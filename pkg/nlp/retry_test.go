package nlp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/conceptgraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a mock LLM client for testing
type mockClient struct {
	mu               sync.Mutex
	callCount        int
	failUntilCall    int
	errorToReturn    error
	responseToReturn *types.Response
	closed           bool
}

func (m *mockClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.callCount <= m.failUntilCall {
		return nil, m.errorToReturn
	}
	if m.responseToReturn != nil {
		return m.responseToReturn, nil
	}
	return &types.Response{Content: "success"}, nil
}

func (m *mockClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.callCount <= m.failUntilCall {
		return nil, m.errorToReturn
	}
	if m.responseToReturn != nil {
		return m.responseToReturn, nil
	}
	return &types.Response{Content: `{"status": "success"}`}, nil
}

func (m *mockClient) Close() error {
	m.closed = true
	return nil
}

func (m *mockClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

var userPrompt = []types.Message{{Role: RoleUser, Content: "test"}}

func TestRetryClient_SuccessOnFirstAttempt(t *testing.T) {
	mock := &mockClient{}
	client := NewRetryClient(mock, fastRetryConfig(3), nil)

	resp, err := client.Chat(context.Background(), userPrompt)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Content)
	assert.Equal(t, 1, mock.calls())
}

func TestRetryClient_SuccessAfterRetries(t *testing.T) {
	mock := &mockClient{
		failUntilCall: 2,
		errorToReturn: errors.New("500 internal server error"),
	}
	client := NewRetryClient(mock, fastRetryConfig(3), nil)

	resp, err := client.Chat(context.Background(), userPrompt)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Content)
	assert.Equal(t, 3, mock.calls())
}

func TestRetryClient_FailAfterMaxRetries(t *testing.T) {
	mock := &mockClient{
		failUntilCall: 10,
		errorToReturn: errors.New("503 service unavailable"),
	}
	client := NewRetryClient(mock, fastRetryConfig(2), nil)

	_, err := client.Chat(context.Background(), userPrompt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, 3, mock.calls())
}

func TestRetryClient_NonRetryableError(t *testing.T) {
	mock := &mockClient{
		failUntilCall: 10,
		errorToReturn: errors.New("invalid request: bad prompt"),
	}
	client := NewRetryClient(mock, fastRetryConfig(3), nil)

	_, err := client.Chat(context.Background(), userPrompt)
	require.Error(t, err)
	assert.Equal(t, 1, mock.calls())
}

func TestRetryClient_RateLimitError(t *testing.T) {
	mock := &mockClient{
		failUntilCall: 1,
		errorToReturn: NewRateLimitError("slow down"),
	}
	client := NewRetryClient(mock, fastRetryConfig(3), nil)

	_, err := client.Chat(context.Background(), userPrompt)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.calls())
}

func TestRetryClient_ContextCancellation(t *testing.T) {
	mock := &mockClient{
		failUntilCall: 10,
		errorToReturn: errors.New("502 bad gateway"),
	}
	client := NewRetryClient(mock, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Second,
		MaxDelay:          time.Second,
		BackoffMultiplier: 1,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, userPrompt)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.calls())
}

func TestRetryClient_ChatWithStructuredOutput(t *testing.T) {
	mock := &mockClient{
		failUntilCall: 1,
		errorToReturn: errors.New("gateway timeout"),
	}
	client := NewRetryClient(mock, fastRetryConfig(3), nil)

	resp, err := client.ChatWithStructuredOutput(context.Background(), userPrompt, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "success"}`, resp.Content)
}

func TestRetryClient_Close(t *testing.T) {
	mock := &mockClient{}
	client := NewRetryClient(mock, nil, nil)
	require.NoError(t, client.Close())
	assert.True(t, mock.closed)
}

func TestRetryClient_ExponentialBackoff(t *testing.T) {
	client := NewRetryClient(&mockClient{}, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	}, nil)

	assert.Equal(t, 100*time.Millisecond, client.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, client.calculateDelay(2))
	assert.Equal(t, 400*time.Millisecond, client.calculateDelay(3))
	assert.Equal(t, 800*time.Millisecond, client.calculateDelay(4))
	assert.Equal(t, time.Second, client.calculateDelay(5))
}

func TestNewRetryClient_Defaults(t *testing.T) {
	client := NewRetryClient(&mockClient{}, &RetryConfig{MaxRetries: -1}, nil)
	assert.Equal(t, 3, client.config.MaxRetries)
	assert.Equal(t, time.Second, client.config.InitialDelay)
	assert.Equal(t, 60*time.Second, client.config.MaxDelay)
	assert.Equal(t, 2.0, client.config.BackoffMultiplier)

	def := DefaultRetryConfig()
	assert.Equal(t, 3, def.MaxRetries)
}

type httpError struct {
	statusCode int
}

func (e httpError) Error() string {
	return fmt.Sprintf("http status %d", e.statusCode)
}

func (e httpError) HTTPStatusCode() int {
	return e.statusCode
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit type", NewRateLimitError(), true},
		{"rate limit wrapped", fmt.Errorf("call: %w", ErrRateLimit), true},
		{"server error text", errors.New("500 internal server error"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"bad request text", errors.New("invalid argument"), false},
		{"context cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"status 503", httpError{statusCode: 503}, true},
		{"status 429", httpError{statusCode: 429}, true},
		{"status 400", httpError{statusCode: 400}, false},
		{"openai api 500", &openai.APIError{HTTPStatusCode: 500, Message: "boom"}, true},
		{"openai api 401", &openai.APIError{HTTPStatusCode: 401, Message: "unauthorized"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}
