package nlp

import "errors"

// Common LLM client errors
var (
	// ErrRateLimit indicates the provider rejected the call for quota reasons.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrEmptyResponse indicates the model returned no candidates.
	ErrEmptyResponse = errors.New("the model returned an empty response")

	// ErrMissingAPIKey indicates a hosted provider was configured without credentials.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrUnknownProvider indicates an unsupported nlp.provider value.
	ErrUnknownProvider = errors.New("unknown nlp provider")
)

// RateLimitError carries the provider's rate limit message.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

// Is reports whether target is a RateLimitError or ErrRateLimit.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimit {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a new rate limit error with optional custom message
func NewRateLimitError(message ...string) *RateLimitError {
	err := &RateLimitError{}
	if len(message) > 0 {
		err.Message = message[0]
	}
	return err
}

// EmptyResponseError names the provider that returned nothing.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	if e.Provider == "" {
		return ErrEmptyResponse.Error()
	}
	return e.Provider + ": " + ErrEmptyResponse.Error()
}

// Is reports whether target is an EmptyResponseError or ErrEmptyResponse.
func (e *EmptyResponseError) Is(target error) bool {
	if target == ErrEmptyResponse {
		return true
	}
	_, ok := target.(*EmptyResponseError)
	return ok
}
