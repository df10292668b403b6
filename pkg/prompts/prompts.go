// Package prompts holds the versioned prompts sent to the extraction model.
package prompts

import (
	"fmt"

	"github.com/soundprediction/conceptgraph/pkg/nlp"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// PromptFunction is a function that generates prompt messages from context.
type PromptFunction func(context map[string]interface{}) ([]types.Message, error)

// PromptVersion represents a versioned prompt function.
type PromptVersion interface {
	Call(context map[string]interface{}) ([]types.Message, error)
}

// promptVersionImpl implements PromptVersion.
type promptVersionImpl struct {
	fn PromptFunction
}

// Call executes the prompt function with the given context.
func (p *promptVersionImpl) Call(context map[string]interface{}) ([]types.Message, error) {
	messages, err := p.fn(context)
	if err != nil {
		return nil, err
	}

	// Add unicode preservation instruction to system messages
	for i, msg := range messages {
		if msg.Role == nlp.RoleSystem {
			messages[i].Content += "\nDo not escape unicode characters.\n"
		}
	}

	return messages, nil
}

// NewPromptVersion creates a new PromptVersion from a function.
func NewPromptVersion(fn PromptFunction) PromptVersion {
	return &promptVersionImpl{fn: fn}
}

func stringValue(context map[string]interface{}, key string) (string, error) {
	raw, ok := context[key]
	if !ok {
		return "", fmt.Errorf("prompt context is missing %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("prompt context %q must be a string, got %T", key, raw)
	}
	return s, nil
}
