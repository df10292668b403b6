package prompts

import (
	"fmt"

	"github.com/soundprediction/conceptgraph/pkg/nlp"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// ExtractConceptsPrompt defines the interface for concept extraction prompts.
type ExtractConceptsPrompt interface {
	Topics() PromptVersion
}

// ExtractConceptsVersions holds all versions of concept extraction prompts.
type ExtractConceptsVersions struct {
	topicsPrompt PromptVersion
}

func (e *ExtractConceptsVersions) Topics() PromptVersion { return e.topicsPrompt }

const topicsSystemPrompt = `You are an assistant that turns documents into concept maps.
Analyze the text and identify the main topics, key concepts, and their relationships.
Structure your response as a valid JSON object with two keys: "nodes" and "edges".
Do not include markdown formatting. No "` + "```json" + `" or "` + "```" + `" fences.

- "nodes": an array of objects, one per topic or concept. Each node has:
    - "id": a unique, lowercase, hyphenated string (e.g., "machine-learning").
    - "label": a human-readable title (e.g., "Machine Learning").
- "edges": an array of objects, one per relationship between two nodes. Each edge has:
    - "source": the "id" of the source node.
    - "target": the "id" of the target node.
    - "label": a description of the relationship (e.g., "is a type of", "is used for").`

// topicsPrompt extracts a concept map from document text.
func topicsPrompt(context map[string]interface{}) ([]types.Message, error) {
	text, err := stringValue(context, "text")
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(`Here is the text:
---
%s
---`, text)

	if custom, ok := context["custom_prompt"].(string); ok && custom != "" {
		userPrompt += "\n\n" + custom
	}

	return []types.Message{
		nlp.NewSystemMessage(topicsSystemPrompt),
		nlp.NewUserMessage(userPrompt),
	}, nil
}

// NewExtractConceptsVersions creates a new ExtractConceptsVersions instance.
func NewExtractConceptsVersions() *ExtractConceptsVersions {
	return &ExtractConceptsVersions{
		topicsPrompt: NewPromptVersion(topicsPrompt),
	}
}
