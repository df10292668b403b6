package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/soundprediction/conceptgraph/pkg/types"
	"github.com/soundprediction/conceptgraph/pkg/utils"
)

// ParseCandidateGraph converts a model reply into a candidate graph.
//
// Replies that cannot be read as JSON, even after repair, yield an empty graph.
// Replies that are JSON but do not have the concept map shape fail with
// ErrMalformedOutput.
func ParseCandidateGraph(raw string) (*types.CandidateGraph, error) {
	cleaned := strings.TrimSpace(utils.StripCodeFences(utils.RemoveThinkTags(raw)))
	if cleaned == "" {
		return &types.CandidateGraph{}, nil
	}

	value, err := decodeJSON(cleaned)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return &types.CandidateGraph{}, nil
		}
		value, err = decodeJSON(repaired)
		if err != nil {
			return &types.CandidateGraph{}, nil
		}
		// Repair turns free text into a bare JSON string; that is still unparseable output.
		if _, ok := value.(map[string]any); !ok {
			return &types.CandidateGraph{}, nil
		}
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %s, want object", ErrMalformedOutput, jsonKind(value))
	}

	nodes, err := arrayField(obj, "nodes")
	if err != nil {
		return nil, err
	}
	edges, err := arrayField(obj, "edges")
	if err != nil {
		return nil, err
	}

	g := &types.CandidateGraph{
		Nodes: make([]types.CandidateNode, 0, len(nodes)),
		Edges: make([]types.CandidateEdge, 0, len(edges)),
	}

	for i, raw := range nodes {
		n, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: nodes[%d] is %s, want object", ErrMalformedOutput, i, jsonKind(raw))
		}
		id := idField(n, "id")
		if id == "" {
			return nil, fmt.Errorf("%w: nodes[%d] has no id", ErrMalformedOutput, i)
		}
		g.Nodes = append(g.Nodes, types.CandidateNode{
			TempID: id,
			Label:  stringField(n, "label"),
		})
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	for i, raw := range edges {
		e, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: edges[%d] is %s, want object", ErrMalformedOutput, i, jsonKind(raw))
		}
		g.Edges = append(g.Edges, types.CandidateEdge{
			SourceTempID:  idField(e, "source"),
			TargetTempID:  idField(e, "target"),
			RelationLabel: stringField(e, "label"),
		})
	}

	return g, nil
}

var errInvalidJSON = errors.New("invalid JSON")

func decodeJSON(s string) (any, error) {
	if !json.Valid([]byte(s)) {
		return nil, errInvalidJSON
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// arrayField returns obj[key] as a slice. A missing or null key is an empty list.
func arrayField(obj map[string]any, key string) ([]any, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s, want array", ErrMalformedOutput, key, jsonKind(raw))
	}
	return arr, nil
}

// stringField returns obj[key] when it is a string and "" otherwise.
func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// idField returns obj[key] as a trimmed temp id. Numeric ids are kept in
// their JSON spelling, so 1 and "1" name the same node.
func idField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
