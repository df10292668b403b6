// Package resolver matches candidate concept labels against a user's existing
// nodes using normalised edit-distance similarity.
//
// An Index is built once per batch from the pre-batch node snapshot. Candidates
// never match each other; each one is resolved independently against the snapshot.
package resolver

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/soundprediction/conceptgraph/pkg/types"
	"github.com/soundprediction/conceptgraph/pkg/utils"
)

// DefaultThreshold is the minimum similarity a match must reach. It corresponds
// to a distance tolerance of 0.4.
const DefaultThreshold = 0.6

// ErrEmptyLabel is returned when a candidate label is empty or whitespace only.
var ErrEmptyLabel = errors.New("candidate label is empty")

// Match is the existing node a label resolved to.
type Match struct {
	Node  *types.Node
	Score float64
}

type entry struct {
	node       *types.Node
	normalized string
}

// Index is an immutable lookup structure over a node snapshot.
// It is safe for concurrent use.
type Index struct {
	entries   []entry
	exact     map[string][]int
	threshold float64
}

// Option configures an Index.
type Option func(*Index)

// WithThreshold overrides DefaultThreshold. Values outside (0, 1] are ignored.
func WithThreshold(threshold float64) Option {
	return func(ix *Index) {
		if threshold > 0 && threshold <= 1 {
			ix.threshold = threshold
		}
	}
}

// NewIndex builds an index over nodes. Nodes with an empty normalised name are skipped.
func NewIndex(nodes []*types.Node, opts ...Option) *Index {
	ix := &Index{
		entries:   make([]entry, 0, len(nodes)),
		exact:     make(map[string][]int, len(nodes)),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(ix)
	}

	for _, n := range nodes {
		if n == nil {
			continue
		}
		norm := utils.NormalizeName(n.Name)
		if norm == "" {
			continue
		}
		ix.exact[norm] = append(ix.exact[norm], len(ix.entries))
		ix.entries = append(ix.entries, entry{node: n, normalized: norm})
	}
	return ix
}

// Len returns the number of indexed nodes.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Threshold returns the similarity threshold in effect.
func (ix *Index) Threshold() float64 {
	return ix.threshold
}

// Resolve returns the best existing node for label, or nil when nothing clears
// the threshold. Equal scores are ordered by name, then id.
func (ix *Index) Resolve(label string) (*Match, error) {
	norm := utils.NormalizeName(label)
	if norm == "" {
		return nil, ErrEmptyLabel
	}
	if len(ix.entries) == 0 {
		return nil, nil
	}

	if hits, ok := ix.exact[norm]; ok {
		best := ix.entries[hits[0]].node
		for _, i := range hits[1:] {
			if less(ix.entries[i].node, best) {
				best = ix.entries[i].node
			}
		}
		return &Match{Node: best, Score: 1}, nil
	}

	var best *Match
	for _, e := range ix.entries {
		score := similarity(norm, e.normalized)
		if score < ix.threshold {
			continue
		}
		if best == nil || score > best.Score || (score == best.Score && less(e.node, best.Node)) {
			best = &Match{Node: e.node, Score: score}
		}
	}
	return best, nil
}

// Similarity compares two labels after normalisation and returns a score in [0, 1].
func Similarity(a, b string) float64 {
	return similarity(utils.NormalizeName(a), utils.NormalizeName(b))
}

func similarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func less(a, b *types.Node) bool {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}
