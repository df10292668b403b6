// Package merge folds a candidate graph into a user's persisted concept graph.
//
// Each candidate node is resolved against the nodes that existed before the
// batch started. Matches reuse the existing node, misses create one. Candidate
// edges are then mapped through the resulting temp id mapping and created
// unless the same directed pair already exists.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soundprediction/conceptgraph/pkg/driver"
	"github.com/soundprediction/conceptgraph/pkg/resolver"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// Mapping records which persisted node each candidate temp id became.
type Mapping map[string]types.ResolvedRef

// Recorder receives the outcome of every Merge call.
type Recorder interface {
	ObserveMerge(result *Result, duration time.Duration, err error)
}

// Result summarises one merge.
type Result struct {
	DocumentID string
	UserID     string

	// Graph is the user's graph as seen by this batch: the pre-batch snapshot
	// plus everything the batch created.
	Graph *types.Graph

	CreatedNodes []*types.Node
	CreatedEdges []*types.Edge

	ResolvedNodes    int
	// BatchReusedNodes counts candidates mapped to a node created earlier in
	// the same batch. Always zero unless batch dedupe is enabled.
	BatchReusedNodes int
	DroppedNodes     int
	SkippedEdges     int
	DuplicateEdges   int
}

// Engine merges candidate graphs into a GraphStore.
type Engine struct {
	store       driver.GraphStore
	threshold   float64
	batchDedupe bool
	recorder    Recorder
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithThreshold sets the minimum similarity for reusing an existing node.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 1 {
			e.threshold = t
		}
	}
}

// WithRecorder registers a Recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithBatchDedupe lets a candidate that matches nothing in the snapshot reuse
// a node created earlier in the same batch. Off by default, where candidates
// resolve only against the pre-batch snapshot and their order does not affect
// the resulting graph.
func WithBatchDedupe(enabled bool) Option {
	return func(e *Engine) { e.batchDedupe = enabled }
}

// NewEngine creates a merge engine writing to store.
func NewEngine(store driver.GraphStore, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		threshold: resolver.DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the similarity threshold in use.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Merge applies g to userID's graph. On a store failure the partial result is
// returned together with a *StoreError.
func (e *Engine) Merge(ctx context.Context, documentID, userID string, g *types.CandidateGraph) (res *Result, err error) {
	if userID == "" {
		return nil, types.ErrEmptyUserID
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCandidates, err)
	}

	start := time.Now()
	res = &Result{
		DocumentID: documentID,
		UserID:     userID,
		Graph:      &types.Graph{},
	}
	if e.recorder != nil {
		defer func() { e.recorder.ObserveMerge(res, time.Since(start), err) }()
	}

	log := e.logger.With("document_id", documentID, "user_id", userID)

	nodes, err := e.store.FindNodes(ctx, userID)
	if err != nil {
		return res, &StoreError{Op: OpFindNodes, Err: err}
	}
	edges, err := e.store.FindEdges(ctx, userID)
	if err != nil {
		return res, &StoreError{Op: OpFindEdges, Err: err}
	}
	res.Graph.Nodes = append(res.Graph.Nodes, nodes...)
	res.Graph.Edges = append(res.Graph.Edges, edges...)

	if g.IsEmpty() {
		log.Info("Extraction produced no candidates")
		return res, nil
	}

	mapping, err := e.resolveNodes(ctx, log, userID, nodes, g.Nodes, res)
	if err != nil {
		return res, err
	}
	if err := e.createEdges(ctx, log, userID, edges, g.Edges, mapping, res); err != nil {
		return res, err
	}

	log.Info("Merged candidate graph",
		"candidate_nodes", len(g.Nodes),
		"candidate_edges", len(g.Edges),
		"created_nodes", len(res.CreatedNodes),
		"resolved_nodes", res.ResolvedNodes,
		"batch_reused_nodes", res.BatchReusedNodes,
		"created_edges", len(res.CreatedEdges),
		"duplicate_edges", res.DuplicateEdges,
		"skipped_edges", res.SkippedEdges,
		"dropped_nodes", res.DroppedNodes,
		"duration", time.Since(start))
	return res, nil
}

// resolveNodes maps every candidate to an existing or newly created node.
func (e *Engine) resolveNodes(ctx context.Context, log *slog.Logger, userID string, snapshot []*types.Node, candidates []types.CandidateNode, res *Result) (Mapping, error) {
	index := resolver.NewIndex(snapshot, resolver.WithThreshold(e.threshold))
	mapping := make(Mapping, len(candidates))
	log.Debug("Resolving candidates",
		"candidates", len(candidates),
		"snapshot_nodes", index.Len(),
		"threshold", index.Threshold())
	var dropped []string

	for _, c := range candidates {
		match, err := index.Resolve(c.Label)
		if errors.Is(err, resolver.ErrEmptyLabel) {
			dropped = append(dropped, c.TempID)
			res.DroppedNodes++
			continue
		}
		if match != nil {
			mapping[c.TempID] = types.ResolvedRef{ID: match.Node.ID, Name: match.Node.Name}
			res.ResolvedNodes++
			log.Debug("Resolved candidate to existing concept",
				"temp_id", c.TempID,
				"label", c.Label,
				"node_id", match.Node.ID,
				"score", match.Score)
			continue
		}
		if e.batchDedupe && len(res.CreatedNodes) > 0 {
			if m, _ := resolver.NewIndex(res.CreatedNodes, resolver.WithThreshold(e.threshold)).Resolve(c.Label); m != nil {
				mapping[c.TempID] = types.ResolvedRef{ID: m.Node.ID, Name: m.Node.Name}
				res.BatchReusedNodes++
				log.Debug("Reused concept created in this batch",
					"temp_id", c.TempID,
					"label", c.Label,
					"node_id", m.Node.ID,
					"score", m.Score)
				continue
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		node, err := e.store.CreateNode(ctx, strings.TrimSpace(c.Label), userID)
		if err != nil {
			return nil, &StoreError{Op: OpCreateNode, Err: err}
		}
		res.CreatedNodes = append(res.CreatedNodes, node)
		res.Graph.Nodes = append(res.Graph.Nodes, node)
		mapping[c.TempID] = types.ResolvedRef{ID: node.ID, Name: node.Name}
	}

	if len(dropped) > 0 {
		log.Warn("Dropped candidates with empty labels", "count", len(dropped), "temp_ids", dropped)
	}
	return mapping, nil
}

// createEdges persists candidate edges whose endpoints resolved and whose
// directed pair is new.
func (e *Engine) createEdges(ctx context.Context, log *slog.Logger, userID string, snapshot []*types.Edge, candidates []types.CandidateEdge, mapping Mapping, res *Result) error {
	seen := make(map[string]struct{}, len(snapshot)+len(candidates))
	for _, edge := range snapshot {
		seen[edge.Key()] = struct{}{}
	}

	for _, c := range candidates {
		src, srcOK := mapping[c.SourceTempID]
		tgt, tgtOK := mapping[c.TargetTempID]
		if !srcOK || !tgtOK {
			res.SkippedEdges++
			log.Debug("Skipping edge with unresolved endpoint",
				"source", c.SourceTempID,
				"target", c.TargetTempID,
				"label", c.RelationLabel)
			continue
		}

		key := types.EdgeKey(src.ID, tgt.ID)
		if _, dup := seen[key]; dup {
			res.DuplicateEdges++
			continue
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		edge, err := e.store.CreateEdge(ctx, src.ID, tgt.ID, userID)
		if err != nil {
			return &StoreError{Op: OpCreateEdge, Err: err}
		}
		seen[key] = struct{}{}
		res.CreatedEdges = append(res.CreatedEdges, edge)
		res.Graph.Edges = append(res.Graph.Edges, edge)
	}

	if res.SkippedEdges > 0 {
		log.Warn("Skipped edges with unresolved endpoints", "count", res.SkippedEdges)
	}
	return nil
}
