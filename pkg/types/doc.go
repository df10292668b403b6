// Package types defines the core data types for the conceptgraph knowledge graph.
//
// This package contains the fundamental types used throughout conceptgraph:
//   - Node: a persisted concept owned by one user
//   - Edge: a directed relationship between two nodes of the same user
//   - CandidateGraph: the raw nodes/edges returned by a concept extractor for one document
//   - FileInfo: an uploaded document and the status of its ingestion batch
//
// # Candidates
//
// Candidate nodes carry a temporary id that is only unique inside one extraction
// response. The merge engine maps those ids to persisted node ids:
//
//	g := &types.CandidateGraph{
//	    Nodes: []types.CandidateNode{{TempID: "ml", Label: "Machine Learning"}},
//	}
//	if err := g.Validate(); err != nil {
//	    // Handle malformed extraction output
//	}
//
// # JSON Serialization
//
// Candidate types use the field names of the extraction prompt (id, label, source,
// target) so that model output decodes directly into them.
package types
