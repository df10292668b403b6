// Package driver provides graph store implementations for conceptgraph.
//
// This package defines the GraphStore, FileStore and Driver interfaces and
// provides implementations backed by several databases.
//
// # Supported Stores
//
//   - memory: process-local maps, for tests and throwaway runs
//   - badger: embedded key/value store on local disk (default)
//   - neo4j: Concept nodes joined by RELATED_TO relationships
//   - postgres / sqlite: relational tables through database/sql
//
// # Usage
//
//	d, err := driver.New(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	node, err := d.CreateNode(ctx, "Machine Learning", userID)
//
// # Guarantees
//
// Each create call is atomic on its own. There is no batch or transactional
// variant; callers that need ordering across calls must serialize them.
// CreateEdge refuses endpoints that do not exist or belong to another user.
//
// All implementations are safe for concurrent use.
package driver
