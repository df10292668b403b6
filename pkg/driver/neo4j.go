package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// Neo4jDriver stores concepts as (:Concept) nodes joined by [:RELATED_TO]
// relationships, and uploads as (:Document) nodes.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

var neo4jSchema = []string{
	`CREATE CONSTRAINT concept_id IF NOT EXISTS FOR (n:Concept) REQUIRE n.id IS UNIQUE`,
	`CREATE INDEX concept_user IF NOT EXISTS FOR (n:Concept) ON (n.user_id)`,
	`CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
	`CREATE INDEX document_user IF NOT EXISTS FOR (d:Document) ON (d.user_id)`,
}

// NewNeo4jDriver creates a new Neo4j driver instance and ensures the schema.
// Schema creation is best-effort; failures are logged.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	d := &Neo4jDriver{
		client:   client,
		database: database,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	d.ensureSchema(ctx)

	return d, nil
}

func (n *Neo4jDriver) ensureSchema(ctx context.Context) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	for _, stmt := range neo4jSchema {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, stmt, nil)
			if err != nil {
				return nil, err
			}
			return res.Consume(ctx)
		})
		if err != nil {
			slog.Warn("neo4j schema statement failed", "statement", stmt, "error", err)
		}
	}
}

func (n *Neo4jDriver) write(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*db.Record), nil
}

func (n *Neo4jDriver) read(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*db.Record), nil
}

// CreateNode implements GraphStore.
func (n *Neo4jDriver) CreateNode(ctx context.Context, name, userID string) (*types.Node, error) {
	if err := validateNodeInput(name, userID); err != nil {
		return nil, err
	}

	node := newNode(name, userID)
	_, err := n.write(ctx, `
		CREATE (n:Concept {id: $id, name: $name, user_id: $user_id, created_at: $created_at})
		RETURN n.id AS id
	`, map[string]any{
		"id":         node.ID,
		"name":       node.Name,
		"user_id":    node.UserID,
		"created_at": node.CreatedAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create concept: %w", err)
	}
	return node, nil
}

// CreateEdge implements GraphStore. Both endpoints are matched on id and
// user_id, so a missing or foreign endpoint creates nothing.
func (n *Neo4jDriver) CreateEdge(ctx context.Context, sourceNodeID, targetNodeID, userID string) (*types.Edge, error) {
	if err := validateEdgeInput(sourceNodeID, targetNodeID, userID); err != nil {
		return nil, err
	}

	edge := newEdge(sourceNodeID, targetNodeID, userID)
	records, err := n.write(ctx, `
		MATCH (a:Concept {id: $source, user_id: $user_id})
		MATCH (b:Concept {id: $target, user_id: $user_id})
		CREATE (a)-[r:RELATED_TO {id: $id, user_id: $user_id, created_at: $created_at}]->(b)
		RETURN r.id AS id
	`, map[string]any{
		"id":         edge.ID,
		"source":     sourceNodeID,
		"target":     targetNodeID,
		"user_id":    userID,
		"created_at": edge.CreatedAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create relationship: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("edge %s -> %s: %w", sourceNodeID, targetNodeID, ErrEndpointNotFound)
	}
	return edge, nil
}

// FindNodes implements GraphStore.
func (n *Neo4jDriver) FindNodes(ctx context.Context, userID string) ([]*types.Node, error) {
	records, err := n.read(ctx, `
		MATCH (n:Concept {user_id: $user_id})
		RETURN n.id AS id, n.name AS name, n.created_at AS created_at
		ORDER BY n.created_at, n.id
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find concepts: %w", err)
	}

	nodes := make([]*types.Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, &types.Node{
			ID:        recordString(rec, "id"),
			Name:      recordString(rec, "name"),
			UserID:    userID,
			CreatedAt: recordTime(rec, "created_at"),
		})
	}
	return nodes, nil
}

// FindEdges implements GraphStore.
func (n *Neo4jDriver) FindEdges(ctx context.Context, userID string) ([]*types.Edge, error) {
	records, err := n.read(ctx, `
		MATCH (a:Concept)-[r:RELATED_TO {user_id: $user_id}]->(b:Concept)
		RETURN r.id AS id, a.id AS source, b.id AS target, r.created_at AS created_at
		ORDER BY r.created_at, r.id
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find relationships: %w", err)
	}

	edges := make([]*types.Edge, 0, len(records))
	for _, rec := range records {
		edges = append(edges, &types.Edge{
			ID:           recordString(rec, "id"),
			SourceNodeID: recordString(rec, "source"),
			TargetNodeID: recordString(rec, "target"),
			UserID:       userID,
			CreatedAt:    recordTime(rec, "created_at"),
		})
	}
	return edges, nil
}

const documentReturn = `
	RETURN d.id AS id, d.user_id AS user_id, d.file_name AS file_name, d.file_type AS file_type,
		d.size AS size, d.path AS path, d.status AS status, d.error AS error,
		d.created_at AS created_at, d.updated_at AS updated_at
`

// CreateFile implements FileStore.
func (n *Neo4jDriver) CreateFile(ctx context.Context, file *types.FileInfo) error {
	if err := file.Validate(); err != nil {
		return err
	}
	_, err := n.write(ctx, `
		CREATE (d:Document {id: $id, user_id: $user_id, file_name: $file_name, file_type: $file_type,
			size: $size, path: $path, status: $status, error: $error,
			created_at: $created_at, updated_at: $updated_at})
	`, map[string]any{
		"id":         file.ID,
		"user_id":    file.UserID,
		"file_name":  file.FileName,
		"file_type":  file.FileType,
		"size":       file.Size,
		"path":       file.Path,
		"status":     string(file.Status),
		"error":      file.Error,
		"created_at": file.CreatedAt.UnixNano(),
		"updated_at": file.UpdatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetFile implements FileStore.
func (n *Neo4jDriver) GetFile(ctx context.Context, fileID string) (*types.FileInfo, error) {
	records, err := n.read(ctx, `MATCH (d:Document {id: $id})`+documentReturn, map[string]any{"id": fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return fileFromRecord(records[0]), nil
}

// ListFiles implements FileStore.
func (n *Neo4jDriver) ListFiles(ctx context.Context, userID string) ([]*types.FileInfo, error) {
	records, err := n.read(ctx, `MATCH (d:Document {user_id: $user_id})`+documentReturn+`ORDER BY created_at, id`,
		map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	files := make([]*types.FileInfo, 0, len(records))
	for _, rec := range records {
		files = append(files, fileFromRecord(rec))
	}
	return files, nil
}

// UpdateFileStatus implements FileStore.
func (n *Neo4jDriver) UpdateFileStatus(ctx context.Context, fileID string, status types.FileStatus, message string) error {
	records, err := n.write(ctx, `
		MATCH (d:Document {id: $id})
		SET d.status = $status, d.error = $error, d.updated_at = $updated_at
		RETURN d.id AS id
	`, map[string]any{
		"id":         fileID,
		"status":     string(status),
		"error":      message,
		"updated_at": nowUTC().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return nil
}

// DeleteFile implements FileStore.
func (n *Neo4jDriver) DeleteFile(ctx context.Context, fileID string) error {
	records, err := n.write(ctx, `
		MATCH (d:Document {id: $id})
		WITH d, d.id AS id
		DELETE d
		RETURN id
	`, map[string]any{"id": fileID})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return nil
}

// Ping implements Driver.
func (n *Neo4jDriver) Ping(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

// Provider implements Driver.
func (n *Neo4jDriver) Provider() Provider {
	return ProviderNeo4j
}

// Close implements Driver.
func (n *Neo4jDriver) Close() error {
	return n.client.Close(context.Background())
}

func fileFromRecord(rec *db.Record) *types.FileInfo {
	return &types.FileInfo{
		ID:        recordString(rec, "id"),
		UserID:    recordString(rec, "user_id"),
		FileName:  recordString(rec, "file_name"),
		FileType:  recordString(rec, "file_type"),
		Size:      recordInt(rec, "size"),
		Path:      recordString(rec, "path"),
		Status:    types.FileStatus(recordString(rec, "status")),
		Error:     recordString(rec, "error"),
		CreatedAt: recordTime(rec, "created_at"),
		UpdatedAt: recordTime(rec, "updated_at"),
	}
}

func recordString(rec *db.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func recordInt(rec *db.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	}
	return 0
}

// recordTime reads a timestamp stored as unix nanoseconds. Native temporal
// values are accepted for records written by other tools.
func recordTime(rec *db.Record, key string) time.Time {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return time.Time{}
	}
	switch x := v.(type) {
	case int64:
		return time.Unix(0, x).UTC()
	case time.Time:
		return x.UTC()
	case neo4j.LocalDateTime:
		return x.Time().UTC()
	}
	return time.Time{}
}
