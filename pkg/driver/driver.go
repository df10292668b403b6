package driver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/conceptgraph/pkg/config"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// Provider identifies a storage backend.
type Provider string

const (
	ProviderMemory   Provider = "memory"
	ProviderBadger   Provider = "badger"
	ProviderNeo4j    Provider = "neo4j"
	ProviderPostgres Provider = "postgres"
	ProviderSQLite   Provider = "sqlite"
)

// Providers lists every supported backend name.
var Providers = []Provider{ProviderMemory, ProviderBadger, ProviderNeo4j, ProviderPostgres, ProviderSQLite}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEndpointNotFound is returned by CreateEdge when an endpoint is missing
	// or owned by a different user.
	ErrEndpointNotFound = errors.New("edge endpoint not found for user")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("driver is closed")
)

// New opens the backend named by cfg.Driver.
func New(cfg config.DatabaseConfig) (Driver, error) {
	switch Provider(strings.ToLower(cfg.Driver)) {
	case ProviderMemory:
		return NewMemoryDriver(), nil
	case ProviderBadger, "":
		return NewBadgerDriver(cfg.URI)
	case ProviderNeo4j:
		return NewNeo4jDriver(cfg.URI, cfg.Username, cfg.Password, cfg.Database)
	case ProviderPostgres:
		return NewPostgresDriver(cfg.URI)
	case ProviderSQLite:
		return NewSQLiteDriver(cfg.URI)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func validateNodeInput(name, userID string) error {
	if strings.TrimSpace(name) == "" {
		return types.ErrEmptyName
	}
	if userID == "" {
		return types.ErrEmptyUserID
	}
	return nil
}

func validateEdgeInput(sourceNodeID, targetNodeID, userID string) error {
	if sourceNodeID == "" || targetNodeID == "" {
		return types.ErrEmptyID
	}
	if userID == "" {
		return types.ErrEmptyUserID
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func newNode(name, userID string) *types.Node {
	return &types.Node{
		ID:        uuid.New().String(),
		Name:      name,
		UserID:    userID,
		CreatedAt: nowUTC(),
	}
}

func newEdge(sourceNodeID, targetNodeID, userID string) *types.Edge {
	return &types.Edge{
		ID:           uuid.New().String(),
		SourceNodeID: sourceNodeID,
		TargetNodeID: targetNodeID,
		UserID:       userID,
		CreatedAt:    nowUTC(),
	}
}

func sortNodes(nodes []*types.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
}

func sortEdges(edges []*types.Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.Before(edges[j].CreatedAt)
		}
		return edges[i].ID < edges[j].ID
	})
}

func sortFiles(files []*types.FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		}
		return files[i].ID < files[j].ID
	})
}
