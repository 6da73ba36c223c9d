// Package neo4j implements repository.GraphStore (SPEC_FULL.md §4.1) against
// a Neo4j labeled-property graph, the same role the teacher's postgres
// package plays for its relational store — one struct wrapping a driver
// handle, package-level Cypher query strings, method-name-prefixed error
// wrapping.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"scout/internal/repository"
)

// Store implements repository.GraphStore. neo4j.DriverWithContext is
// documented safe for concurrent use by multiple goroutines (SPEC_FULL.md
// §5 Shared mutable state), so Store itself needs no internal locking.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config holds connection parameters loaded from environment (SPEC_FULL.md §6).
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewStore opens a Neo4j driver and verifies connectivity.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: new driver: %w", err)
	}
	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Store{driver: driver, database: cfg.Database}, nil
}

// Close releases the underlying driver's connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) newSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

var _ repository.GraphStore = (*Store)(nil)
