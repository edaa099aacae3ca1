package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/dispensary-backend/pkg/config"
	"github.com/medflow/dispensary-backend/pkg/database"
	"github.com/medflow/dispensary-backend/pkg/logger"
)

// TestSchema is an isolated PostgreSQL schema holding the dispensary tables.
// DB is a pool whose connections all resolve unqualified names to the schema.
type TestSchema struct {
	Name string
	DB   *database.DB
}

// SchemaManager creates and drops per-test schemas on a shared database
type SchemaManager struct {
	admin   *sqlx.DB
	dsn     string
	log     *logger.Logger
	seq     atomic.Int64
	mu      sync.Mutex
	schemas []*TestSchema
}

// NewSchemaManager creates a schema manager. admin runs DDL; dsn is the
// base connection string used to open schema-scoped pools.
func NewSchemaManager(admin *sqlx.DB, dsn string, log *logger.Logger) *SchemaManager {
	return &SchemaManager{admin: admin, dsn: dsn, log: log}
}

// CreateSchema creates a fresh schema named after prefix and applies the
// dispensary schema inside it.
func (sm *SchemaManager) CreateSchema(ctx context.Context, prefix string) (*TestSchema, error) {
	name := fmt.Sprintf("t_%s_%d", sanitize(prefix), sm.seq.Add(1))

	if _, err := sm.admin.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", name)); err != nil {
		return nil, fmt.Errorf("failed to create schema %s: %w", name, err)
	}

	db, err := database.NewWithDSN(config.WithSearchPath(sm.dsn, name), sm.log)
	if err != nil {
		return nil, err
	}

	if err := db.ApplySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &TestSchema{Name: name, DB: db}

	sm.mu.Lock()
	sm.schemas = append(sm.schemas, s)
	sm.mu.Unlock()

	return s, nil
}

// DropSchema closes the schema's pool and drops it with everything inside
func (sm *SchemaManager) DropSchema(ctx context.Context, s *TestSchema) error {
	sm.mu.Lock()
	for i, tracked := range sm.schemas {
		if tracked == s {
			sm.schemas = append(sm.schemas[:i], sm.schemas[i+1:]...)
			break
		}
	}
	sm.mu.Unlock()

	s.DB.Close()

	if _, err := sm.admin.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s.Name)); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", s.Name, err)
	}
	return nil
}

// Cleanup drops every schema still tracked by this manager
func (sm *SchemaManager) Cleanup(ctx context.Context) error {
	sm.mu.Lock()
	schemas := append([]*TestSchema(nil), sm.schemas...)
	sm.mu.Unlock()

	var lastErr error
	for _, s := range schemas {
		if err := sm.DropSchema(ctx, s); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func sanitize(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(prefix) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
