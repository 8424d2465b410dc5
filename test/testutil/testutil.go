// Package testutil provides shared utilities for tether integration tests.
package testutil

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tetherhq/tether"
	"github.com/tetherhq/tether/mapping"
)

// Embedded test fixtures
var (
	//go:embed testdata/mapping.yaml
	mappingYAML []byte

	//go:embed testdata/schema.sql
	schemaSQL string
)

// Singleton container state
var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error

	schemaOnce sync.Once
	schemaErr  error
)

// ensureSingleton lazily initializes the singleton PostgreSQL container.
// Safe for concurrent access via sync.Once.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx)
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}

		// Append sslmode=disable for local testing
		dsn += "sslmode=disable"

		singletonDSN = dsn
		// Container is not stored - ryuk will handle cleanup automatically
	})

	return singletonDSN, singletonErr
}

// DB returns a database handle to the shared test database with the
// domain schema applied. The connection is closed at test cleanup; the
// container itself is shared for the whole test session.
func DB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		var err error
		dsn, err = ensureSingleton()
		require.NoError(t, err)
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schemaOnce.Do(func() {
		_, schemaErr = db.Exec(schemaSQL)
	})
	require.NoError(t, schemaErr)

	return db
}

// NewID returns a fresh identifier guaranteed not to exist in the
// database, for unsaved-entity fixtures.
func NewID() string {
	return uuid.NewString()
}

// MappingDocument returns the embedded test mapping document.
func MappingDocument(t *testing.T) *mapping.Document {
	t.Helper()
	doc, err := mapping.Parse(mappingYAML)
	require.NoError(t, err)
	return doc
}

// MappingYAML returns the raw embedded test mapping, for tests that need
// it on disk (e.g. the doctor).
func MappingYAML() []byte {
	return mappingYAML
}

// Registry compiles the embedded test mapping into a registry.
func Registry(t *testing.T) *tether.Registry {
	t.Helper()
	reg, err := mapping.Build(MappingDocument(t))
	require.NoError(t, err)
	return reg
}
