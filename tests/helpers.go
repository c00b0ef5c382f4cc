//go:build integration

// Package tests contains database-backed integration tests for the job engine.
package tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/localpros/hub/pkg/database"
)

// setupTestPool starts a throwaway Postgres container, applies the schema,
// and returns a connected pool. The container is terminated on test cleanup.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("hub_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewPostgresPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	schema, err := os.ReadFile(filepath.Join("..", "migrations", "001_init.sql"))
	require.NoError(t, err, "read schema")

	_, err = db.Exec(ctx, string(schema))
	require.NoError(t, err, "apply schema")

	return db
}

// insertContractor seeds a contractor row and returns its id.
func insertContractor(t *testing.T, db *pgxpool.Pool, name, trade, city string) uuid.UUID {
	t.Helper()

	id := uuid.Must(uuid.NewV7())
	_, err := db.Exec(context.Background(),
		`INSERT INTO contractors (id, name, trade, city) VALUES ($1, $2, $3, $4)`,
		id, name, trade, city)
	require.NoError(t, err)

	return id
}

// insertReview seeds a review row for a contractor and returns its id.
func insertReview(t *testing.T, db *pgxpool.Pool, contractorID uuid.UUID, author, body string, rating int) uuid.UUID {
	t.Helper()

	id := uuid.Must(uuid.NewV7())
	_, err := db.Exec(context.Background(),
		`INSERT INTO reviews (id, contractor_id, author, body, rating) VALUES ($1, $2, $3, $4, $5)`,
		id, contractorID, author, body, rating)
	require.NoError(t, err)

	return id
}
