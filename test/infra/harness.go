package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	sharedDSN     string
	sharedDSNOnce sync.Once
	sharedDSNErr  error
)

// SharedDSN returns a database DSN shared by every integration test in the
// run. The container is started once; Ryuk reaps it when the process exits.
func SharedDSN(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedDSNOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		_, sharedDSN, sharedDSNErr = StartPostgres16(ctx, "")
	})
	if sharedDSNErr != nil {
		t.Fatalf("start postgres: %v", sharedDSNErr)
	}
	return sharedDSN
}

// IsolatedPool returns a pool whose search_path points at a fresh schema with
// all migrations applied. The schema is dropped when the test ends.
func IsolatedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := SharedDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, teardown, err := ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	})
	return pool
}
