//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reactivities/reactivities/internal/testutil"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	tables := []string{
		"schema_migrations",
		"users",
		"activities",
		"activity_attendees",
		"photos",
		"activity_events",
	}

	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			require.NoError(t, err)
			require.True(t, exists, "table %q should exist after migrations", table)
		})
	}
}

func TestIntegrationMigration_ActivitiesTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"title",
		"description",
		"category",
		"date",
		"city",
		"venue",
		"is_cancelled",
		"created_at",
		"updated_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "activities", col)
			require.NoError(t, err)
			require.True(t, exists, "column %q should exist in activities table", col)
		})
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	applied, err := NewWithPool(pool).Migrate(ctx)
	require.NoError(t, err)
	require.Empty(t, applied, "second run should apply nothing")
}

func TestIntegrationMigration_RollbackPhotos(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	down, err := MigrationSQL("000003_photos", "down")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, down)
	require.NoError(t, err)

	exists, err := tableExists(ctx, pool, "photos")
	require.NoError(t, err)
	require.False(t, exists, "photos table should not exist after rollback")

	up, err := MigrationSQL("000003_photos", "up")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, up)
	require.NoError(t, err)
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	pool := testutil.StartPostgres(t)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unlock()
	})

	_, err = NewWithPool(pool).Migrate(ctx)
	require.NoError(t, err)

	return ctx, pool
}
