//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyvox/tallyvox/internal/model"
	"github.com/tallyvox/tallyvox/internal/testutil"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	for _, table := range []string{"profiles", "voucher_templates", "voucher_usages"} {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_VoucherTemplatesSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"tenant_id",
		"name",
		"code_prefix",
		"is_active",
		"usage_limit",
		"current_usage",
		"notify_on_limit",
		"notify_email",
		"expiration_days",
		"created_at",
		"updated_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "voucher_templates", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in voucher_templates table", col)
			}
		})
	}
}

func TestIntegrationMigration_UsageWithinLimitConstraint(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	id := testutil.UniqueID("tmpl")
	_, err := pool.Exec(ctx, `
		INSERT INTO voucher_templates (id, tenant_id, usage_limit, current_usage)
		VALUES ($1, 'tenant-a', 1, 2)
	`, id)
	if err == nil {
		t.Error("Expected check constraint violation for current_usage > usage_limit")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO voucher_templates (id, tenant_id, current_usage)
		VALUES ($1, 'tenant-a', -1)
	`, id)
	if err == nil {
		t.Error("Expected check constraint violation for negative current_usage")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO voucher_templates (id, tenant_id, usage_limit, current_usage)
		VALUES ($1, 'tenant-a', 1, 1)
	`, id)
	if err != nil {
		t.Fatalf("usage equal to limit should be accepted: %v", err)
	}

	_, err = pool.Exec(ctx, `UPDATE voucher_templates SET current_usage = current_usage + 1 WHERE id = $1`, id)
	if err == nil {
		t.Error("Expected check constraint violation when incrementing past the limit")
	}
}

func TestIntegrationMigration_ExpirationDaysBound(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	_, err := pool.Exec(ctx, `
		INSERT INTO voucher_templates (id, tenant_id, expiration_days)
		VALUES ($1, 'tenant-a', $2)
	`, testutil.UniqueID("tmpl"), model.MaxExpirationDays+1)
	if err == nil {
		t.Error("Expected check constraint violation for expiration_days above the maximum")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO voucher_templates (id, tenant_id, expiration_days)
		VALUES ($1, 'tenant-a', $2)
	`, testutil.UniqueID("tmpl"), model.MaxExpirationDays)
	if err != nil {
		t.Fatalf("expiration_days at the maximum should be accepted: %v", err)
	}
}

func TestIntegrationMigration_GeneratedCodeUnique(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	tmplID := testutil.UniqueID("tmpl")
	if _, err := pool.Exec(ctx, `INSERT INTO voucher_templates (id, tenant_id) VALUES ($1, 'tenant-a')`, tmplID); err != nil {
		t.Fatalf("insert template: %v", err)
	}

	insert := `
		INSERT INTO voucher_usages (id, voucher_id, tenant_id, generated_code, expiration_date)
		VALUES ($1, $2, 'tenant-a', 'THX-ABCDEFGHJK', NOW())
	`
	if _, err := pool.Exec(ctx, insert, testutil.UniqueID("usage"), tmplID); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := pool.Exec(ctx, insert, testutil.UniqueID("usage"), tmplID); err == nil {
		t.Error("Expected unique violation for duplicate generated_code")
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, _ := newMigrationTestEnv(t)
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	if err := Migrate(ctx, dbURL); err != nil {
		t.Fatalf("second Migrate should be a no-op: %v", err)
	}
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
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := ResetSchema(ctx, dbURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool
}
