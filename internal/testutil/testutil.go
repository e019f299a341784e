package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tallyvox/tallyvox/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to v.
func StrPtr(v string) *string { return &v }

// NewTestTemplate creates an active, unlimited voucher template.
func NewTestTemplate(t testing.TB, tenantID string) *model.VoucherTemplate {
	t.Helper()
	now := time.Now().UTC()
	return &model.VoucherTemplate{
		ID:             UniqueID("tmpl"),
		TenantID:       tenantID,
		Name:           "Thank-you reward",
		CodePrefix:     "THX",
		IsActive:       true,
		ExpirationDays: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewTestTemplateWithLimit creates a template with a usage ceiling.
func NewTestTemplateWithLimit(t testing.TB, tenantID string, limit, current int) *model.VoucherTemplate {
	t.Helper()
	tmpl := NewTestTemplate(t, tenantID)
	tmpl.UsageLimit = IntPtr(limit)
	tmpl.CurrentUsage = current
	return tmpl
}

// NewTestProfile creates a profile attached to a tenant.
func NewTestProfile(t testing.TB, tenantID, role string) *model.Profile {
	t.Helper()
	p := &model.Profile{
		ID:        UniqueID("user"),
		Email:     "member@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if tenantID != "" {
		p.TenantID = StrPtr(tenantID)
	}
	return p
}

// NewTestUser creates an authenticated user for a tenant.
func NewTestUser(t testing.TB, tenantID, role string) *model.AuthenticatedUser {
	t.Helper()
	u := &model.AuthenticatedUser{
		ID:     UniqueID("user"),
		Email:  "staff@example.com",
		Role:   role,
		Source: model.SourceClaims,
	}
	if tenantID != "" {
		u.TenantID = StrPtr(tenantID)
	}
	return u
}

var idSeq atomic.Uint64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idSeq.Add(1))
}
