package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tallyvox/tallyvox/internal/model"
)

// GetProfile retrieves a profile by ID.
// Restricted access only returns the caller's own profile.
func (r *Repository) GetProfile(ctx context.Context, access Access, id string) (*model.Profile, error) {
	query := `
		SELECT id, email, tenant_id, is_super_admin, role, created_at
		FROM profiles
		WHERE id = $1`
	query, args := access.scopeOwner(query, "id", []any{id})

	var p model.Profile
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Email,
		&p.TenantID,
		&p.IsSuperAdmin,
		&p.Role,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// UpsertProfile inserts or updates a profile.
func (r *Repository) UpsertProfile(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO profiles (id, email, tenant_id, is_super_admin, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    tenant_id = EXCLUDED.tenant_id,
		    is_super_admin = EXCLUDED.is_super_admin,
		    role = EXCLUDED.role
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Email,
		p.TenantID,
		p.IsSuperAdmin,
		p.Role,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}
