package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/tallyvox/tallyvox/internal/model"
)

const voucherTemplateColumns = `id, tenant_id, name, code_prefix, is_active, usage_limit, current_usage,
	notify_on_limit, notify_email, expiration_days, created_at, updated_at`

const voucherUsageColumns = `id, voucher_id, tenant_id, survey_response_id, generated_code,
	expiration_date, created_at`

// CreateVoucherTemplate inserts a new voucher template.
func (r *Repository) CreateVoucherTemplate(ctx context.Context, t *model.VoucherTemplate) error {
	query := `
		INSERT INTO voucher_templates (` + voucherTemplateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.TenantID,
		t.Name,
		t.CodePrefix,
		t.IsActive,
		t.UsageLimit,
		t.CurrentUsage,
		t.NotifyOnLimit,
		t.NotifyEmail,
		t.ExpirationDays,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create voucher template: %w", err)
	}

	return nil
}

// GetVoucherTemplate retrieves a voucher template by ID.
// Restricted access only returns templates of the caller's tenant.
func (r *Repository) GetVoucherTemplate(ctx context.Context, access Access, id string) (*model.VoucherTemplate, error) {
	query := `SELECT ` + voucherTemplateColumns + ` FROM voucher_templates WHERE id = $1`
	query, args := access.scopeTenant(query, []any{id})

	var t model.VoucherTemplate
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.TenantID,
		&t.Name,
		&t.CodePrefix,
		&t.IsActive,
		&t.UsageLimit,
		&t.CurrentUsage,
		&t.NotifyOnLimit,
		&t.NotifyEmail,
		&t.ExpirationDays,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get voucher template: %w", err)
	}

	return &t, nil
}

// IncrementVoucherUsage atomically advances current_usage by one if the
// template is still below its usage limit, returning the new value.
// When the guard matches no row, ErrUsageLimitReached is returned.
func (r *Repository) IncrementVoucherUsage(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE voucher_templates
		SET current_usage = current_usage + 1, updated_at = NOW()
		WHERE id = $1
		  AND (usage_limit IS NULL OR current_usage < usage_limit)
		RETURNING current_usage
	`

	var usage int
	err := r.pool.QueryRow(ctx, query, id).Scan(&usage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isCheckViolation(err) {
			return 0, ErrUsageLimitReached
		}
		return 0, fmt.Errorf("failed to increment voucher usage: %w", err)
	}

	return usage, nil
}

// CreateVoucherUsage inserts an issued voucher.
func (r *Repository) CreateVoucherUsage(ctx context.Context, u *model.VoucherUsage) error {
	query := `
		INSERT INTO voucher_usages (` + voucherUsageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.VoucherID,
		u.TenantID,
		u.SurveyResponseID,
		u.GeneratedCode,
		u.ExpirationDate,
		u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrVoucherCodeExists
		}
		return fmt.Errorf("failed to create voucher usage: %w", err)
	}

	return nil
}

// DeleteVoucherUsage removes an issued voucher. Only used to undo an
// insert whose counter increment lost the race.
func (r *Repository) DeleteVoucherUsage(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM voucher_usages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete voucher usage: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrVoucherUsageNotFound
	}

	return nil
}

// ListVoucherUsages lists issued vouchers for a template, newest first.
func (r *Repository) ListVoucherUsages(ctx context.Context, access Access, voucherID string, limit int) ([]*model.VoucherUsage, error) {
	query := `SELECT ` + voucherUsageColumns + ` FROM voucher_usages WHERE voucher_id = $1`
	query, args := access.scopeTenant(query, []any{voucherID})
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list voucher usages: %w", err)
	}
	defer rows.Close()

	usages := make([]*model.VoucherUsage, 0)
	for rows.Next() {
		var u model.VoucherUsage
		if err := rows.Scan(
			&u.ID,
			&u.VoucherID,
			&u.TenantID,
			&u.SurveyResponseID,
			&u.GeneratedCode,
			&u.ExpirationDate,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan voucher usage: %w", err)
		}
		usages = append(usages, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating voucher usages: %w", err)
	}

	return usages, nil
}
