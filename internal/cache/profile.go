package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tallyvox/tallyvox/internal/model"
)

const (
	// profileCachePrefix is the Redis key prefix for resolved profiles.
	profileCachePrefix = "auth:profile:"
	// defaultProfileTTL is the time-to-live for cached profiles.
	defaultProfileTTL = 5 * time.Minute
)

// CachedProfile represents a profile stored in Redis.
type CachedProfile struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	TenantID     *string `json:"tenant_id,omitempty"`
	IsSuperAdmin bool    `json:"is_super_admin"`
	Role         string  `json:"role"`
}

func profileKey(id string) string {
	return profileCachePrefix + id
}

// GetProfile retrieves a cached profile by user ID.
// Returns nil if not found (cache miss).
func (c *Cache) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	data, err := c.client.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var cached CachedProfile
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.Profile{
		ID:           cached.ID,
		Email:        cached.Email,
		TenantID:     cached.TenantID,
		IsSuperAdmin: cached.IsSuperAdmin,
		Role:         cached.Role,
	}, nil
}

// SetProfile caches a profile.
func (c *Cache) SetProfile(ctx context.Context, p *model.Profile) error {
	data, err := json.Marshal(CachedProfile{
		ID:           p.ID,
		Email:        p.Email,
		TenantID:     p.TenantID,
		IsSuperAdmin: p.IsSuperAdmin,
		Role:         p.Role,
	})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	return c.client.Set(ctx, profileKey(p.ID), data, c.profileTTL).Err()
}
