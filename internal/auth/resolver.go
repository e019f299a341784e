package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tallyvox/tallyvox/internal/metrics"
	"github.com/tallyvox/tallyvox/internal/model"
	"github.com/tallyvox/tallyvox/internal/repository"
)

// ProfileStore looks up stored profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, access repository.Access, id string) (*model.Profile, error)
}

// ProfileCache caches profiles in front of the store.
// GetProfile returns nil, nil on a cache miss.
type ProfileCache interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	SetProfile(ctx context.Context, profile *model.Profile) error
}

// ResolverConfig holds the dependencies of a Resolver.
type ResolverConfig struct {
	Provider IdentityProvider
	Profiles ProfileStore
	Cache    ProfileCache // optional
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

// Resolver turns an Authorization header into an AuthenticatedUser.
type Resolver struct {
	provider IdentityProvider
	profiles ProfileStore
	cache    ProfileCache
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Resolver{
		provider: cfg.Provider,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		logger:   logger,
		metrics:  recorder,
	}
}

// Resolve validates the bearer credential and builds the request's user.
// Every failure is returned as *AuthError.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*model.AuthenticatedUser, error) {
	token, ok := ExtractBearer(authorization)
	if !ok {
		r.metrics.IncAuthFailed(string(MissingCredential))
		return nil, &AuthError{Kind: MissingCredential, Reason: ReasonNoBearer}
	}

	if r.provider == nil {
		r.logger.Error("identity provider not configured",
			slog.String("token_fingerprint", Fingerprint(token)),
		)
		r.metrics.IncAuthFailed(string(Unauthorized))
		return nil, &AuthError{Kind: Unauthorized, Reason: ReasonProviderNotConfig}
	}

	principal, err := r.provider.ValidateToken(ctx, token)
	if err != nil || principal == nil || principal.Subject == "" {
		attrs := []any{slog.String("token_fingerprint", Fingerprint(token))}
		reason := ReasonNoSubject
		if err != nil {
			reason = ReasonTokenRejected
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		r.logger.Warn("token validation failed", attrs...)
		r.metrics.IncAuthFailed(string(InvalidCredential))
		return nil, &AuthError{Kind: InvalidCredential, Reason: reason}
	}

	if principal.HasTenantClaims() {
		r.metrics.IncAuthResolved(string(model.SourceClaims))
		return userFromClaims(principal, token), nil
	}

	user := &model.AuthenticatedUser{
		ID:          principal.Subject,
		Email:       principal.Email,
		Role:        principal.Role,
		AccessToken: token,
		Source:      model.SourceProfile,
	}

	profile := r.lookupProfile(ctx, principal.Subject)
	if profile != nil {
		mergeProfile(user, profile)
	}

	r.metrics.IncAuthResolved(string(model.SourceProfile))
	return user, nil
}

func userFromClaims(p *model.Principal, token string) *model.AuthenticatedUser {
	tenant := *p.TenantID
	user := &model.AuthenticatedUser{
		ID:          p.Subject,
		Email:       p.Email,
		TenantID:    &tenant,
		Role:        p.Role,
		AccessToken: token,
		Source:      model.SourceClaims,
	}
	if p.IsSuperAdmin != nil {
		user.IsSuperAdmin = *p.IsSuperAdmin
	}
	return user
}

// mergeProfile copies stored profile fields over the principal defaults.
func mergeProfile(user *model.AuthenticatedUser, profile *model.Profile) {
	if profile.TenantID != nil && *profile.TenantID != "" {
		tenant := *profile.TenantID
		user.TenantID = &tenant
	}
	user.IsSuperAdmin = profile.IsSuperAdmin
	if profile.Role != "" {
		user.Role = profile.Role
	}
	if profile.Email != "" {
		user.Email = profile.Email
	}
}

// lookupProfile reads the caller's own profile. Failures are logged and
// reported as a nil profile.
func (r *Resolver) lookupProfile(ctx context.Context, subject string) *model.Profile {
	if r.cache != nil {
		cached, err := r.cache.GetProfile(ctx, subject)
		if err != nil {
			r.logger.Warn("profile cache read failed",
				slog.String("user_id", subject),
				slog.String("error", err.Error()),
			)
		}
		if cached != nil {
			r.metrics.IncProfileCacheHit()
			return cached
		}
		r.metrics.IncProfileCacheMiss()
	}

	if r.profiles == nil {
		return nil
	}

	profile, err := r.profiles.GetProfile(ctx, repository.Restricted("", subject), subject)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			r.logger.Error("profile lookup failed",
				slog.String("user_id", subject),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	if r.cache != nil {
		if err := r.cache.SetProfile(ctx, profile); err != nil {
			r.logger.Warn("profile cache write failed",
				slog.String("user_id", subject),
				slog.String("error", err.Error()),
			)
		}
	}
	return profile
}
