package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tallyvox/tallyvox/internal/model"
)

// IdentityProvider validates a bearer token and returns its principal.
type IdentityProvider interface {
	ValidateToken(ctx context.Context, token string) (*model.Principal, error)
}

// appMetadata carries the server-controlled claims an identity provider
// attaches to a user.
type appMetadata struct {
	TenantID     *string `json:"tenant_id,omitempty"`
	IsSuperAdmin *bool   `json:"is_super_admin,omitempty"`
	Role         string  `json:"role,omitempty"`
}

func (m appMetadata) principal(subject, email string) *model.Principal {
	p := &model.Principal{
		Subject:      subject,
		Email:        email,
		IsSuperAdmin: m.IsSuperAdmin,
		Role:         m.Role,
	}
	if m.TenantID != nil && *m.TenantID != "" {
		tenant := *m.TenantID
		p.TenantID = &tenant
	}
	return p
}

// tokenClaims is the JWT body issued by the identity provider.
type tokenClaims struct {
	Email       string      `json:"email"`
	AppMetadata appMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// JWTProvider verifies HS256 tokens locally with a shared secret.
type JWTProvider struct {
	secret []byte
	issuer string
}

// NewJWTProvider creates a provider that verifies tokens signed with secret.
// When issuer is non-empty the iss claim must match it.
func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses and verifies the token.
func (p *JWTProvider) ValidateToken(_ context.Context, token string) (*model.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims.AppMetadata.principal(claims.Subject, claims.Email), nil
}

// HTTPProvider validates tokens against a remote identity service's
// user endpoint.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPProviderOption configures an HTTPProvider.
type HTTPProviderOption func(*HTTPProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPProviderOption {
	return func(p *HTTPProvider) {
		p.httpClient = c
	}
}

// NewHTTPProvider creates a provider that calls {baseURL}/auth/v1/user.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, opts ...HTTPProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type remoteUser struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	AppMetadata appMetadata `json:"app_metadata"`
}

// ValidateToken asks the remote service who the token belongs to.
func (p *HTTPProvider) ValidateToken(ctx context.Context, token string) (*model.Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", bearerPrefix+token)
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var user remoteUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}

	return user.AppMetadata.principal(user.ID, user.Email), nil
}
