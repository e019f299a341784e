package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWTProvider_ValidateToken(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Unix()
	provider := NewJWTProvider(testSecret, "")

	t.Run("tenant claims", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub":   "user-1",
			"email": "a@example.com",
			"exp":   exp,
			"app_metadata": map[string]any{
				"tenant_id":      "tenant-a",
				"is_super_admin": true,
				"role":           "Admin",
			},
		})

		p, err := provider.ValidateToken(context.Background(), token)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if p.Subject != "user-1" || p.Email != "a@example.com" {
			t.Errorf("unexpected principal: %+v", p)
		}
		if !p.HasTenantClaims() || *p.TenantID != "tenant-a" {
			t.Errorf("TenantID = %v, want tenant-a", p.TenantID)
		}
		if p.IsSuperAdmin == nil || !*p.IsSuperAdmin {
			t.Error("expected IsSuperAdmin claim")
		}
		if p.Role != "Admin" {
			t.Errorf("Role = %q, want Admin", p.Role)
		}
	})

	t.Run("no tenant claims", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, testSecret, jwt.MapClaims{"sub": "user-2", "exp": exp})

		p, err := provider.ValidateToken(context.Background(), token)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if p.HasTenantClaims() {
			t.Error("expected no tenant claims")
		}
	})

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{"sub": "u", "exp": exp})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"missing exp", signToken(t, testSecret, jwt.MapClaims{"sub": "u"})},
		{"missing subject", signToken(t, testSecret, jwt.MapClaims{"exp": exp})},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := provider.ValidateToken(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestJWTProvider_Issuer(t *testing.T) {
	t.Parallel()

	provider := NewJWTProvider(testSecret, "https://id.example.com/auth/v1")
	exp := time.Now().Add(time.Hour).Unix()

	good := signToken(t, testSecret, jwt.MapClaims{"sub": "u", "exp": exp, "iss": "https://id.example.com/auth/v1"})
	if _, err := provider.ValidateToken(context.Background(), good); err != nil {
		t.Errorf("expected matching issuer to validate, got %v", err)
	}

	bad := signToken(t, testSecret, jwt.MapClaims{"sub": "u", "exp": exp, "iss": "https://evil.example.com"})
	if _, err := provider.ValidateToken(context.Background(), bad); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestHTTPProvider_ValidateToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"user-9","email":"n@example.com","app_metadata":{"tenant_id":"tenant-z"}}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL+"/", "anon-key", 2*time.Second)

	p, err := provider.ValidateToken(context.Background(), "good")
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if p.Subject != "user-9" || p.TenantID == nil || *p.TenantID != "tenant-z" {
		t.Errorf("unexpected principal: %+v", p)
	}

	if _, err := provider.ValidateToken(context.Background(), "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	_, err = provider.ValidateToken(context.Background(), "broken")
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected upstream error, got %v", err)
	}
}
