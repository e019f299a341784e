package auth

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const bearerPrefix = "Bearer "

// ExtractBearer returns the token from an Authorization header value.
// It reports false when the header is missing, has another scheme, or
// carries an empty token.
func ExtractBearer(authorization string) (string, bool) {
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// Fingerprint returns a short, non-reversible identifier for a token so
// failures can be correlated in logs without recording the credential.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
