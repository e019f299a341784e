package auth

import (
	"net/http"
	"strings"

	"github.com/tallyvox/tallyvox/internal/model"
	"github.com/tallyvox/tallyvox/internal/response"
)

// Permission suffixes understood by the Evaluator.
const (
	SuffixView   = ".view"
	SuffixManage = ".manage"
)

// Evaluator decides whether a user may perform a named permission.
type Evaluator struct {
	defaultAllow bool
}

// NewEvaluator creates an Evaluator. defaultAllow governs permissions with
// an unrecognized suffix.
func NewEvaluator(defaultAllow bool) *Evaluator {
	return &Evaluator{defaultAllow: defaultAllow}
}

// Decide returns the HTTP status for a denial, or 0 when allowed.
func (e *Evaluator) Decide(user *model.AuthenticatedUser, permission string) int {
	if user == nil {
		return http.StatusUnauthorized
	}
	if user.IsSuperAdmin {
		return 0
	}

	p := strings.ToLower(strings.TrimSpace(permission))
	switch {
	case strings.HasSuffix(p, SuffixView):
		return 0
	case strings.HasSuffix(p, SuffixManage):
		if user.HasRole(model.ManagerRoles...) {
			return 0
		}
		return http.StatusForbidden
	case e.defaultAllow:
		return 0
	default:
		return http.StatusForbidden
	}
}

// Allow reports whether user holds permission. On denial it writes the
// 401 or 403 envelope to w and the caller must stop handling the request.
func (e *Evaluator) Allow(w http.ResponseWriter, user *model.AuthenticatedUser, permission string) bool {
	switch e.Decide(user, permission) {
	case 0:
		return true
	case http.StatusUnauthorized:
		response.WriteError(w, http.StatusUnauthorized, response.MsgUnauthorized)
	default:
		response.WriteError(w, http.StatusForbidden, response.MsgForbidden)
	}
	return false
}
