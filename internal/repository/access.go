package repository

import (
	"fmt"
	"strconv"
)

// Access selects the row-level restriction applied to a store call.
//
// Restricted access only sees rows owned by the caller: tenant-owned rows
// must match TenantID and user-owned rows must match UserID. Privileged
// access bypasses both filters.
type Access struct {
	Privileged bool
	TenantID   string
	UserID     string
}

// Privileged returns unrestricted access.
func Privileged() Access {
	return Access{Privileged: true}
}

// Restricted returns caller-scoped access.
func Restricted(tenantID, userID string) Access {
	return Access{TenantID: tenantID, UserID: userID}
}

// String is used in log attributes.
func (a Access) String() string {
	if a.Privileged {
		return "privileged"
	}
	return fmt.Sprintf("restricted(tenant=%s,user=%s)", a.TenantID, a.UserID)
}

// scopeTenant appends a tenant predicate for restricted access.
func (a Access) scopeTenant(query string, args []any) (string, []any) {
	if a.Privileged {
		return query, args
	}
	args = append(args, a.TenantID)
	return query + " AND tenant_id = $" + strconv.Itoa(len(args)), args
}

// scopeOwner appends an ownership predicate on column for restricted access.
func (a Access) scopeOwner(query, column string, args []any) (string, []any) {
	if a.Privileged {
		return query, args
	}
	args = append(args, a.UserID)
	return query + " AND " + column + " = $" + strconv.Itoa(len(args)), args
}
