package model

import "time"

// VoucherState is the issuance state of a template.
type VoucherState string

const (
	VoucherStateOpen      VoucherState = "open"
	VoucherStateExhausted VoucherState = "exhausted"
	VoucherStateInactive  VoucherState = "inactive"
)

const (
	// DefaultCodePrefix is used when a template has no code prefix configured.
	DefaultCodePrefix = "VCH"
	// MaxExpirationDays bounds expiration_days; the column carries the same CHECK.
	MaxExpirationDays = 36500
)

// VoucherTemplate is a reward definition that vouchers are issued from.
type VoucherTemplate struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Name           string    `json:"name"`
	CodePrefix     string    `json:"code_prefix,omitempty"`
	IsActive       bool      `json:"is_active"`
	UsageLimit     *int      `json:"usage_limit"`
	CurrentUsage   int       `json:"current_usage"`
	NotifyOnLimit  bool      `json:"notify_on_limit"`
	NotifyEmail    *string   `json:"notify_email,omitempty"`
	ExpirationDays int       `json:"expiration_days"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsLimited reports whether the template has a usage ceiling.
func (t *VoucherTemplate) IsLimited() bool {
	return t.UsageLimit != nil
}

// IsExhausted reports whether the usage ceiling has been reached.
func (t *VoucherTemplate) IsExhausted() bool {
	return t.UsageLimit != nil && t.CurrentUsage >= *t.UsageLimit
}

// State returns the computed issuance state.
func (t *VoucherTemplate) State() VoucherState {
	switch {
	case !t.IsActive:
		return VoucherStateInactive
	case t.IsExhausted():
		return VoucherStateExhausted
	default:
		return VoucherStateOpen
	}
}

// Remaining returns how many vouchers can still be issued, or -1 when unlimited.
func (t *VoucherTemplate) Remaining() int {
	if t.UsageLimit == nil {
		return -1
	}
	if r := *t.UsageLimit - t.CurrentUsage; r > 0 {
		return r
	}
	return 0
}

// Prefix returns the code prefix, falling back to DefaultCodePrefix.
func (t *VoucherTemplate) Prefix() string {
	if t.CodePrefix == "" {
		return DefaultCodePrefix
	}
	return t.CodePrefix
}

// ExpirationFrom returns the expiration date for a voucher issued at the given
// time. Calendar days are added, which equals days*24h for UTC instants.
func (t *VoucherTemplate) ExpirationFrom(issuedAt time.Time) time.Time {
	return issuedAt.AddDate(0, 0, t.ExpirationDays)
}

// VoucherUsage is a concrete, coded voucher issued from a template.
type VoucherUsage struct {
	ID               string    `json:"id"`
	VoucherID        string    `json:"voucher_id"`
	TenantID         string    `json:"tenant_id"`
	SurveyResponseID *string   `json:"survey_response_id,omitempty"`
	GeneratedCode    string    `json:"generated_code"`
	ExpirationDate   time.Time `json:"expiration_date"`
	CreatedAt        time.Time `json:"created_at"`
}
