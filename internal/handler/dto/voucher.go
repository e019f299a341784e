// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/tallyvox/tallyvox/internal/model"
)

// MaxIdentifierLength bounds voucher and survey response identifiers.
const MaxIdentifierLength = 128

// Request decoding errors.
var (
	ErrInvalidBody       = errors.New("invalid request body")
	ErrIdentifierTooLong = errors.New("identifier exceeds maximum length")
	ErrIdentifierInvalid = errors.New("identifier contains invalid characters")
)

// validIdentifierPattern matches ULIDs, UUIDs and other opaque ids.
var validIdentifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// ValidateIdentifier checks an opaque identifier. Empty is valid; callers
// decide whether the field is required.
func ValidateIdentifier(id string) error {
	if id == "" {
		return nil
	}
	if len(id) > MaxIdentifierLength {
		return ErrIdentifierTooLong
	}
	if !validIdentifierPattern.MatchString(id) {
		return ErrIdentifierInvalid
	}
	return nil
}

// GenerateVoucherRequest is the body of action=generate.
type GenerateVoucherRequest struct {
	VoucherID        string  `json:"voucher_id"`
	SurveyResponseID *string `json:"survey_response_id"`
}

// ParseGenerateVoucherRequest decodes the body, which may be a JSON object
// or a JSON string containing the object. Unknown fields and trailing data
// are rejected.
func ParseGenerateVoucherRequest(body []byte) (*GenerateVoucherRequest, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrInvalidBody
	}

	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		body = bytes.TrimSpace([]byte(inner))
		if len(body) == 0 || body[0] != '{' {
			return nil, ErrInvalidBody
		}
	}
	if body[0] != '{' {
		return nil, ErrInvalidBody
	}

	var req GenerateVoucherRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidBody)
	}

	req.VoucherID = strings.TrimSpace(req.VoucherID)
	if req.SurveyResponseID != nil {
		id := strings.TrimSpace(*req.SurveyResponseID)
		if id == "" {
			req.SurveyResponseID = nil
		} else {
			req.SurveyResponseID = &id
		}
	}

	if err := ValidateIdentifier(req.VoucherID); err != nil {
		return nil, fmt.Errorf("voucher_id: %w", err)
	}
	if req.SurveyResponseID != nil {
		if err := ValidateIdentifier(*req.SurveyResponseID); err != nil {
			return nil, fmt.Errorf("survey_response_id: %w", err)
		}
	}

	return &req, nil
}

// VoucherUsageResponse represents an issued voucher in API responses.
type VoucherUsageResponse struct {
	ID               string    `json:"id"`
	VoucherID        string    `json:"voucher_id"`
	SurveyResponseID *string   `json:"survey_response_id,omitempty"`
	GeneratedCode    string    `json:"generated_code"`
	ExpirationDate   time.Time `json:"expiration_date"`
	CreatedAt        time.Time `json:"created_at"`
}

// VoucherTemplateResponse represents a template in API responses.
type VoucherTemplateResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CodePrefix     string    `json:"code_prefix"`
	IsActive       bool      `json:"is_active"`
	State          string    `json:"state"`
	UsageLimit     *int      `json:"usage_limit"`
	CurrentUsage   int       `json:"current_usage"`
	Remaining      *int      `json:"remaining"`
	ExpirationDays int       `json:"expiration_days"`
	NotifyOnLimit  bool      `json:"notify_on_limit"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GetVoucherResponse is the payload of action=get.
type GetVoucherResponse struct {
	Voucher *VoucherTemplateResponse `json:"voucher"`
}

// VoucherUsageListResponse is the payload of action=usages.
type VoucherUsageListResponse struct {
	Usages []VoucherUsageResponse `json:"usages"`
	Count  int                    `json:"count"`
}

// ToVoucherUsageResponse converts a VoucherUsage model to its DTO.
func ToVoucherUsageResponse(u *model.VoucherUsage) VoucherUsageResponse {
	return VoucherUsageResponse{
		ID:               u.ID,
		VoucherID:        u.VoucherID,
		SurveyResponseID: u.SurveyResponseID,
		GeneratedCode:    u.GeneratedCode,
		ExpirationDate:   u.ExpirationDate,
		CreatedAt:        u.CreatedAt,
	}
}

// ToVoucherTemplateResponse converts a VoucherTemplate model to its DTO.
func ToVoucherTemplateResponse(t *model.VoucherTemplate) *VoucherTemplateResponse {
	resp := &VoucherTemplateResponse{
		ID:             t.ID,
		Name:           t.Name,
		CodePrefix:     t.Prefix(),
		IsActive:       t.IsActive,
		State:          string(t.State()),
		UsageLimit:     t.UsageLimit,
		CurrentUsage:   t.CurrentUsage,
		ExpirationDays: t.ExpirationDays,
		NotifyOnLimit:  t.NotifyOnLimit,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.IsLimited() {
		remaining := t.Remaining()
		resp.Remaining = &remaining
	}
	return resp
}

// ToVoucherUsageListResponse converts a slice of usages.
func ToVoucherUsageListResponse(usages []*model.VoucherUsage) VoucherUsageListResponse {
	out := make([]VoucherUsageResponse, 0, len(usages))
	for _, u := range usages {
		out = append(out, ToVoucherUsageResponse(u))
	}
	return VoucherUsageListResponse{Usages: out, Count: len(out)}
}
