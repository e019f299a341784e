// Package events publishes voucher domain events to RabbitMQ.
package events

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Routing keys. Each is also the name of the durable queue it is delivered to.
const (
	TypeVoucherIssued       = "voucher.issued"
	TypeVoucherLimitReached = "voucher.limit_reached"
)

// Envelope wraps every published payload.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// VoucherIssued is published after every successful issuance.
type VoucherIssued struct {
	UsageID          string    `json:"usage_id"`
	VoucherID        string    `json:"voucher_id"`
	TenantID         string    `json:"tenant_id"`
	SurveyResponseID *string   `json:"survey_response_id,omitempty"`
	GeneratedCode    string    `json:"generated_code"`
	ExpirationDate   time.Time `json:"expiration_date"`
	IssuedBy         string    `json:"issued_by"`
}

// VoucherLimitReached is published when an issuance fills the last slot.
type VoucherLimitReached struct {
	VoucherID  string `json:"voucher_id"`
	TenantID   string `json:"tenant_id"`
	Name       string `json:"name"`
	UsageLimit int    `json:"usage_limit"`
}

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
	Close() error
}

// NewEnvelope builds an envelope with a fresh ULID.
func NewEnvelope(eventType string, data any, now time.Time) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:       eventType,
		OccurredAt: now.UTC(),
		Data:       raw,
	}, nil
}

// NoopPublisher discards events. Used when AMQP is not configured.
type NoopPublisher struct{}

// NewNoop returns a Publisher that discards all events.
func NewNoop() Publisher {
	return NoopPublisher{}
}

// Publish is a no-op.
func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
