package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher_Publish(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	for i := 0; i < 2; i++ {
		err := p.Publish(context.Background(), TypeVoucherIssued, VoucherIssued{
			UsageID:       "usage-1",
			VoucherID:     "tmpl-1",
			TenantID:      "tenant-a",
			GeneratedCode: "THX-ABCDEFGHJK",
		})
		if err != nil {
			t.Fatalf("Publish #%d failed: %v", i, err)
		}
	}

	if len(ch.declared) != 1 || ch.declared[0] != TypeVoucherIssued {
		t.Errorf("queue should be declared once, got %v", ch.declared)
	}
	if len(ch.published) != 2 || ch.keys[0] != TypeVoucherIssued {
		t.Fatalf("unexpected publishes: %v", ch.keys)
	}

	msg := ch.published[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing properties: %+v", msg)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != TypeVoucherIssued || env.ID != msg.MessageId || !env.OccurredAt.Equal(fixed) {
		t.Errorf("unexpected envelope: %+v", env)
	}

	var data VoucherIssued
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.GeneratedCode != "THX-ABCDEFGHJK" {
		t.Errorf("GeneratedCode = %q", data.GeneratedCode)
	}
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p := newAMQPPublisher(ch, nil)

	err := p.Publish(context.Background(), TypeVoucherLimitReached, VoucherLimitReached{VoucherID: "tmpl-1"})
	if err == nil {
		t.Fatal("expected publish error")
	}

	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !ch.closed {
		t.Error("expected channel to be closed")
	}
}

func TestNewEnvelope_UniqueIDs(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a, err := NewEnvelope(TypeVoucherIssued, map[string]string{"k": "v"}, now)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	b, _ := NewEnvelope(TypeVoucherIssued, map[string]string{"k": "v"}, now)
	if a.ID == b.ID {
		t.Error("expected distinct envelope IDs")
	}

	if _, err := NewEnvelope(TypeVoucherIssued, make(chan int), now); err == nil {
		t.Error("expected marshal error for unsupported payload")
	}
}

func TestNoopPublisher(t *testing.T) {
	t.Parallel()

	p := NewNoop()
	if err := p.Publish(context.Background(), TypeVoucherIssued, nil); err != nil {
		t.Errorf("Publish = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
