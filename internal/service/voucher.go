package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tallyvox/tallyvox/internal/email"
	"github.com/tallyvox/tallyvox/internal/events"
	"github.com/tallyvox/tallyvox/internal/metrics"
	"github.com/tallyvox/tallyvox/internal/model"
	"github.com/tallyvox/tallyvox/internal/repository"
)

// Voucher service errors.
var (
	ErrValidation          = errors.New("voucher_id is required")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTenantRequired      = errors.New("user is not assigned to a tenant")
	ErrVoucherNotFound     = errors.New("voucher not found")
	ErrVoucherInactive     = errors.New("voucher is not active")
	ErrVoucherLimitReached = errors.New("voucher usage limit reached")
)

const (
	defaultUsageListLimit = 50
	maxUsageListLimit     = 200
	notifyTimeout         = 10 * time.Second
)

var tracer = otel.Tracer("github.com/tallyvox/tallyvox/internal/service")

// VoucherStore is the persistence the voucher service depends on.
type VoucherStore interface {
	GetVoucherTemplate(ctx context.Context, access repository.Access, id string) (*model.VoucherTemplate, error)
	CreateVoucherUsage(ctx context.Context, u *model.VoucherUsage) error
	IncrementVoucherUsage(ctx context.Context, id string) (int, error)
	DeleteVoucherUsage(ctx context.Context, id string) error
	ListVoucherUsages(ctx context.Context, access repository.Access, voucherID string, limit int) ([]*model.VoucherUsage, error)
}

// Notifier sends best-effort email.
type Notifier interface {
	Send(ctx context.Context, msg email.Message) (email.Result, error)
}

// VoucherServiceConfig holds the dependencies of a VoucherService.
type VoucherServiceConfig struct {
	Store    VoucherStore
	Notifier Notifier         // optional
	Events   events.Publisher // optional
	Logger   *slog.Logger
	Metrics  metrics.Recorder
	Now      func() time.Time // optional, defaults to time.Now
}

// VoucherService issues vouchers from templates.
type VoucherService struct {
	store    VoucherStore
	notifier Notifier
	events   events.Publisher
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewVoucherService creates a new VoucherService.
func NewVoucherService(cfg VoucherServiceConfig) *VoucherService {
	s := &VoucherService{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		events:   cfg.Events,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
	if s.events == nil {
		s.events = events.NewNoop()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// IssueVoucherInput defines input for issuing a voucher.
type IssueVoucherInput struct {
	TemplateID       string
	SurveyResponseID *string
	User             *model.AuthenticatedUser
}

// Issue converts a template into a uniquely coded voucher usage.
func (s *VoucherService) Issue(ctx context.Context, input IssueVoucherInput) (*model.VoucherUsage, error) {
	ctx, span := tracer.Start(ctx, "VoucherService.Issue")
	defer span.End()
	span.SetAttributes(attribute.String("voucher.id", input.TemplateID))

	usage, err := s.issue(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("voucher.usage_id", usage.ID))
	return usage, nil
}

func (s *VoucherService) issue(ctx context.Context, input IssueVoucherInput) (*model.VoucherUsage, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveIssueDuration(time.Since(start))
	}()

	templateID := strings.TrimSpace(input.TemplateID)
	if templateID == "" {
		return nil, ErrValidation
	}

	access, err := templateAccess(input.User)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.loadTemplate(ctx, access, templateID)
	if err != nil {
		return nil, err
	}

	switch tmpl.State() {
	case model.VoucherStateInactive:
		s.metrics.IncVoucherRejected("inactive")
		return nil, ErrVoucherInactive
	case model.VoucherStateExhausted:
		s.metrics.IncVoucherRejected("limit_reached")
		return nil, ErrVoucherLimitReached
	}

	issuedAt := s.now().UTC()
	usage := &model.VoucherUsage{
		ID:               ulid.Make().String(),
		VoucherID:        tmpl.ID,
		TenantID:         tmpl.TenantID,
		SurveyResponseID: input.SurveyResponseID,
		ExpirationDate:   tmpl.ExpirationFrom(issuedAt),
		CreatedAt:        issuedAt,
	}

	if err := s.insertUsage(ctx, tmpl.Prefix(), usage); err != nil {
		return nil, err
	}

	newUsage, err := s.store.IncrementVoucherUsage(ctx, tmpl.ID)
	if err != nil {
		s.rollbackUsage(ctx, usage)
		if errors.Is(err, repository.ErrUsageLimitReached) {
			s.metrics.IncVoucherRaceLost()
			s.metrics.IncVoucherRejected("limit_reached")
			return nil, ErrVoucherLimitReached
		}
		return nil, fmt.Errorf("failed to increment voucher usage: %w", err)
	}
	tmpl.CurrentUsage = newUsage

	s.metrics.IncVoucherIssued()
	s.logger.Info("voucher issued",
		slog.String("usage_id", usage.ID),
		slog.String("voucher_id", tmpl.ID),
		slog.String("tenant_id", tmpl.TenantID),
		slog.String("user_id", input.User.ID),
		slog.Int("current_usage", newUsage),
	)

	s.publish(ctx, events.TypeVoucherIssued, events.VoucherIssued{
		UsageID:          usage.ID,
		VoucherID:        usage.VoucherID,
		TenantID:         usage.TenantID,
		SurveyResponseID: usage.SurveyResponseID,
		GeneratedCode:    usage.GeneratedCode,
		ExpirationDate:   usage.ExpirationDate,
		IssuedBy:         input.User.ID,
	})

	if tmpl.UsageLimit != nil && newUsage == *tmpl.UsageLimit {
		s.publish(ctx, events.TypeVoucherLimitReached, events.VoucherLimitReached{
			VoucherID:  tmpl.ID,
			TenantID:   tmpl.TenantID,
			Name:       tmpl.Name,
			UsageLimit: *tmpl.UsageLimit,
		})
		if tmpl.NotifyOnLimit {
			s.notifyLimitReached(ctx, tmpl, input.User)
		}
	}

	return usage, nil
}

// GetTemplate returns a template visible to the user.
func (s *VoucherService) GetTemplate(ctx context.Context, user *model.AuthenticatedUser, id string) (*model.VoucherTemplate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrValidation
	}
	access, err := templateAccess(user)
	if err != nil {
		return nil, err
	}
	return s.loadTemplate(ctx, access, id)
}

// ListUsages returns the most recent usages of a template visible to the user.
func (s *VoucherService) ListUsages(ctx context.Context, user *model.AuthenticatedUser, templateID string, limit int) ([]*model.VoucherUsage, error) {
	tmpl, err := s.GetTemplate(ctx, user, templateID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultUsageListLimit
	}
	if limit > maxUsageListLimit {
		limit = maxUsageListLimit
	}

	access, _ := templateAccess(user)
	usages, err := s.store.ListVoucherUsages(ctx, access, tmpl.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list voucher usages: %w", err)
	}
	return usages, nil
}

// templateAccess selects the store access mode for a user. Super admins
// read any tenant; everyone else is restricted to their own tenant.
func templateAccess(user *model.AuthenticatedUser) (repository.Access, error) {
	if user == nil {
		return repository.Access{}, ErrUnauthorized
	}
	if user.IsSuperAdmin {
		return repository.Privileged(), nil
	}
	if !user.HasTenant() {
		return repository.Access{}, ErrTenantRequired
	}
	return repository.Restricted(user.Tenant(), user.ID), nil
}

func (s *VoucherService) loadTemplate(ctx context.Context, access repository.Access, id string) (*model.VoucherTemplate, error) {
	tmpl, err := s.store.GetVoucherTemplate(ctx, access, id)
	if err != nil {
		if errors.Is(err, repository.ErrVoucherTemplateNotFound) {
			s.metrics.IncVoucherRejected("not_found")
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("failed to load voucher template: %w", err)
	}
	return tmpl, nil
}

// insertUsage assigns a fresh code and inserts the usage, regenerating the
// code on collision.
func (s *VoucherService) insertUsage(ctx context.Context, prefix string, usage *model.VoucherUsage) error {
	for i := 0; i < maxCodeRetries; i++ {
		code, err := generateVoucherCode(prefix)
		if err != nil {
			return fmt.Errorf("failed to generate voucher code: %w", err)
		}
		usage.GeneratedCode = code

		err = s.store.CreateVoucherUsage(ctx, usage)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVoucherCodeExists) {
			return fmt.Errorf("failed to create voucher usage: %w", err)
		}
		s.metrics.IncVoucherCodeCollision()
	}
	return errors.New("failed to generate unique voucher code after retries")
}

// rollbackUsage deletes a usage whose counter increment failed.
func (s *VoucherService) rollbackUsage(ctx context.Context, usage *model.VoucherUsage) {
	// The request context may already be cancelled; the delete must still run.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.DeleteVoucherUsage(ctx, usage.ID); err != nil {
		s.logger.Error("failed to roll back voucher usage",
			slog.String("usage_id", usage.ID),
			slog.String("voucher_id", usage.VoucherID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *VoucherService) publish(ctx context.Context, eventType string, data any) {
	if err := s.events.Publish(ctx, eventType, data); err != nil {
		s.metrics.IncEventPublished("dropped")
		s.logger.Warn("failed to publish event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.IncEventPublished("success")
}

func (s *VoucherService) notifyLimitReached(ctx context.Context, tmpl *model.VoucherTemplate, user *model.AuthenticatedUser) {
	if s.notifier == nil {
		s.metrics.IncNotification(string(email.StatusSkipped))
		return
	}

	recipient := user.Email
	if tmpl.NotifyEmail != nil && strings.TrimSpace(*tmpl.NotifyEmail) != "" {
		recipient = strings.TrimSpace(*tmpl.NotifyEmail)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	res, err := s.notifier.Send(ctx, limitReachedMessage(recipient, tmpl))
	s.metrics.IncNotification(string(res.Status))
	if err != nil {
		s.logger.Warn("limit notification failed",
			slog.String("voucher_id", tmpl.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if res.Status == email.StatusSkipped {
		s.logger.Info("limit notification skipped",
			slog.String("voucher_id", tmpl.ID),
			slog.String("reason", res.Reason),
		)
	}
}

func limitReachedMessage(to string, tmpl *model.VoucherTemplate) email.Message {
	name := tmpl.Name
	if name == "" {
		name = tmpl.ID
	}
	limit := 0
	if tmpl.UsageLimit != nil {
		limit = *tmpl.UsageLimit
	}

	return email.Message{
		To:      to,
		Subject: fmt.Sprintf("Voucher %q reached its usage limit", name),
		TextBody: fmt.Sprintf(
			"All %d vouchers of %q have been issued. No further codes will be generated until the limit is raised.",
			limit, name,
		),
		HTMLBody: fmt.Sprintf(
			"<p>All <strong>%d</strong> vouchers of <strong>%s</strong> have been issued.</p>"+
				"<p>No further codes will be generated until the limit is raised.</p>",
			limit, html.EscapeString(name),
		),
	}
}
