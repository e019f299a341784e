package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tallyvox/tallyvox/internal/auth"
	"github.com/tallyvox/tallyvox/internal/handler/dto"
	"github.com/tallyvox/tallyvox/internal/model"
	"github.com/tallyvox/tallyvox/internal/response"
	"github.com/tallyvox/tallyvox/internal/service"
)

// Voucher actions accepted on the dispatch endpoint.
const (
	ActionGenerate = "generate"
	ActionGet      = "get"
	ActionUsages   = "usages"
)

// Permissions checked per action.
const (
	PermissionVouchersView   = "vouchers.view"
	PermissionVouchersManage = "vouchers.manage"
)

// VoucherService is the business logic behind the voucher endpoint.
type VoucherService interface {
	Issue(ctx context.Context, input service.IssueVoucherInput) (*model.VoucherUsage, error)
	GetTemplate(ctx context.Context, user *model.AuthenticatedUser, id string) (*model.VoucherTemplate, error)
	ListUsages(ctx context.Context, user *model.AuthenticatedUser, templateID string, limit int) ([]*model.VoucherUsage, error)
}

// VoucherHandler handles HTTP requests for voucher operations.
type VoucherHandler struct {
	svc       VoucherService
	evaluator *auth.Evaluator
	logger    *slog.Logger
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(svc VoucherService, evaluator *auth.Evaluator, logger *slog.Logger) *VoucherHandler {
	return &VoucherHandler{
		svc:       svc,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Dispatch handles /api/v1/vouchers?action=...
func (h *VoucherHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")

	var method, permission string
	var serve http.HandlerFunc
	switch action {
	case ActionGenerate:
		method, permission, serve = http.MethodPost, PermissionVouchersManage, h.generate
	case ActionGet:
		method, permission, serve = http.MethodGet, PermissionVouchersView, h.get
	case ActionUsages:
		method, permission, serve = http.MethodGet, PermissionVouchersView, h.usages
	default:
		response.WriteError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	if r.Method != method {
		w.Header().Set("Allow", method)
		response.WriteError(w, http.StatusMethodNotAllowed, response.MsgMethodNotAllow)
		return
	}

	if !h.evaluator.Allow(w, auth.UserFromContext(r.Context()), permission) {
		return
	}

	serve(w, r)
}

// generate handles action=generate.
func (h *VoucherHandler) generate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		response.WriteError(w, http.StatusBadRequest, dto.ErrInvalidBody.Error())
		return
	}

	req, err := dto.ParseGenerateVoucherRequest(body)
	if err != nil {
		h.logger.Debug("invalid voucher request", slog.String("error", err.Error()))
		response.WriteError(w, http.StatusBadRequest, sanitizeRequestError(err))
		return
	}

	user := auth.UserFromContext(r.Context())
	usage, err := h.svc.Issue(r.Context(), service.IssueVoucherInput{
		TemplateID:       req.VoucherID,
		SurveyResponseID: req.SurveyResponseID,
		User:             user,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, dto.ToVoucherUsageResponse(usage))
}

// get handles action=get.
func (h *VoucherHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherIDParam(w, r)
	if !ok {
		return
	}

	tmpl, err := h.svc.GetTemplate(r.Context(), auth.UserFromContext(r.Context()), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, dto.GetVoucherResponse{
		Voucher: dto.ToVoucherTemplateResponse(tmpl),
	})
}

// usages handles action=usages.
func (h *VoucherHandler) usages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.voucherIDParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	usages, err := h.svc.ListUsages(r.Context(), auth.UserFromContext(r.Context()), id, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, dto.ToVoucherUsageListResponse(usages))
}

func (h *VoucherHandler) voucherIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("voucher_id")
	if id == "" {
		response.WriteError(w, http.StatusBadRequest, service.ErrValidation.Error())
		return "", false
	}
	if err := dto.ValidateIdentifier(id); err != nil {
		response.WriteError(w, http.StatusBadRequest, sanitizeRequestError(err))
		return "", false
	}
	return id, true
}

// sanitizeRequestError keeps decoder internals out of client messages.
func sanitizeRequestError(err error) string {
	switch {
	case errors.Is(err, dto.ErrIdentifierTooLong):
		return response.ErrorMessage(dto.ErrIdentifierTooLong, dto.ErrInvalidBody.Error())
	case errors.Is(err, dto.ErrIdentifierInvalid):
		return response.ErrorMessage(dto.ErrIdentifierInvalid, dto.ErrInvalidBody.Error())
	default:
		return dto.ErrInvalidBody.Error()
	}
}

// handleServiceError maps service errors to HTTP responses.
func (h *VoucherHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		response.WriteError(w, http.StatusUnauthorized, response.MsgUnauthorized)
	case errors.Is(err, service.ErrTenantRequired):
		response.WriteError(w, http.StatusUnauthorized, response.ErrorMessage(err, response.MsgUnauthorized))
	case errors.Is(err, service.ErrVoucherNotFound):
		response.WriteError(w, http.StatusNotFound, "Voucher not found")
	case errors.Is(err, service.ErrVoucherInactive):
		response.WriteError(w, http.StatusBadRequest, "Voucher is not active")
	case errors.Is(err, service.ErrVoucherLimitReached):
		response.WriteError(w, http.StatusBadRequest, "Voucher usage limit reached")
	default:
		h.logger.Error("internal_error",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.String("action", r.URL.Query().Get("action")),
		)
		response.WriteError(w, http.StatusInternalServerError, response.MsgInternalError)
	}
}
