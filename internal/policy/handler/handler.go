package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"polis/internal/policy/models"
	"polis/internal/policy/requireddata"
	"polis/internal/policy/service"
	dErrors "polis/pkg/domain-errors"
	"polis/pkg/platform/httputil"
	"polis/pkg/requestcontext"
)

// Service defines the policy operations the HTTP layer exposes.
type Service interface {
	CreatePolicy(ctx context.Context, in service.CreatePolicyInput) (*models.PolicyState, error)
	UpdatePolicy(ctx context.Context, reference uuid.UUID, in service.UpdatePolicyInput) (*models.PolicyState, error)
	SubmitPolicy(ctx context.Context, reference uuid.UUID) (*models.PolicyState, error)
	UpdateStatusFromCallback(ctx context.Context, in service.CallbackInput) (*models.PolicyState, error)
	GetPolicy(ctx context.Context, reference uuid.UUID) (*models.PolicyState, error)
	GetPDFURL(ctx context.Context, reference uuid.UUID) (string, error)
	RequiredData(ctx context.Context, reference uuid.UUID) (requireddata.Report, error)
}

// Handler wires policy endpoints to the policy service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a policy handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policies", h.HandleCreate)
	r.Get("/policies/{reference}", h.HandleGet)
	r.Patch("/policies/{reference}", h.HandleUpdate)
	r.Post("/policies/{reference}/submit", h.HandleSubmit)
	r.Get("/policies/{reference}/pdf", h.HandlePDF)
	r.Get("/policies/{reference}/required-data", h.HandleRequiredData)
	r.Post("/callbacks/carrier", h.HandleCallback)
}

// HandleCreate handles POST /policies.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createPolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	state, err := h.service.CreatePolicy(ctx, service.CreatePolicyInput{
		LeadReference: req.LeadReference,
		Carrier:       req.Carrier,
	})
	if err != nil {
		h.logError(ctx, "create policy failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, fromState(state))
}

// HandleGet handles GET /policies/{reference}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reference, ok := h.reference(w, r)
	if !ok {
		return
	}

	state, err := h.service.GetPolicy(ctx, reference)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromState(state))
}

// HandleUpdate handles PATCH /policies/{reference}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reference, ok := h.reference(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[updatePolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	state, err := h.service.UpdatePolicy(ctx, reference, in)
	if err != nil {
		h.logError(ctx, "update policy failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromState(state))
}

// HandleSubmit handles POST /policies/{reference}/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reference, ok := h.reference(w, r)
	if !ok {
		return
	}

	state, err := h.service.SubmitPolicy(ctx, reference)
	if err != nil {
		h.logError(ctx, "submit policy failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromState(state))
}

// HandlePDF handles GET /policies/{reference}/pdf.
func (h *Handler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reference, ok := h.reference(w, r)
	if !ok {
		return
	}

	url, err := h.service.GetPDFURL(ctx, reference)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pdfResponse{URL: url})
}

// HandleRequiredData handles GET /policies/{reference}/required-data.
func (h *Handler) HandleRequiredData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reference, ok := h.reference(w, r)
	if !ok {
		return
	}

	report, err := h.service.RequiredData(ctx, reference)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleCallback handles POST /callbacks/carrier. Carriers post status
// transitions here; the body is their event envelope, not ours.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[callbackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	state, err := h.service.UpdateStatusFromCallback(ctx, service.CallbackInput{
		InsuranceReference: req.InsuranceReference,
		GlobalID:           req.GlobalID,
		EventType:          req.EventType,
		EventTime:          req.EventTime,
		Attributes:         req.Attributes,
	})
	if err != nil {
		h.logError(ctx, "carrier callback failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, callbackResponse{
		Reference: state.Reference,
		Status:    string(state.Status),
	})
}

func (h *Handler) reference(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	reference, err := uuid.Parse(chi.URLParam(r, "reference"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "malformed policy reference"))
		return uuid.Nil, false
	}
	return reference, true
}

func (h *Handler) logError(ctx context.Context, msg, requestID string, err error) {
	if dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeNotFound) {
		return
	}
	h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
}
