// Package handler exposes the proposal lifecycle over HTTP. Handlers decode
// and validate, delegate to the vault service, and translate domain errors to
// the shared JSON envelope; no business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vaultdao/internal/domain"
	"vaultdao/internal/filter"
	"vaultdao/internal/vault"
	dErrors "vaultdao/pkg/domain-errors"
	"vaultdao/pkg/platform/httputil"
	"vaultdao/pkg/requestcontext"
)

type Handler struct {
	service *vault.Service
	filters *filter.Engine
	logger  *slog.Logger
}

func New(service *vault.Service, filters *filter.Engine, logger *slog.Logger) *Handler {
	return &Handler{service: service, filters: filters, logger: logger}
}

// Register mounts the proposal routes. All of them require an authenticated
// caller; the router applies the auth middleware before mounting.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proposals", h.propose)
	r.Get("/proposals", h.list)
	r.Get("/proposals/{id}", h.get)
	r.Post("/proposals/{id}/approve", h.approve)
	r.Post("/proposals/{id}/reject", h.reject)
	r.Post("/proposals/{id}/execute", h.execute)
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[proposeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	caller := requestcontext.Caller(ctx)
	p, err := h.service.Propose(ctx, caller,
		domain.Address(req.Recipient), domain.Address(req.Token), req.amount(), req.Memo)
	if err != nil {
		h.logger.WarnContext(ctx, "propose failed", "request_id", requestID, "caller", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "proposal created",
		"request_id", requestID, "proposal_id", p.ID, "proposer", caller)
	httputil.WriteJSON(w, http.StatusCreated, toProposalResponse(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	spec, err := filterFromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	proposals, err := h.service.List(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	matched := h.filters.Apply(proposals, spec)

	out := make([]proposalResponse, len(matched))
	for i, p := range matched {
		out[i] = toProposalResponse(p)
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Proposals: out, Total: len(out)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	p, cd, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProposalWithCountdown(p, cd))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	caller := requestcontext.Caller(ctx)
	p, err := h.service.Approve(ctx, caller, id)
	if err != nil {
		h.logger.WarnContext(ctx, "approve failed",
			"request_id", requestID, "proposal_id", id, "caller", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "proposal approved",
		"request_id", requestID, "proposal_id", id, "approver", caller,
		"approval_count", p.ApprovalCount(), "threshold", p.Threshold)
	httputil.WriteJSON(w, http.StatusOK, toProposalResponse(p))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	// An empty body is a rejection without a reason.
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	caller := requestcontext.Caller(ctx)
	p, err := h.service.Reject(ctx, caller, id, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "reject failed",
			"request_id", requestID, "proposal_id", id, "caller", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "proposal rejected",
		"request_id", requestID, "proposal_id", id, "rejector", caller)
	httputil.WriteJSON(w, http.StatusOK, toProposalResponse(p))
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.proposalID(w, r)
	if !ok {
		return
	}
	caller := requestcontext.Caller(ctx)
	p, err := h.service.Execute(ctx, caller, id)
	if err != nil {
		h.logger.WarnContext(ctx, "execute failed",
			"request_id", requestID, "proposal_id", id, "caller", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "proposal executed",
		"request_id", requestID, "proposal_id", id, "executor", caller, "tx_hash", p.ExecutedTxHash)
	httputil.WriteJSON(w, http.StatusOK, toProposalResponse(p))
}

func (h *Handler) proposalID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "proposal id must be a positive integer"))
		return 0, false
	}
	return id, true
}
