package indents

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thebenmerlin/material-management-api/internal/platform/httpx"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Handler serves indent endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers indent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}/approve", h.handleApprove)
}

type createRequest struct {
	Items []ItemInput `json:"items"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	indent, err := h.service.Create(r.Context(), actor, CreateInput{Items: req.Items})
	if err != nil {
		h.logger.Warn("create indent", slog.Any("error", err), slog.Int64("user_id", actor.UserID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message":       "Indent created successfully",
		"indent_number": indent.IndentNumber,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	q := r.URL.Query()
	indents, err := h.service.List(r.Context(), actor, q.Get("status"), shared.ParsePageParams(q))
	if err != nil {
		h.logger.Error("list indents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if indents == nil {
		indents = []Indent{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"indents": indents})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid indent id")
		return
	}

	indent, items, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"indent": indent, "items": items})
}

type approveRequest struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejection_reason"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid indent id")
		return
	}

	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newStatus, err := h.service.Approve(r.Context(), actor, id, Action(req.Action), req.RejectionReason)
	if err != nil {
		h.logger.Warn("approve indent", slog.Any("error", err),
			slog.Int64("indent_id", id), slog.String("action", req.Action))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":    "Indent " + req.Action + "d successfully",
		"new_status": newStatus,
	})
}
