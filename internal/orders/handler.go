package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thebenmerlin/material-management-api/internal/platform/httpx"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Handler serves order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
}

type orderRequest struct {
	IndentID             int64       `json:"indent_id"`
	VendorName           string      `json:"vendor_name"`
	VendorContact        string      `json:"vendor_contact"`
	VendorAddress        string      `json:"vendor_address"`
	ExpectedDeliveryDate string      `json:"expected_delivery_date"`
	Items                []ItemInput `json:"items"`
	Version              *int        `json:"version"`
}

func parseDeliveryDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, shared.NewValidationError("expected_delivery_date must be YYYY-MM-DD")
	}
	return &t, nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	delivery, err := parseDeliveryDate(req.ExpectedDeliveryDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	order, err := h.service.Create(r.Context(), actor, CreateInput{
		IndentID:             req.IndentID,
		VendorName:           req.VendorName,
		VendorContact:        req.VendorContact,
		VendorAddress:        req.VendorAddress,
		ExpectedDeliveryDate: delivery,
		Items:                req.Items,
	})
	if err != nil {
		h.logger.Warn("create order", slog.Any("error", err), slog.Int64("indent_id", req.IndentID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message":      "Order created successfully",
		"order_number": order.OrderNumber,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	delivery, err := parseDeliveryDate(req.ExpectedDeliveryDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	err = h.service.Update(r.Context(), actor, id, UpdateInput{
		VendorName:           req.VendorName,
		VendorContact:        req.VendorContact,
		VendorAddress:        req.VendorAddress,
		ExpectedDeliveryDate: delivery,
		Items:                req.Items,
		Version:              req.Version,
	})
	if err != nil {
		h.logger.Warn("update order", slog.Any("error", err), slog.Int64("order_id", id))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Order updated successfully"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	q := r.URL.Query()
	orders, err := h.service.List(r.Context(), actor, q.Get("status"), shared.ParsePageParams(q))
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, items, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "items": items})
}
