package receipts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thebenmerlin/material-management-api/internal/platform/httpx"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// UploadLimits bounds receipt image uploads.
type UploadLimits struct {
	MaxFiles    int
	MaxFileSize int64
}

// Handler serves receipt endpoints. Creation is multipart: scalar fields
// plus a JSON "items" field and up to MaxFiles image files under "images",
// each annotated by indexed image_type_<i> and image_description_<i> fields.
type Handler struct {
	logger  *slog.Logger
	service *Service
	limits  UploadLimits
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, limits UploadLimits) *Handler {
	return &Handler{logger: logger, service: service, limits: limits}
}

// MountRoutes registers receipt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	// Form memory cap; larger file parts spill to disk.
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	input, err := h.parseCreateForm(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer func() {
		for _, img := range input.Images {
			if closer, ok := img.Body.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}
	}()

	result, err := h.service.Create(r.Context(), actor, *input)
	if err != nil {
		h.logger.Warn("create receipt", slog.Any("error", err), slog.Int64("order_id", input.OrderID))
		httpx.RespondError(w, err)
		return
	}

	h.logger.Info("receipt created",
		slog.String("receipt_number", result.Receipt.ReceiptNumber),
		slog.String("order_status", string(result.OrderStatus)))
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message":        "Receipt created successfully",
		"receipt_number": result.Receipt.ReceiptNumber,
		"order_status":   result.OrderStatus,
	})
}

func (h *Handler) parseCreateForm(r *http.Request) (*CreateInput, error) {
	form := r.MultipartForm

	orderID, err := strconv.ParseInt(r.FormValue("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		return nil, shared.NewValidationError("order_id is required")
	}

	input := CreateInput{
		OrderID:               orderID,
		DeliveryChallanNumber: r.FormValue("delivery_challan_number"),
		Notes:                 r.FormValue("notes"),
	}
	if raw := r.FormValue("received_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, shared.NewValidationError("received_date must be YYYY-MM-DD")
		}
		input.ReceivedDate = t
	}
	if raw := r.FormValue("is_partial"); raw != "" {
		isPartial, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, shared.NewValidationError("is_partial must be a boolean")
		}
		input.IsPartial = isPartial
	}

	itemsRaw := r.FormValue("items")
	if itemsRaw == "" {
		return nil, shared.NewValidationError("items is required")
	}
	if err := json.Unmarshal([]byte(itemsRaw), &input.Items); err != nil {
		return nil, shared.NewValidationError("items must be a JSON array")
	}

	files := form.File["images"]
	if len(files) > h.limits.MaxFiles {
		return nil, shared.NewValidationError(fmt.Sprintf("at most %d images are allowed", h.limits.MaxFiles))
	}
	for i, fh := range files {
		if fh.Size > h.limits.MaxFileSize {
			return nil, shared.NewValidationError(fmt.Sprintf("images[%d]: file exceeds %d bytes", i, h.limits.MaxFileSize))
		}
		contentType := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			return nil, shared.NewValidationError(fmt.Sprintf("images[%d]: only image files are allowed", i))
		}
		file, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("receipts: open upload: %w", err)
		}
		input.Images = append(input.Images, ImageInput{
			Filename:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        file,
			Type:        r.FormValue(fmt.Sprintf("image_type_%d", i)),
			Description: r.FormValue(fmt.Sprintf("image_description_%d", i)),
		})
	}
	return &input, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	q := r.URL.Query()
	orderID, _ := strconv.ParseInt(q.Get("order_id"), 10, 64)
	receipts, err := h.service.List(r.Context(), actor, orderID, shared.ParsePageParams(q))
	if err != nil {
		h.logger.Error("list receipts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if receipts == nil {
		receipts = []Receipt{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid receipt id")
		return
	}

	rec, items, images, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	if images == nil {
		images = []Image{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"receipt": rec,
		"items":   items,
		"images":  images,
	})
}
