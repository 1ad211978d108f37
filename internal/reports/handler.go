package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thebenmerlin/material-management-api/internal/platform/httpx"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Handler serves the monthly report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/monthly", h.handleMonthly)
	r.Get("/data", h.handleData)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	period, siteID, err := parseReportQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	file, name, err := h.service.Monthly(r.Context(), actor, period, siteID)
	if err != nil {
		h.logger.Error("monthly report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file)))
	_, _ = w.Write(file)
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	period, siteID, err := parseReportQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	data, err := h.service.Data(r.Context(), actor, period, siteID)
	if err != nil {
		h.logger.Error("report data", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

// parseReportQuery reads the year, month and optional site_id parameters.
// Year and month are required.
func parseReportQuery(r *http.Request) (Period, *int64, error) {
	q := r.URL.Query()
	verr := shared.NewValidationError()

	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		verr.Addf("year is required and must be a number")
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		verr.Addf("month is required and must be a number")
	}

	var siteID *int64
	if raw := q.Get("site_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			verr.Addf("site_id must be a positive number")
		} else {
			siteID = &id
		}
	}
	if !verr.Empty() {
		return Period{}, nil, verr
	}
	return Period{Year: year, Month: month}, siteID, nil
}
