package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/thebenmerlin/material-management-api/internal/platform/httpx"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	issuer    *TokenIssuer
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, issuer *TokenIssuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		issuer:    issuer,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Login is rate
// limited per client IP to slow credential stuffing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/login", h.handleLogin)
	})
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Password string `json:"password" validate:"required,min=6"`
	SiteCode string `json:"site_code" validate:"omitempty,alphanum,min=3,max=20"`
}

type loginUser struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email,omitempty"`
	SiteID   *int64  `json:"site_id"`
	SiteCode *string `json:"site_code,omitempty"`
	SiteName *string `json:"site_name,omitempty"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationDetails(err))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password, req.SiteCode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	token, err := h.issuer.Issue(user.ID, time.Now())
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := loginResponse{
		Message: "Login successful",
		Token:   token,
		User: loginUser{
			ID:       user.ID,
			Username: user.Username,
			Role:     string(user.Role),
			FullName: user.FullName,
			Email:    user.Email,
			SiteID:   user.SiteID,
		},
	}
	if user.SiteID != nil {
		resp.User.SiteCode = &user.SiteCode
		resp.User.SiteName = &user.SiteName
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// Tokens are stateless; logout is an acknowledgment so clients can clear
// their stored token through a uniform flow.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func validationDetails(err error) error {
	vErr := &shared.ValidationError{}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			vErr.Addf("%s failed on %s", fe.Field(), fe.Tag())
		}
		return vErr
	}
	vErr.Addf("%v", err)
	return vErr
}
