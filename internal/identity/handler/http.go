// Package handler exposes the auth service over HTTP: registration, login, token refresh,
// logout, password reset and the caller's own profile.
package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"bookfair/backend/internal/httpx"
	"bookfair/backend/internal/identity/service"
	prservice "bookfair/backend/internal/passwordreset/service"
	"bookfair/backend/internal/server/middleware"
	sessiondomain "bookfair/backend/internal/session/domain"
	userdomain "bookfair/backend/internal/user/domain"
)

// AuthAPI is the part of *service.AuthService used by the handler.
type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput, client service.ClientInfo) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string, client service.ClientInfo) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, accessToken string) error
	GetProfile(ctx context.Context, userID string) (*userdomain.User, error)
	UpdateUser(ctx context.Context, userID string, in service.UpdateInput) (*userdomain.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// ResetAPI is the part of *prservice.ResetService used by the handler.
type ResetAPI interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Handler serves /api/auth and /api/users.
type Handler struct {
	auth     AuthAPI
	reset    ResetAPI
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler returns a Handler. reset may be nil, in which case the password reset routes are not mounted.
func NewHandler(auth AuthAPI, reset ResetAPI, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{auth: auth, reset: reset, validate: newValidator(), logger: logger}
}

// Routes mounts the auth and profile endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh-token", h.refresh)
		r.Post("/logout", h.logout)
		if h.reset != nil {
			r.Post("/forgot-password", h.forgotPassword)
			r.Post("/reset-password", h.resetPassword)
		}
	})
	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.TrustedIdentity)
		r.Get("/me", h.getMe)
		r.Put("/me", h.updateMe)
		r.Delete("/me", h.deleteMe)
	})
}

type registerRequest struct {
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"max=100"`
	CompanyName string `json:"companyName" validate:"max=255"`
	Email       string `json:"email" validate:"required,max=255,email"`
	MobileNo    string `json:"mobileNo" validate:"required,mobile"`
	Password    string `json:"password" validate:"required,min=8,max=255"`
	Role        string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=255,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=255"`
}

type updateRequest struct {
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"max=100"`
	CompanyName string `json:"companyName" validate:"max=255"`
	MobileNo    string `json:"mobileNo" validate:"required,mobile"`
}

type userResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	CompanyName string    `json:"companyName"`
	Email       string    `json:"email"`
	MobileNo    string    `json:"mobileNo"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type authResponse struct {
	User   userResponse  `json:"user"`
	Tokens tokenResponse `json:"tokens"`
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		CompanyName: u.CompanyName,
		Email:       u.Email,
		MobileNo:    u.MobileNo,
		Role:        string(u.Role),
		Status:      string(u.Status),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		User: toUserResponse(res.User),
		Tokens: tokenResponse{
			AccessToken:  res.Tokens.AccessToken,
			RefreshToken: res.Tokens.RefreshToken,
			ExpiresIn:    res.ExpiresIn,
		},
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.bind(w, r, &req, func() {
		req.FirstName = strings.TrimSpace(req.FirstName)
		req.Email = strings.TrimSpace(req.Email)
		req.MobileNo = strings.TrimSpace(req.MobileNo)
	}) {
		return
	}
	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		MobileNo:    req.MobileNo,
		Password:    req.Password,
		Role:        req.Role,
	}, clientInfo(r))
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.OK(w, http.StatusCreated, "User registered successfully", toAuthResponse(res))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req, func() { req.Email = strings.TrimSpace(req.Email) }) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if errors.Is(err, service.ErrInvalidCredentials) {
		httpx.Fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Login successful", toAuthResponse(res))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.bind(w, r, &req, func() { req.RefreshToken = strings.TrimSpace(req.RefreshToken) }) {
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if errors.Is(err, service.ErrInvalidCredentials) {
		httpx.Fail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Token refreshed successfully", toAuthResponse(res))
}

// logout always answers 200; a missing or unknown token is a no-op.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.BearerToken(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.Warn("logout failed", zap.Error(err))
		}
	}
	httpx.OK(w, http.StatusOK, "Logout successful", nil)
}

// forgotPassword answers 200 for known and unknown emails alike.
func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.bind(w, r, &req, func() { req.Email = strings.TrimSpace(req.Email) }) {
		return
	}
	if err := h.reset.RequestReset(r.Context(), req.Email); err != nil {
		h.logger.Error("password reset request failed", zap.Error(err))
	}
	httpx.OK(w, http.StatusOK, "If the email exists, reset instructions have been sent", nil)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.bind(w, r, &req, func() { req.Token = strings.TrimSpace(req.Token) }) {
		return
	}
	if err := h.reset.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(w, "reset_password", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Password reset successfully", nil)
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	u, err := h.auth.GetProfile(r.Context(), userID)
	if err != nil {
		h.fail(w, "get_profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, "User profile retrieved successfully", toUserResponse(u))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req updateRequest
	if !h.bind(w, r, &req, func() {
		req.FirstName = strings.TrimSpace(req.FirstName)
		req.MobileNo = strings.TrimSpace(req.MobileNo)
	}) {
		return
	}
	u, err := h.auth.UpdateUser(r.Context(), userID, service.UpdateInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		MobileNo:    req.MobileNo,
	})
	if err != nil {
		h.fail(w, "update_profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, "User profile updated successfully", toUserResponse(u))
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.auth.DeleteUser(r.Context(), userID); err != nil {
		h.fail(w, "delete_profile", err)
		return
	}
	httpx.OK(w, http.StatusOK, "User account deleted successfully", nil)
}

// bind decodes the body into req, applies normalize and validates the result. On failure it
// writes a 400 and returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, req any, normalize func()) bool {
	if err := httpx.DecodeJSON(r, req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	if normalize != nil {
		normalize()
	}
	if err := h.validate.Struct(req); err != nil {
		if fields := fieldErrors(err); fields != nil {
			httpx.FailWithData(w, http.StatusBadRequest, "Validation failed", fields)
			return false
		}
		h.fail(w, "validate", err)
		return false
	}
	return true
}

// fail maps a service error to its status code. Unmapped errors are logged and answered with 500.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		httpx.Fail(w, http.StatusConflict, "Email is already registered")
	case errors.Is(err, service.ErrMobileTaken):
		httpx.Fail(w, http.StatusConflict, "Mobile number is already registered")
	case errors.Is(err, service.ErrDuplicateIdentity):
		httpx.Fail(w, http.StatusConflict, "Email or mobile number is already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.Fail(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrUserNotFound):
		httpx.Fail(w, http.StatusUnauthorized, "User not found")
	case errors.Is(err, service.ErrInvalidInput):
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, prservice.ErrInvalidToken):
		httpx.Fail(w, http.StatusBadRequest, "Invalid or expired password reset token")
	case errors.Is(err, sessiondomain.ErrOptimisticConflict):
		httpx.Fail(w, http.StatusConflict, "Session was modified concurrently, retry the request")
	default:
		h.logger.Error("request failed", zap.String("operation", op), zap.Error(err))
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// clientInfo records the caller's User-Agent and address. RemoteAddr has already been rewritten
// by chi's RealIP when the request came through a proxy.
func clientInfo(r *http.Request) service.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return service.ClientInfo{DeviceInfo: r.UserAgent(), IPAddress: ip}
}
