// Package handler exposes the read-only user snapshot API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookfair/backend/internal/httpx"
	"bookfair/backend/internal/snapshot/domain"
)

// Reader is the read side of the snapshot service.
type Reader interface {
	Get(ctx context.Context, id string) (*domain.UserSnapshot, error)
	GetByUserID(ctx context.Context, userID string) (*domain.UserSnapshot, error)
	List(ctx context.Context) ([]*domain.UserSnapshot, error)
}

// Handler serves /api/user-snapshots.
type Handler struct {
	reader Reader
	logger *zap.Logger
}

// NewHandler returns a Handler reading from reader.
func NewHandler(reader Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reader: reader, logger: logger}
}

// Routes mounts the snapshot endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/user-snapshots", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/user/{userId}", h.getByUserID)
		r.Get("/{id}", h.get)
	})
}

type snapshotResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	CompanyName string    `json:"companyName"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toResponse(s *domain.UserSnapshot) snapshotResponse {
	return snapshotResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		CompanyName: s.CompanyName,
		Email:       s.Email,
		Role:        s.Role,
		Status:      s.Status,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.reader.List(r.Context())
	if err != nil {
		h.internal(w, "list", err)
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toResponse(s))
	}
	httpx.OK(w, http.StatusOK, "user snapshots", out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.reader.Get(r.Context(), chi.URLParam(r, "id"))
	h.writeOne(w, "get", s, err)
}

func (h *Handler) getByUserID(w http.ResponseWriter, r *http.Request) {
	s, err := h.reader.GetByUserID(r.Context(), chi.URLParam(r, "userId"))
	h.writeOne(w, "get_by_user", s, err)
}

func (h *Handler) writeOne(w http.ResponseWriter, op string, s *domain.UserSnapshot, err error) {
	if err != nil {
		h.internal(w, op, err)
		return
	}
	if s == nil {
		httpx.Fail(w, http.StatusNotFound, "user snapshot not found")
		return
	}
	httpx.OK(w, http.StatusOK, "user snapshot", toResponse(s))
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Error("user snapshot read failed", zap.String("operation", op), zap.Error(err))
	httpx.Fail(w, http.StatusInternalServerError, "internal server error")
}
