package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrScheduledNotFound, Status: http.StatusNotFound, Message: "scheduled notification not found"},
	{Error: ErrNotPending, Status: http.StatusConflict, Message: "only pending notifications can be cancelled"},
	{Error: domain.ErrInvalidTargetType, Status: http.StatusBadRequest},
	{Error: domain.ErrTargetUserRequired, Status: http.StatusBadRequest},
	{Error: domain.ErrTargetGroupRequired, Status: http.StatusBadRequest},
	{Error: domain.ErrTargetOverspecified, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers notification routes (require manage_notifications).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/notifications/send", h.SendNow)
	r.Get("/notifications/stats", h.GetStats)

	r.Route("/scheduled-notifications", func(r chi.Router) {
		r.Get("/", h.ListScheduled)
		r.Post("/", h.CreateScheduled)
		r.Get("/{id}", h.GetScheduled)
		r.Post("/{id}/cancel", h.CancelScheduled)
	})
}

// SendRequest represents request body for an immediate dispatch.
type SendRequest struct {
	TargetType    string         `json:"target_type" validate:"required,oneof=single_user group all_users"`
	UserID        *int64         `json:"user_id" validate:"omitempty,gt=0"`
	UserGroupID   *int64         `json:"user_group_id" validate:"omitempty,gt=0"`
	Title         string         `json:"title" validate:"required,max=255"`
	Body          string         `json:"body" validate:"required"`
	Data          map[string]any `json:"data"`
	ExcludeAdmins bool           `json:"exclude_admins"`
}

// ScheduleRequest represents request body for scheduling a notification.
type ScheduleRequest struct {
	TargetType  string         `json:"target_type" validate:"required,oneof=single_user group all_users"`
	UserID      *int64         `json:"user_id" validate:"omitempty,gt=0"`
	UserGroupID *int64         `json:"user_group_id" validate:"omitempty,gt=0"`
	Title       string         `json:"title" validate:"required,max=255"`
	Body        string         `json:"body" validate:"required"`
	Data        map[string]any `json:"data"`
	ScheduledAt *time.Time     `json:"scheduled_at" validate:"required"`
}

// SendNow handles POST /notifications/send.
func (h *Handler) SendNow(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	report, err := h.service.SendNow(r.Context(), SendInput{
		Title:         req.Title,
		Body:          req.Body,
		Data:          req.Data,
		TargetType:    domain.TargetType(req.TargetType),
		UserID:        req.UserID,
		UserGroupID:   req.UserGroupID,
		ExcludeAdmins: req.ExcludeAdmins,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

// GetStats handles GET /notifications/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{
		"pending":   stats.Pending,
		"sent":      stats.Sent,
		"failed":    stats.Failed,
		"cancelled": stats.Cancelled,
	})
}

// ListScheduled handles GET /scheduled-notifications.
func (h *Handler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	status := domain.ScheduledStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	items, err := h.service.List(r.Context(), status)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// CreateScheduled handles POST /scheduled-notifications.
func (h *Handler) CreateScheduled(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := ScheduleInput{
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		TargetType:  domain.TargetType(req.TargetType),
		UserID:      req.UserID,
		UserGroupID: req.UserGroupID,
		ScheduledAt: *req.ScheduledAt,
	}
	if userID := httputil.GetUserID(r.Context()); userID != 0 {
		input.CreatedBy = &userID
	}

	n, err := h.service.Schedule(r.Context(), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, n)
}

// GetScheduled handles GET /scheduled-notifications/{id}.
func (h *Handler) GetScheduled(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	n, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, n)
}

// CancelScheduled handles POST /scheduled-notifications/{id}/cancel.
func (h *Handler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	n, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, n)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.Error(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
