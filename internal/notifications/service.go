package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

const defaultListLimit = 100

// ScheduleInput describes a notification to schedule.
type ScheduleInput struct {
	Title       string
	Body        string
	Data        map[string]any
	TargetType  domain.TargetType
	UserID      *int64
	UserGroupID *int64
	ScheduledAt time.Time
	CreatedBy   *int64
}

// SendInput describes an immediate dispatch.
type SendInput struct {
	Title         string
	Body          string
	Data          map[string]any
	TargetType    domain.TargetType
	UserID        *int64
	UserGroupID   *int64
	ExcludeAdmins bool
}

// Service provides notifications business logic for the admin API.
type Service struct {
	repo       ScheduledRepository
	dispatcher TargetDispatcher
	now        func() time.Time
}

// NewService creates a new notifications service.
func NewService(repo ScheduledRepository, dispatcher TargetDispatcher) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Schedule stores a pending notification to be sent at input.ScheduledAt.
func (s *Service) Schedule(ctx context.Context, input ScheduleInput) (*domain.ScheduledNotification, error) {
	n := &domain.ScheduledNotification{
		Title:       input.Title,
		Body:        input.Body,
		Data:        input.Data,
		TargetType:  input.TargetType,
		UserID:      input.UserID,
		UserGroupID: input.UserGroupID,
		ScheduledAt: input.ScheduledAt.UTC(),
		Status:      domain.ScheduledStatusPending,
		CreatedBy:   input.CreatedBy,
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}

	if err := n.ValidateTarget(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateScheduled(ctx, n); err != nil {
		return nil, fmt.Errorf("create scheduled notification: %w", err)
	}

	slog.Info("notification scheduled",
		"id", n.ID,
		"target_type", n.TargetType,
		"scheduled_at", n.ScheduledAt,
	)
	return n, nil
}

// Get returns a scheduled notification by ID.
func (s *Service) Get(ctx context.Context, id int64) (*domain.ScheduledNotification, error) {
	return s.repo.GetScheduled(ctx, id)
}

// List returns scheduled notifications, newest first.
func (s *Service) List(ctx context.Context, status domain.ScheduledStatus) ([]domain.ScheduledNotification, error) {
	return s.repo.ListScheduled(ctx, ScheduledFilter{Status: status, Limit: defaultListLimit})
}

// Cancel moves a pending notification to cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (*domain.ScheduledNotification, error) {
	current, err := s.repo.GetScheduled(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(domain.ScheduledStatusCancelled) {
		return nil, ErrNotPending
	}

	if err := s.repo.CancelScheduled(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}

	slog.Info("scheduled notification cancelled", "id", id)
	return s.repo.GetScheduled(ctx, id)
}

// SendNow dispatches a notification immediately, saving in-app records.
func (s *Service) SendNow(ctx context.Context, input SendInput) (*DispatchReport, error) {
	target := &domain.ScheduledNotification{
		TargetType:  input.TargetType,
		UserID:      input.UserID,
		UserGroupID: input.UserGroupID,
	}
	if err := target.ValidateTarget(); err != nil {
		return nil, err
	}

	payload := Payload{
		Title: input.Title,
		Body:  input.Body,
		Data:  input.Data,
	}
	opts := DispatchOptions{
		SaveToDatabase: true,
		ExcludeAdmins:  input.ExcludeAdmins,
	}

	switch input.TargetType {
	case domain.TargetSingleUser:
		return s.dispatcher.SendToUser(ctx, *input.UserID, payload, opts)
	case domain.TargetGroup:
		return s.dispatcher.SendToGroup(ctx, *input.UserGroupID, payload, opts)
	default:
		return s.dispatcher.SendToAll(ctx, payload, opts)
	}
}

// Stats returns scheduled notification counts by status.
func (s *Service) Stats(ctx context.Context) (*ScheduledStats, error) {
	return s.repo.GetScheduledStats(ctx)
}
