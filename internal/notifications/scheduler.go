package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/ctxlog"
)

const maxRecordedErrors = 5

// SchedulerConfig contains scheduler configuration.
type SchedulerConfig struct {
	Interval      time.Duration
	Retention     time.Duration
	LeaseDuration time.Duration
	// HeartbeatInterval is how often the lease of the notification being
	// dispatched is extended. Defaults to a third of LeaseDuration.
	HeartbeatInterval time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      time.Minute,
		Retention:     48 * time.Hour,
		LeaseDuration: 10 * time.Minute,
	}
}

// TargetDispatcher sends a payload to the recipients of a target.
type TargetDispatcher interface {
	SendToUser(ctx context.Context, userID int64, payload Payload, opts DispatchOptions) (*DispatchReport, error)
	SendToGroup(ctx context.Context, groupID int64, payload Payload, opts DispatchOptions) (*DispatchReport, error)
	SendToAll(ctx context.Context, payload Payload, opts DispatchOptions) (*DispatchReport, error)
}

// RunReport summarizes one scheduler pass.
type RunReport struct {
	RunID     string
	Processed int
	Sent      int
	Failed    int
	Skipped   int
	Purged    int64
}

// Scheduler processes due scheduled notifications and purges old terminal ones.
type Scheduler struct {
	config     SchedulerConfig
	repo       ScheduledRepository
	dispatcher TargetDispatcher
	now        func() time.Time

	stopCh    chan struct{}
	stopOnce  sync.Once
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduler creates a new scheduler.
func NewScheduler(config SchedulerConfig, repo ScheduledRepository, dispatcher TargetDispatcher) *Scheduler {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = config.LeaseDuration / 3
	}
	return &Scheduler{
		config:     config,
		repo:       repo,
		dispatcher: dispatcher,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the periodic scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting notification scheduler",
		"interval", s.config.Interval,
		"retention", s.config.Retention,
		"lease", s.config.LeaseDuration,
	)

	ctx, s.cancelRun = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop waits for the current pass to finish and stops the loop.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	_ = s.Shutdown(context.Background())
}

// Shutdown stops the loop and waits for the current pass until ctx is done.
// On deadline the pass is cancelled; notifications it still holds become
// claimable again when their lease expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("notification scheduler stopped")
		return nil
	case <-ctx.Done():
		if s.cancelRun != nil {
			s.cancelRun()
		}
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("scheduler run failed", "error", err)
			}
		}
	}
}

// RunOnce processes every due notification, then purges terminal
// notifications older than the retention period. Per-record delivery
// failures are written to the record; only storage failures are returned.
func (s *Scheduler) RunOnce(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString()}
	ctx, logger := ctxlog.With(ctx, "run_id", report.RunID)

	now := s.now()
	processErr := s.processDue(ctx, report.RunID, now, &report)

	purged, cleanupErr := s.cleanup(ctx, now)
	report.Purged = purged

	if s.config.Retention > 0 && cleanupErr == nil && purged > 0 {
		logger.Info("purged old scheduled notifications", "count", purged)
	}

	logger.Info("scheduler run finished",
		"processed", report.Processed,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)

	return report, errors.Join(processErr, cleanupErr)
}

func (s *Scheduler) processDue(ctx context.Context, owner string, now time.Time, report *RunReport) error {
	due, err := s.repo.ClaimDue(ctx, owner, now, now.Add(s.config.LeaseDuration))
	if err != nil {
		return fmt.Errorf("claim due notifications: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("processing scheduled notifications", "count", len(due))

	for i := range due {
		n := &due[i]

		// The claim may have expired while earlier notifications were sent.
		err := s.repo.RenewLease(ctx, n.ID, owner, s.now().Add(s.config.LeaseDuration))
		if errors.Is(err, ErrLeaseLost) {
			logger.Warn("scheduled notification taken over by another scheduler", "id", n.ID)
			report.Skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("renew lease on scheduled notification %d: %w", n.ID, err)
		}

		release := s.holdLease(ctx, n.ID, owner)
		completion := s.process(ctx, n)
		release()
		completion.SentAt = s.now()

		err = s.repo.CompleteScheduled(ctx, n.ID, owner, completion)
		if errors.Is(err, ErrNotPending) {
			logger.Warn("scheduled notification changed during processing", "id", n.ID)
			report.Skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("complete scheduled notification %d: %w", n.ID, err)
		}

		report.Processed++
		recordScheduledProcessed(completion.Status)
		if completion.Status == domain.ScheduledStatusSent {
			report.Sent++
		} else {
			report.Failed++
		}

		logger.Info("scheduled notification processed",
			"id", n.ID,
			"target_type", n.TargetType,
			"status", completion.Status,
			"success_count", completion.SuccessCount,
			"fail_count", completion.FailCount,
		)
	}

	return nil
}

// holdLease keeps extending the lease on id until the returned func is called.
func (s *Scheduler) holdLease(ctx context.Context, id int64, owner string) (release func()) {
	if s.config.HeartbeatInterval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.config.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := s.repo.RenewLease(ctx, id, owner, s.now().Add(s.config.LeaseDuration))
				if err == nil || ctx.Err() != nil {
					continue
				}
				ctxlog.FromContext(ctx).Warn("failed to extend scheduled notification lease", "id", id, "error", err)
				if errors.Is(err, ErrLeaseLost) {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// process dispatches one notification and derives its terminal state.
func (s *Scheduler) process(ctx context.Context, n *domain.ScheduledNotification) Completion {
	result, err := s.dispatch(ctx, n)
	if err != nil {
		ctxlog.FromContext(ctx).Error("scheduled notification dispatch failed", "id", n.ID, "error", err)
		return failed(err.Error())
	}

	completion := Completion{
		Status:       domain.ScheduledStatusFailed,
		SuccessCount: result.Summary.PushSuccessful,
		FailCount:    result.Summary.PushFailed,
		ErrorMessage: joinErrors(result.Errors),
	}
	if result.Summary.PushSuccessful > 0 {
		completion.Status = domain.ScheduledStatusSent
	}
	return completion
}

func (s *Scheduler) dispatch(ctx context.Context, n *domain.ScheduledNotification) (report *DispatchReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	payload := ScheduledPayload(n)
	opts := DispatchOptions{SaveToDatabase: true}

	switch n.TargetType {
	case domain.TargetSingleUser:
		if n.UserID == nil {
			return nil, domain.ErrTargetUserRequired
		}
		return s.dispatcher.SendToUser(ctx, *n.UserID, payload, opts)
	case domain.TargetGroup:
		if n.UserGroupID == nil {
			return nil, domain.ErrTargetGroupRequired
		}
		return s.dispatcher.SendToGroup(ctx, *n.UserGroupID, payload, opts)
	case domain.TargetAllUsers:
		return s.dispatcher.SendToAll(ctx, payload, opts)
	default:
		return nil, fmt.Errorf("Unknown target type: %s", n.TargetType) //nolint:staticcheck // stored as the record's error message
	}
}

func (s *Scheduler) cleanup(ctx context.Context, now time.Time) (int64, error) {
	if s.config.Retention <= 0 {
		return 0, nil
	}

	purged, err := s.repo.DeleteTerminalBefore(ctx, now.Add(-s.config.Retention))
	if err != nil {
		return 0, fmt.Errorf("delete old scheduled notifications: %w", err)
	}

	recordCleanupPurged(purged)
	return purged, nil
}

func failed(message string) Completion {
	return Completion{
		Status:       domain.ScheduledStatusFailed,
		ErrorMessage: &message,
	}
}

// joinErrors keeps the first few per-recipient errors for the record.
func joinErrors(errs []string) *string {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) > maxRecordedErrors {
		errs = errs[:maxRecordedErrors]
	}
	joined := strings.Join(errs, "; ")
	return &joined
}
