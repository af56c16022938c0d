package notifications

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/ctxlog"
	"golang.org/x/sync/errgroup"
)

// DispatcherConfig contains dispatcher configuration.
type DispatcherConfig struct {
	// PageSize is the user directory page size for all-users dispatches.
	PageSize int
	// Concurrency bounds parallel deliveries within one dispatch. 1 means sequential.
	Concurrency int
}

// DefaultDispatcherConfig returns default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PageSize:    DefaultPageSize,
		Concurrency: 1,
	}
}

// DispatchOptions controls a single dispatch.
type DispatchOptions struct {
	// SaveToDatabase writes an in-app record for every recipient.
	SaveToDatabase bool
	// ExcludeAdmins skips admin users in all-users dispatches.
	ExcludeAdmins bool
}

// DispatchResult is the outcome for one recipient.
type DispatchResult struct {
	UserID         int64  `json:"user_id"`
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	PushSent       bool   `json:"push_sent"`
	NotificationID *int64 `json:"notification_id,omitempty"`
}

// DispatchSummary aggregates per-recipient results.
type DispatchSummary struct {
	TotalRecipients int `json:"total_recipients"`
	SavedToDatabase int `json:"saved_to_database"`
	PushSuccessful  int `json:"push_successful"`
	PushFailed      int `json:"push_failed"`
}

// DispatchReport is the aggregate result of a dispatch.
type DispatchReport struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Results []DispatchResult `json:"results"`
	Summary DispatchSummary  `json:"summary"`
	Errors  []string         `json:"errors"`
}

// Dispatcher resolves targets to recipients and delivers to each of them.
type Dispatcher struct {
	config    DispatcherConfig
	directory UserDirectory
	inbox     *InboxWriter
	sender    Sender
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(config DispatcherConfig, directory UserDirectory, inbox *InboxWriter, sender Sender) *Dispatcher {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Dispatcher{
		config:    config,
		directory: directory,
		inbox:     inbox,
		sender:    sender,
	}
}

// SendToUser dispatches to a single user. A missing user is reported as one
// failed recipient, not as an error.
func (d *Dispatcher) SendToUser(ctx context.Context, userID int64, payload Payload, opts DispatchOptions) (*DispatchReport, error) {
	user, err := d.directory.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return unresolvedReport(fmt.Sprintf("User %d not found", userID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}

	agg, err := d.fanOut(ctx, usersOf([]domain.User{*user}), payload, opts)
	if err != nil {
		return nil, err
	}

	report := agg.report()
	if len(report.Results) == 1 {
		report.Message = report.Results[0].Message
	}
	return report, nil
}

// SendToGroup dispatches to every member of a group.
func (d *Dispatcher) SendToGroup(ctx context.Context, groupID int64, payload Payload, opts DispatchOptions) (*DispatchReport, error) {
	group, err := d.directory.GetGroupWithMembers(ctx, groupID)
	if errors.Is(err, ErrGroupNotFound) {
		return unresolvedReport(fmt.Sprintf("User group %d not found", groupID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user group %d: %w", groupID, err)
	}

	if len(group.Members) == 0 {
		return &DispatchReport{
			Message: fmt.Sprintf("User group %q has no members", group.Name),
			Results: []DispatchResult{},
			Errors:  []string{},
		}, nil
	}

	agg, err := d.fanOut(ctx, usersOf(group.Members), payload, opts)
	if err != nil {
		return nil, err
	}

	report := agg.report()
	report.Message = fmt.Sprintf("Sent to %d of %d members of group %q",
		report.Summary.PushSuccessful, report.Summary.TotalRecipients, group.Name)
	return report, nil
}

// SendToAll dispatches to every user in the directory, streamed in pages.
func (d *Dispatcher) SendToAll(ctx context.Context, payload Payload, opts DispatchOptions) (*DispatchReport, error) {
	query := UserPageQuery{Limit: d.config.PageSize}
	if opts.ExcludeAdmins {
		query.ExcludeRoles = []domain.Role{domain.RoleAdmin}
	}

	agg, err := d.fanOut(ctx, StreamUsers(ctx, d.directory, query), payload, opts)
	if err != nil {
		return nil, err
	}

	report := agg.report()
	report.Message = fmt.Sprintf("Notification saved for %d users, push sent to %d, failed for %d",
		report.Summary.SavedToDatabase, report.Summary.PushSuccessful, report.Summary.PushFailed)
	return report, nil
}

// fanOut delivers to each user of the stream, sequentially or with bounded
// parallelism. The first persistence or directory error aborts the dispatch.
func (d *Dispatcher) fanOut(ctx context.Context, users iter.Seq2[domain.User, error], payload Payload, opts DispatchOptions) (*aggregate, error) {
	agg := newAggregate()
	payload = payload.withDefaults()

	if d.config.Concurrency == 1 {
		for user, err := range users {
			if err != nil {
				return nil, err
			}
			result, err := d.deliver(ctx, user, payload, opts)
			if err != nil {
				return nil, err
			}
			agg.add(result)
		}
		return agg, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Concurrency)

	var streamErr error
	for user, err := range users {
		if err != nil {
			streamErr = err
			break
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := d.deliver(gctx, user, payload, opts)
			if err != nil {
				return err
			}
			agg.add(result)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if streamErr != nil {
		return nil, streamErr
	}
	return agg, nil
}

// deliver persists the in-app record and then pushes to the user's device.
func (d *Dispatcher) deliver(ctx context.Context, user domain.User, payload Payload, opts DispatchOptions) (DispatchResult, error) {
	result := DispatchResult{UserID: user.ID}

	if opts.SaveToDatabase {
		notification, err := d.inbox.Persist(ctx, user.ID, payload)
		if err != nil {
			return result, err
		}
		result.NotificationID = &notification.ID
	}

	if !user.HasDeviceToken() {
		result.Success = opts.SaveToDatabase
		if opts.SaveToDatabase {
			result.Message = "Notification saved, user has no device token"
		} else {
			result.Message = "User has no device token"
		}
		return result, nil
	}

	start := time.Now()
	outcome := d.sender.Send(ctx, user.DeviceToken, payload.pushMessage())
	recordPushOutcome(outcome.Reason, time.Since(start))

	if !outcome.Success {
		ctxlog.FromContext(ctx).Warn("push delivery failed",
			"user_id", user.ID,
			"reason", outcome.Reason,
			"message", outcome.Message,
		)
	}

	result.PushSent = true
	result.Success = outcome.Success
	result.Message = outcome.Message
	return result, nil
}

// unresolvedReport describes a target that could not be resolved.
func unresolvedReport(message string) *DispatchReport {
	slog.Warn("notification target not resolved", "reason", message)
	return &DispatchReport{
		Message: message,
		Results: []DispatchResult{},
		Summary: DispatchSummary{PushFailed: 1},
		Errors:  []string{message},
	}
}

// aggregate collects results; safe for concurrent use.
type aggregate struct {
	mu      sync.Mutex
	results []DispatchResult
	summary DispatchSummary
	errors  []string
	success bool
}

func newAggregate() *aggregate {
	return &aggregate{
		results: make([]DispatchResult, 0),
		errors:  make([]string, 0),
	}
}

func (a *aggregate) add(result DispatchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results = append(a.results, result)
	a.summary.TotalRecipients++
	if result.NotificationID != nil {
		a.summary.SavedToDatabase++
	}
	if result.PushSent {
		if result.Success {
			a.summary.PushSuccessful++
		} else {
			a.summary.PushFailed++
			a.errors = append(a.errors, fmt.Sprintf("User %d: %s", result.UserID, result.Message))
		}
	}
	if result.Success {
		a.success = true
	}
}

func (a *aggregate) report() *DispatchReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &DispatchReport{
		Success: a.success,
		Results: a.results,
		Summary: a.summary,
		Errors:  a.errors,
	}
}
