package notifications

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
)

type fakeDirectory struct {
	mu        sync.Mutex
	users     map[int64]domain.User
	groups    map[int64]*domain.UserGroup
	pageCalls []UserPageQuery
	pageErr   error
}

func newFakeDirectory(users ...domain.User) *fakeDirectory {
	d := &fakeDirectory{
		users:  make(map[int64]domain.User),
		groups: make(map[int64]*domain.UserGroup),
	}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUser(_ context.Context, id int64) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *fakeDirectory) GetGroupWithMembers(_ context.Context, id int64) (*domain.UserGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[id]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

func (d *fakeDirectory) ListUsersPage(_ context.Context, query UserPageQuery) ([]domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pageCalls = append(d.pageCalls, query)
	if d.pageErr != nil {
		return nil, d.pageErr
	}

	ids := slices.Sorted(maps.Keys(d.users))
	page := make([]domain.User, 0, query.Limit)
	for _, id := range ids {
		u := d.users[id]
		if id <= query.AfterID || slices.Contains(query.ExcludeRoles, u.Role) {
			continue
		}
		page = append(page, u)
		if len(page) == query.Limit {
			break
		}
	}
	return page, nil
}

type fakeInbox struct {
	mu      sync.Mutex
	records []domain.Notification
	nextID  int64
	err     error
}

func (f *fakeInbox) CreateNotification(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.nextID++
	n.ID = f.nextID
	n.CreatedAt = time.Now()
	f.records = append(f.records, *n)
	return nil
}

func (f *fakeInbox) forUser(userID int64) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Notification
	for _, n := range f.records {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// fakeSender delivers to every token starting with "ok" and rejects the rest.
type fakeSender struct {
	mu       sync.Mutex
	tokens   []string
	messages []PushMessage
	panics   bool
}

func (f *fakeSender) Send(_ context.Context, deviceToken string, msg PushMessage) DeliveryOutcome {
	f.mu.Lock()
	f.tokens = append(f.tokens, deviceToken)
	f.messages = append(f.messages, msg)
	f.mu.Unlock()

	if f.panics {
		panic("sender exploded")
	}
	if strings.HasPrefix(deviceToken, "ok") {
		return DeliveryOutcome{Success: true, Message: "Notification sent successfully", Reason: ReasonDelivered}
	}
	return DeliveryOutcome{Success: false, Message: "Invalid device token", Reason: ReasonProviderRejected}
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakeScheduledRepo struct {
	mu          sync.Mutex
	items       map[int64]*domain.ScheduledNotification
	lockedUntil map[int64]time.Time
	lockedBy    map[int64]string
	nextID      int64

	claimErr    error
	completeErr map[int64]error
	deleteErr   error
	deleteCalls int
}

func newFakeScheduledRepo() *fakeScheduledRepo {
	return &fakeScheduledRepo{
		items:       make(map[int64]*domain.ScheduledNotification),
		lockedUntil: make(map[int64]time.Time),
		lockedBy:    make(map[int64]string),
		completeErr: make(map[int64]error),
	}
}

func (r *fakeScheduledRepo) add(n domain.ScheduledNotification) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	n.ID = r.nextID
	if n.Status == "" {
		n.Status = domain.ScheduledStatusPending
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	r.items[n.ID] = &n
	return n.ID
}

func (r *fakeScheduledRepo) get(id int64) *domain.ScheduledNotification {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok {
		return nil
	}
	copied := *n
	return &copied
}

func (r *fakeScheduledRepo) lease(id int64) (string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lockedBy[id], r.lockedUntil[id]
}

func (r *fakeScheduledRepo) CreateScheduled(_ context.Context, n *domain.ScheduledNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	n.ID = r.nextID
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	copied := *n
	r.items[n.ID] = &copied
	return nil
}

func (r *fakeScheduledRepo) GetScheduled(_ context.Context, id int64) (*domain.ScheduledNotification, error) {
	if n := r.get(id); n != nil {
		return n, nil
	}
	return nil, ErrScheduledNotFound
}

func (r *fakeScheduledRepo) ListScheduled(_ context.Context, filter ScheduledFilter) ([]domain.ScheduledNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.ScheduledNotification, 0)
	for _, n := range r.items {
		if filter.Status == "" || n.Status == filter.Status {
			out = append(out, *n)
		}
	}
	slices.SortFunc(out, func(a, b domain.ScheduledNotification) int {
		return cmp.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeScheduledRepo) ClaimDue(_ context.Context, owner string, now, leaseUntil time.Time) ([]domain.ScheduledNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claimErr != nil {
		return nil, r.claimErr
	}

	out := make([]domain.ScheduledNotification, 0)
	for id, n := range r.items {
		if n.Status != domain.ScheduledStatusPending || n.ScheduledAt.After(now) {
			continue
		}
		if until, ok := r.lockedUntil[id]; ok && until.After(now) {
			continue
		}
		r.lockedUntil[id] = leaseUntil
		r.lockedBy[id] = owner
		out = append(out, *n)
	}
	slices.SortFunc(out, func(a, b domain.ScheduledNotification) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *fakeScheduledRepo) RenewLease(_ context.Context, id int64, owner string, leaseUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok || n.Status != domain.ScheduledStatusPending || r.lockedBy[id] != owner {
		return ErrLeaseLost
	}
	r.lockedUntil[id] = leaseUntil
	return nil
}

func (r *fakeScheduledRepo) CompleteScheduled(_ context.Context, id int64, owner string, c Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.completeErr[id]; err != nil {
		return err
	}
	n, ok := r.items[id]
	if !ok || n.Status != domain.ScheduledStatusPending || r.lockedBy[id] != owner {
		return ErrNotPending
	}

	sentAt := c.SentAt
	n.Status = c.Status
	n.SuccessCount = c.SuccessCount
	n.FailCount = c.FailCount
	n.ErrorMessage = c.ErrorMessage
	n.SentAt = &sentAt
	delete(r.lockedUntil, id)
	delete(r.lockedBy, id)
	return nil
}

func (r *fakeScheduledRepo) CancelScheduled(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok {
		return ErrScheduledNotFound
	}
	if n.Status != domain.ScheduledStatusPending {
		return ErrNotPending
	}
	n.Status = domain.ScheduledStatusCancelled
	n.SentAt = &at
	delete(r.lockedUntil, id)
	delete(r.lockedBy, id)
	return nil
}

func (r *fakeScheduledRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteCalls++
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}

	var purged int64
	for id, n := range r.items {
		if n.Status.IsTerminal() && n.SentAt != nil && n.SentAt.Before(cutoff) {
			delete(r.items, id)
			purged++
		}
	}
	return purged, nil
}

func (r *fakeScheduledRepo) GetScheduledStats(_ context.Context) (*ScheduledStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats ScheduledStats
	for _, n := range r.items {
		switch n.Status {
		case domain.ScheduledStatusPending:
			stats.Pending++
		case domain.ScheduledStatusSent:
			stats.Sent++
		case domain.ScheduledStatusFailed:
			stats.Failed++
		case domain.ScheduledStatusCancelled:
			stats.Cancelled++
		}
	}
	return &stats, nil
}

type dispatchCall struct {
	method  string
	id      int64
	payload Payload
	opts    DispatchOptions
}

// stubDispatcher records calls and returns a fixed report or error.
// onCall runs after the call is recorded, outside the lock.
type stubDispatcher struct {
	mu     sync.Mutex
	calls  []dispatchCall
	report *DispatchReport
	err    error
	panic  any
	onCall func(ctx context.Context, call dispatchCall)
}

func (s *stubDispatcher) record(ctx context.Context, call dispatchCall) (*DispatchReport, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if s.onCall != nil {
		s.onCall(ctx, call)
	}
	if s.panic != nil {
		panic(s.panic)
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &DispatchReport{Results: []DispatchResult{}, Errors: []string{}}, nil
}

func (s *stubDispatcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubDispatcher) SendToUser(ctx context.Context, userID int64, payload Payload, opts DispatchOptions) (*DispatchReport, error) {
	return s.record(ctx, dispatchCall{method: "user", id: userID, payload: payload, opts: opts})
}

func (s *stubDispatcher) SendToGroup(ctx context.Context, groupID int64, payload Payload, opts DispatchOptions) (*DispatchReport, error) {
	return s.record(ctx, dispatchCall{method: "group", id: groupID, payload: payload, opts: opts})
}

func (s *stubDispatcher) SendToAll(ctx context.Context, payload Payload, opts DispatchOptions) (*DispatchReport, error) {
	return s.record(ctx, dispatchCall{method: "all", payload: payload, opts: opts})
}

// fakeClock is a settable time source shared by schedulers under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ptr[T any](v T) *T {
	return &v
}

func userWithToken(id int64, token string) domain.User {
	return domain.User{
		ID:          id,
		Name:        "user",
		Email:       "user@example.com",
		Role:        domain.RoleUser,
		DeviceToken: token,
	}
}
