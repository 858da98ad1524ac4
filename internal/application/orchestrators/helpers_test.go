package orchestrators

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gymdesk/internal/adapters/storage"
	subscriptionStore "gymdesk/internal/adapters/storage/subscription"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/subscription"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixedNow returns a clock stopped at t.
func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fixedID returns a generator of id-1, id-2, ...
func fixedID() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type memMemberStore struct {
	members map[string]member.Member
}

func newMemMemberStore(members ...member.Member) *memMemberStore {
	s := &memMemberStore{members: map[string]member.Member{}}
	for _, m := range members {
		s.members[m.ID] = m
	}
	return s
}

func (s *memMemberStore) GetByID(_ context.Context, id string) (member.Member, error) {
	m, ok := s.members[id]
	if !ok {
		return member.Member{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *memMemberStore) GetByEmail(_ context.Context, email string) (member.Member, error) {
	for _, m := range s.members {
		if m.Email == member.NormalizeEmail(email) {
			return m, nil
		}
	}
	return member.Member{}, storage.ErrNotFound
}

func (s *memMemberStore) Save(_ context.Context, m member.Member) error {
	s.members[m.ID] = m
	return nil
}

type memSubscriptionStore struct {
	mu   sync.Mutex
	subs map[string]subscription.Subscription
	// conflict makes SaveIfUnchanged fail for these IDs as if another writer won.
	conflict map[string]bool
	// afterGet and afterListDue run once, outside the lock, after the read
	// returns. Tests use them to commit a competing write mid-operation.
	afterGet     func()
	afterListDue func()
}

func newMemSubscriptionStore(subs ...subscription.Subscription) *memSubscriptionStore {
	s := &memSubscriptionStore{subs: map[string]subscription.Subscription{}, conflict: map[string]bool{}}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *memSubscriptionStore) GetByID(_ context.Context, id string) (subscription.Subscription, error) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	hook := s.afterGet
	s.afterGet = nil
	s.mu.Unlock()
	if !ok {
		return subscription.Subscription{}, storage.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return sub, nil
}

func (s *memSubscriptionStore) Save(_ context.Context, sub subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = sub
	return nil
}

func (s *memSubscriptionStore) SaveIfUnchanged(_ context.Context, sub, prev subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.subs[sub.ID]
	if !ok {
		return storage.ErrNotFound
	}
	changed := !current.ExpiresAt.Equal(prev.ExpiresAt) || current.Status != prev.Status || current.AutoRenew != prev.AutoRenew
	if s.conflict[sub.ID] || changed {
		return fmt.Errorf("subscription %s: %w", sub.ID, storage.ErrConflict)
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *memSubscriptionStore) ListByMember(_ context.Context, memberID string) ([]subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscription.Subscription
	for _, sub := range s.subs {
		if sub.MemberID == memberID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *memSubscriptionStore) ListDue(_ context.Context, asOf time.Time, after subscriptionStore.DueCursor, limit int) ([]subscription.Subscription, error) {
	due := s.listDue(asOf, after, limit)
	s.mu.Lock()
	hook := s.afterListDue
	s.afterListDue = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return due, nil
}

func (s *memSubscriptionStore) listDue(asOf time.Time, after subscriptionStore.DueCursor, limit int) []subscription.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []subscription.Subscription
	for _, sub := range s.subs {
		if sub.Status != subscription.StatusActive && sub.Status != subscription.StatusGrace {
			continue
		}
		if sub.ExpiresAt.After(asOf) {
			continue
		}
		if !after.ExpiresAt.IsZero() {
			if sub.ExpiresAt.Before(after.ExpiresAt) || (sub.ExpiresAt.Equal(after.ExpiresAt) && sub.ID <= after.ID) {
				continue
			}
		}
		due = append(due, sub)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ExpiresAt.Equal(due[j].ExpiresAt) {
			return due[i].ExpiresAt.Before(due[j].ExpiresAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due
}

type memHistoryStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *memHistoryStore) Save(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memHistoryStore) changes() []audit.BillingChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.BillingChange
	for _, e := range s.events {
		c, _ := e.BillingChange()
		out = append(out, c)
	}
	return out
}

type memOutbox struct {
	mu      sync.Mutex
	entries map[string]outbox.Entry
	order   []string
}

func newMemOutbox() *memOutbox {
	return &memOutbox{entries: map[string]outbox.Entry{}}
}

func (s *memOutbox) GetByID(_ context.Context, id string) (outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return outbox.Entry{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *memOutbox) Save(_ context.Context, e outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.entries[e.ID] = e
	return nil
}

func (s *memOutbox) ListPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	return s.filter(limit, func(e outbox.Entry) bool {
		return e.Status == outbox.StatusPending || e.Status == outbox.StatusRetrying
	}), nil
}

func (s *memOutbox) ListByStatus(_ context.Context, status string, limit int) ([]outbox.Entry, error) {
	return s.filter(limit, func(e outbox.Entry) bool {
		return status == "" || e.Status == status
	}), nil
}

func (s *memOutbox) filter(limit int, keep func(outbox.Entry) bool) []outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Entry
	for _, id := range s.order {
		if e := s.entries[id]; keep(e) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// all returns every entry in insertion order.
func (s *memOutbox) all() []outbox.Entry {
	return s.filter(-1, func(outbox.Entry) bool { return true })
}

func activeMember(id string) member.Member {
	return member.Member{
		ID:        id,
		Name:      "Member " + id,
		Email:     id + "@example.com",
		Status:    member.StatusActive,
		CreatedAt: date(2024, time.January, 1),
	}
}
