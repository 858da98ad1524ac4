package projections

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymdesk/internal/adapters/storage"
	auditStore "gymdesk/internal/adapters/storage/audit"
	domainAudit "gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/billing"
	domainSubscription "gymdesk/internal/domain/subscription"
)

type mockHistoryStore struct {
	events []domainAudit.Event
	filter auditStore.Filter
	limit  int
}

// List records the filter and returns seeded events.
func (m *mockHistoryStore) List(_ context.Context, filter auditStore.Filter, limit int) ([]domainAudit.Event, error) {
	m.filter = filter
	m.limit = limit
	return m.events, nil
}

func TestQueryGetBillingHistory(t *testing.T) {
	s, _ := domainSubscription.New("s1", "m1", billing.Monthly, date(2024, time.January, 31), true, date(2024, time.January, 31))
	renewal := domainAudit.NewEvent("e2", date(2024, time.February, 29), domainAudit.CategoryBilling, domainAudit.ActionRenew).
		WithActor("system").
		WithResource(domainAudit.ResourceSubscription, "s1").
		WithBillingChange(domainAudit.BillingChange{PreviousExpiry: "2024-02-29", NextExpiry: "2024-03-31", Anchor: 31, Cadence: "MONTHLY"})
	plain := domainAudit.NewEvent("e1", date(2024, time.January, 31), domainAudit.CategoryBilling, domainAudit.ActionSignup).
		WithResource(domainAudit.ResourceSubscription, "s1")

	history := &mockHistoryStore{events: []domainAudit.Event{renewal, plain}}
	deps := GetBillingHistoryDeps{
		SubscriptionStore: &mockOverviewSubscriptionStore{subs: map[string]domainSubscription.Subscription{s.ID: s}},
		HistoryStore:      history,
	}

	got, err := QueryGetBillingHistory(context.Background(), GetBillingHistoryQuery{SubscriptionID: "s1"}, deps)
	if err != nil {
		t.Fatalf("QueryGetBillingHistory: %v", err)
	}
	if history.limit != DefaultHistoryLimit {
		t.Errorf("limit = %d, want %d", history.limit, DefaultHistoryLimit)
	}
	if history.filter.ResourceID == nil || *history.filter.ResourceID != "s1" {
		t.Errorf("filter resource = %v, want s1", history.filter.ResourceID)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].PreviousExpiry != "2024-02-29" || got[0].NextExpiry != "2024-03-31" || got[0].Anchor != 31 || got[0].Actor != "system" {
		t.Errorf("renewal entry = %+v", got[0])
	}
	if got[1].Action != "signup" || got[1].NextExpiry != "" {
		t.Errorf("signup entry = %+v", got[1])
	}

	if _, err := QueryGetBillingHistory(context.Background(), GetBillingHistoryQuery{SubscriptionID: "missing"}, deps); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want storage.ErrNotFound", err)
	}
}
