package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/subscription"
)

func anchoredSub(id string, anchor int, expires time.Time, autoRenew bool) subscription.Subscription {
	return subscription.Subscription{
		ID:        id,
		MemberID:  "m1",
		Cadence:   billing.Monthly,
		Anchor:    anchor,
		ExpiresAt: expires,
		Status:    subscription.StatusActive,
		AutoRenew: autoRenew,
		CreatedAt: date(2023, time.December, 31),
		UpdatedAt: date(2023, time.December, 31),
	}
}

func renewDeps(subs *memSubscriptionStore, now time.Time) (RenewSubscriptionDeps, *memHistoryStore, *memOutbox) {
	history := &memHistoryStore{}
	out := newMemOutbox()
	return RenewSubscriptionDeps{
		MemberStore:       newMemMemberStore(activeMember("m1")),
		SubscriptionStore: subs,
		HistoryStore:      history,
		Outbox:            out,
		GenerateID:        fixedID(),
		Now:               fixedNow(now),
		GraceDays:         7,
	}, history, out
}

func TestExecuteRenewSubscription_SnapsBackToAnchor(t *testing.T) {
	subs := newMemSubscriptionStore(anchoredSub("s1", 31, date(2024, time.February, 29), false))
	deps, history, out := renewDeps(subs, date(2024, time.February, 20))

	got, err := ExecuteRenewSubscription(context.Background(), RenewSubscriptionInput{SubscriptionID: "s1"}, deps)
	if err != nil {
		t.Fatalf("ExecuteRenewSubscription: %v", err)
	}
	if !got.ExpiresAt.Equal(date(2024, time.March, 31)) || got.Anchor != 31 {
		t.Errorf("got expiry %s anchor %d, want 2024-03-31 and 31", got.ExpiresAt.Format(time.DateOnly), got.Anchor)
	}
	stored, _ := subs.GetByID(context.Background(), "s1")
	if !stored.ExpiresAt.Equal(got.ExpiresAt) {
		t.Errorf("stored expiry %s, want %s", stored.ExpiresAt.Format(time.DateOnly), got.ExpiresAt.Format(time.DateOnly))
	}
	if len(history.events) != 1 || history.events[0].Action != audit.ActionRenew || history.events[0].ActorID != SystemActor {
		t.Errorf("history = %+v", history.events)
	}
	if c := history.changes()[0]; c.PreviousExpiry != "2024-02-29" || c.NextExpiry != "2024-03-31" || c.Clamped {
		t.Errorf("change = %+v", c)
	}
	if len(out.all()) != 1 {
		t.Errorf("outbox entries = %d, want 1", len(out.all()))
	}
}

func TestExecuteRenewSubscription_FromGraceKeepsExpiryBase(t *testing.T) {
	sub := anchoredSub("s1", 15, date(2024, time.May, 15), false)
	sub.Status = subscription.StatusGrace
	deps, _, _ := renewDeps(newMemSubscriptionStore(sub), date(2024, time.May, 19))

	got, err := ExecuteRenewSubscription(context.Background(), RenewSubscriptionInput{SubscriptionID: "s1"}, deps)
	if err != nil {
		t.Fatalf("ExecuteRenewSubscription: %v", err)
	}
	if got.Status != subscription.StatusActive || !got.ExpiresAt.Equal(date(2024, time.June, 15)) {
		t.Errorf("got status %s expiry %s, want active 2024-06-15", got.Status, got.ExpiresAt.Format(time.DateOnly))
	}
}

func TestExecuteRenewSubscription_ExpectedExpiryGuardsRetries(t *testing.T) {
	subs := newMemSubscriptionStore(anchoredSub("s1", 10, date(2024, time.April, 10), false))
	deps, _, _ := renewDeps(subs, date(2024, time.April, 1))
	input := RenewSubscriptionInput{SubscriptionID: "s1", ExpectedExpiry: date(2024, time.April, 10)}

	if _, err := ExecuteRenewSubscription(context.Background(), input, deps); err != nil {
		t.Fatalf("first renewal: %v", err)
	}
	if _, err := ExecuteRenewSubscription(context.Background(), input, deps); !errors.Is(err, ErrConcurrentRenewal) {
		t.Errorf("retry err = %v, want ErrConcurrentRenewal", err)
	}
	stored, _ := subs.GetByID(context.Background(), "s1")
	if !stored.ExpiresAt.Equal(date(2024, time.May, 10)) {
		t.Errorf("expiry %s, want a single renewal to 2024-05-10", stored.ExpiresAt.Format(time.DateOnly))
	}
}

func TestExecuteRenewSubscription_StoreConflict(t *testing.T) {
	subs := newMemSubscriptionStore(anchoredSub("s1", 10, date(2024, time.April, 10), false))
	subs.conflict["s1"] = true
	deps, history, _ := renewDeps(subs, date(2024, time.April, 1))

	if _, err := ExecuteRenewSubscription(context.Background(), RenewSubscriptionInput{SubscriptionID: "s1"}, deps); !errors.Is(err, ErrConcurrentRenewal) {
		t.Errorf("err = %v, want ErrConcurrentRenewal", err)
	}
	if len(history.events) != 0 {
		t.Errorf("history written for a lost race: %+v", history.events)
	}
}

func TestExecuteRenewSubscription_Rejections(t *testing.T) {
	cancelled := anchoredSub("cancelled", 10, date(2024, time.April, 10), false)
	cancelled.Status = subscription.StatusCancelled
	pastGrace := anchoredSub("past-grace", 10, date(2024, time.March, 10), false)

	subs := newMemSubscriptionStore(cancelled, pastGrace)
	deps, _, _ := renewDeps(subs, date(2024, time.April, 1))

	tests := []struct {
		id   string
		want error
	}{
		{"", ErrInvalidInput},
		{"cancelled", subscription.ErrRequiresReactivation},
		{"past-grace", subscription.ErrRequiresReactivation},
	}
	for _, tt := range tests {
		if _, err := ExecuteRenewSubscription(context.Background(), RenewSubscriptionInput{SubscriptionID: tt.id}, deps); !errors.Is(err, tt.want) {
			t.Errorf("%q: err = %v, want %v", tt.id, err, tt.want)
		}
	}
}
