package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymdesk/internal/domain/subscription"
)

// TestExecuteRenewalSweep_CancelAfterListing verifies a cancel committed
// between the sweep's listing and its write wins.
func TestExecuteRenewalSweep_CancelAfterListing(t *testing.T) {
	ctx := context.Background()
	subs := newMemSubscriptionStore(anchoredSub("s1", 10, date(2024, time.April, 10), true))
	deps, history, _ := sweepDeps(subs, date(2024, time.April, 10))
	subs.afterListDue = func() {
		if _, err := ExecuteCancelSubscription(ctx, CancelSubscriptionInput{SubscriptionID: "s1"}, CancelSubscriptionDeps(deps)); err != nil {
			t.Errorf("cancel: %v", err)
		}
	}

	report, err := ExecuteRenewalSweep(ctx, RenewalSweepInput{}, deps)
	if err != nil {
		t.Fatalf("ExecuteRenewalSweep: %v", err)
	}
	if report.Renewed != 0 || report.Conflicts != 1 {
		t.Errorf("report = %+v, want 0 renewed and 1 conflict", report)
	}

	got, _ := subs.GetByID(ctx, "s1")
	if got.Status != subscription.StatusCancelled || got.AutoRenew || !got.ExpiresAt.Equal(date(2024, time.April, 10)) {
		t.Errorf("got status %s autoRenew %v expires %s, want cancelled at 2024-04-10",
			got.Status, got.AutoRenew, got.ExpiresAt.Format(time.DateOnly))
	}
	if n := len(history.events); n != 1 {
		t.Errorf("history rows = %d, want only the cancel", n)
	}
}

// TestExecuteCancelSubscription_RenewedAfterLoad verifies cancel does not
// roll back a renewal committed after it loaded the row.
func TestExecuteCancelSubscription_RenewedAfterLoad(t *testing.T) {
	ctx := context.Background()
	subs := newMemSubscriptionStore(anchoredSub("s1", 10, date(2024, time.April, 10), false))
	deps, _, _ := renewDeps(subs, date(2024, time.April, 1))
	subs.afterGet = func() {
		if _, err := ExecuteRenewSubscription(ctx, RenewSubscriptionInput{SubscriptionID: "s1"}, deps); err != nil {
			t.Errorf("renew: %v", err)
		}
	}

	_, err := ExecuteCancelSubscription(ctx, CancelSubscriptionInput{SubscriptionID: "s1"}, CancelSubscriptionDeps(deps))
	if !errors.Is(err, ErrConcurrentRenewal) {
		t.Fatalf("cancel err = %v, want ErrConcurrentRenewal", err)
	}

	got, _ := subs.GetByID(ctx, "s1")
	if got.Status != subscription.StatusActive || !got.ExpiresAt.Equal(date(2024, time.May, 10)) {
		t.Errorf("got status %s expires %s, want active until 2024-05-10", got.Status, got.ExpiresAt.Format(time.DateOnly))
	}
}

// TestExecuteRenewSubscription_CancelledAfterLoad verifies a renewal loses to
// a cancel committed after it loaded the row.
func TestExecuteRenewSubscription_CancelledAfterLoad(t *testing.T) {
	ctx := context.Background()
	subs := newMemSubscriptionStore(anchoredSub("s1", 10, date(2024, time.April, 10), true))
	deps, history, _ := renewDeps(subs, date(2024, time.April, 1))
	subs.afterGet = func() {
		if _, err := ExecuteCancelSubscription(ctx, CancelSubscriptionInput{SubscriptionID: "s1"}, CancelSubscriptionDeps(deps)); err != nil {
			t.Errorf("cancel: %v", err)
		}
	}

	_, err := ExecuteRenewSubscription(ctx, RenewSubscriptionInput{SubscriptionID: "s1"}, deps)
	if !errors.Is(err, ErrConcurrentRenewal) {
		t.Fatalf("renew err = %v, want ErrConcurrentRenewal", err)
	}

	got, _ := subs.GetByID(ctx, "s1")
	if got.Status != subscription.StatusCancelled || !got.ExpiresAt.Equal(date(2024, time.April, 10)) {
		t.Errorf("got status %s expires %s, want cancelled at 2024-04-10", got.Status, got.ExpiresAt.Format(time.DateOnly))
	}
	if n := len(history.events); n != 1 {
		t.Errorf("history rows = %d, want only the cancel", n)
	}
}
