package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/subscription"
)

// ReactivateSubscriptionInput carries input for a reactivation.
type ReactivateSubscriptionInput struct {
	SubscriptionID string
	PaymentDate    time.Time // zero means today; becomes the new anchor
	Cadence        string    // empty keeps the current cadence
	Actor          string
}

// ReactivateSubscriptionDeps holds dependencies for ReactivateSubscription.
type ReactivateSubscriptionDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	HistoryStore      HistoryStore
	Outbox            OutboxWriter
	Metrics           *metrics.Metrics
	GenerateID        func() string
	Now               func() time.Time
	GraceDays         int
}

// ExecuteReactivateSubscription restarts a lapsed or cancelled subscription
// from a payment date. The old anchor is discarded.
// PRE: subscription exists and is lapsed or cancelled (stored or effective);
// its member is not archived and holds no other current subscription
// POST: Anchor = payment day, ExpiresAt one period after payment, Status active
// INVARIANT: A member holds at most one active or grace subscription
func ExecuteReactivateSubscription(ctx context.Context, input ReactivateSubscriptionInput, deps ReactivateSubscriptionDeps) (subscription.Subscription, error) {
	if input.SubscriptionID == "" {
		return subscription.Subscription{}, invalid(subscription.ErrEmptyID)
	}
	sub, err := deps.SubscriptionStore.GetByID(ctx, input.SubscriptionID)
	if err != nil {
		return subscription.Subscription{}, err
	}

	cadence := sub.Cadence
	if input.Cadence != "" {
		if cadence, err = billing.ParseCadence(input.Cadence); err != nil {
			return subscription.Subscription{}, invalid(err)
		}
	}

	now := deps.Now()
	payment := todayOr(input.PaymentDate, now)
	before := sub
	// A subscription past its grace period may not have been swept yet.
	if sub.EffectiveStatus(now.UTC(), deps.GraceDays) == subscription.StatusLapsed {
		sub.MarkLapsed(now)
	}
	if err := sub.Reactivate(payment, cadence, now); err != nil {
		return subscription.Subscription{}, err
	}

	m, err := deps.MemberStore.GetByID(ctx, sub.MemberID)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if m.IsArchived() {
		return subscription.Subscription{}, ErrMemberArchived
	}
	if err := ensureNoCurrentSubscription(ctx, deps.SubscriptionStore, m.ID, sub.ID, now.UTC(), deps.GraceDays); err != nil {
		return subscription.Subscription{}, err
	}
	if err := deps.SubscriptionStore.SaveIfUnchanged(ctx, sub, before); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return subscription.Subscription{}, fmt.Errorf("%w: %w", ErrConcurrentRenewal, err)
		}
		return subscription.Subscription{}, err
	}

	recordBillingEvent(ctx, deps.HistoryStore, deps.Metrics, deps.GenerateID(), now, billingRecord{
		action:      audit.ActionReactivate,
		actor:       input.Actor,
		description: "reactivated on payment " + payment.Format(time.DateOnly),
		before:      &before,
		after:       sub,
	})
	if m, ok := memberForNotice(ctx, deps.MemberStore, sub); ok {
		enqueueNotice(ctx, noticeDeps{Outbox: deps.Outbox, GenerateID: deps.GenerateID, Now: deps.Now, GraceDays: deps.GraceDays},
			audit.ActionReactivate, m, sub)
	}
	return sub, nil
}
