package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/subscription"
)

// CancelSubscriptionInput carries input for a cancellation.
type CancelSubscriptionInput struct {
	SubscriptionID string
	Actor          string
}

// CancelSubscriptionDeps holds dependencies for CancelSubscription.
type CancelSubscriptionDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	HistoryStore      HistoryStore
	Outbox            OutboxWriter
	Metrics           *metrics.Metrics
	GenerateID        func() string
	Now               func() time.Time
	GraceDays         int
}

// ExecuteCancelSubscription stops renewals. Access runs until the current expiry.
// PRE: subscription exists and is not cancelled
// POST: Status cancelled, AutoRenew off, cancel event recorded
func ExecuteCancelSubscription(ctx context.Context, input CancelSubscriptionInput, deps CancelSubscriptionDeps) (subscription.Subscription, error) {
	if input.SubscriptionID == "" {
		return subscription.Subscription{}, invalid(subscription.ErrEmptyID)
	}
	sub, err := deps.SubscriptionStore.GetByID(ctx, input.SubscriptionID)
	if err != nil {
		return subscription.Subscription{}, err
	}

	now := deps.Now()
	before := sub
	if err := sub.Cancel(now); err != nil {
		return subscription.Subscription{}, err
	}
	if err := deps.SubscriptionStore.SaveIfUnchanged(ctx, sub, before); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return subscription.Subscription{}, fmt.Errorf("%w: %w", ErrConcurrentRenewal, err)
		}
		return subscription.Subscription{}, err
	}

	recordBillingEvent(ctx, deps.HistoryStore, deps.Metrics, deps.GenerateID(), now, billingRecord{
		action:      audit.ActionCancel,
		actor:       input.Actor,
		description: "cancelled; access until expiry",
		before:      &before,
		after:       sub,
	})
	if m, ok := memberForNotice(ctx, deps.MemberStore, sub); ok {
		enqueueNotice(ctx, noticeDeps{Outbox: deps.Outbox, GenerateID: deps.GenerateID, Now: deps.Now, GraceDays: deps.GraceDays},
			audit.ActionCancel, m, sub)
	}
	return sub, nil
}
