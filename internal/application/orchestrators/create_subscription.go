package orchestrators

import (
	"context"
	"errors"
	"time"

	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/subscription"
)

// CreateSubscriptionInput carries input for the orchestrator.
type CreateSubscriptionInput struct {
	MemberID  string
	Cadence   string
	StartDate time.Time // zero means today; its day-of-month becomes the anchor
	AutoRenew bool
	Actor     string
}

// CreateSubscriptionDeps holds dependencies for CreateSubscription.
type CreateSubscriptionDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	HistoryStore      HistoryStore
	Outbox            OutboxWriter
	Metrics           *metrics.Metrics
	GenerateID        func() string
	Now               func() time.Time
	GraceDays         int
}

// ExecuteCreateSubscription starts a member's subscription.
// PRE: member exists and is not archived; cadence is valid
// POST: Active subscription saved, signup recorded, welcome notice queued
// INVARIANT: A member holds at most one active or grace subscription
func ExecuteCreateSubscription(ctx context.Context, input CreateSubscriptionInput, deps CreateSubscriptionDeps) (subscription.Subscription, error) {
	if input.MemberID == "" {
		return subscription.Subscription{}, invalid(subscription.ErrEmptyMemberID)
	}
	cadence, err := billing.ParseCadence(input.Cadence)
	if err != nil {
		return subscription.Subscription{}, invalid(err)
	}

	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if m.IsArchived() {
		return subscription.Subscription{}, ErrMemberArchived
	}

	now := deps.Now()
	if err := ensureNoCurrentSubscription(ctx, deps.SubscriptionStore, m.ID, "", now.UTC(), deps.GraceDays); err != nil {
		return subscription.Subscription{}, err
	}

	start := todayOr(input.StartDate, now)
	sub, err := subscription.New(deps.GenerateID(), m.ID, cadence, start, input.AutoRenew, now)
	if err != nil {
		if errors.Is(err, billing.ErrZeroDate) || errors.Is(err, billing.ErrInvalidCadence) {
			return subscription.Subscription{}, invalid(err)
		}
		return subscription.Subscription{}, err
	}
	if err := deps.SubscriptionStore.Save(ctx, sub); err != nil {
		return subscription.Subscription{}, err
	}

	recordBillingEvent(ctx, deps.HistoryStore, deps.Metrics, deps.GenerateID(), now, billingRecord{
		action:      audit.ActionSignup,
		actor:       input.Actor,
		description: "subscription started " + start.Format(time.DateOnly),
		after:       sub,
	})
	enqueueNotice(ctx, noticeDeps{Outbox: deps.Outbox, GenerateID: deps.GenerateID, Now: deps.Now, GraceDays: deps.GraceDays},
		audit.ActionSignup, m, sub)
	return sub, nil
}
