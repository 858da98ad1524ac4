package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/subscription"
)

// RenewSubscriptionInput carries input for a maintenance renewal.
type RenewSubscriptionInput struct {
	SubscriptionID string
	// ExpectedExpiry, when set, must match the stored expiry. A caller that
	// retries with the same value cannot renew twice.
	ExpectedExpiry time.Time
	Actor          string
}

// RenewSubscriptionDeps holds dependencies for RenewSubscription.
type RenewSubscriptionDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	HistoryStore      HistoryStore
	Outbox            OutboxWriter
	Metrics           *metrics.Metrics
	GenerateID        func() string
	Now               func() time.Time
	GraceDays         int
}

// ExecuteRenewSubscription extends an active or grace subscription by one
// period from its current expiry, keeping the anchor.
// PRE: subscription exists and is active or in grace
// POST: ExpiresAt advanced one period; renew event recorded; receipt queued
// INVARIANT: Two concurrent renewals of the same expiry advance it once
func ExecuteRenewSubscription(ctx context.Context, input RenewSubscriptionInput, deps RenewSubscriptionDeps) (subscription.Subscription, error) {
	if input.SubscriptionID == "" {
		return subscription.Subscription{}, invalid(subscription.ErrEmptyID)
	}
	sub, err := deps.SubscriptionStore.GetByID(ctx, input.SubscriptionID)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if !input.ExpectedExpiry.IsZero() && !billing.DateOf(input.ExpectedExpiry).Equal(sub.ExpiresAt) {
		return subscription.Subscription{}, fmt.Errorf("subscription %s expires %s, not %s: %w",
			sub.ID, sub.ExpiresAt.Format(time.DateOnly), input.ExpectedExpiry.Format(time.DateOnly), ErrConcurrentRenewal)
	}

	now := deps.Now()
	if sub.EffectiveStatus(now.UTC(), deps.GraceDays) == subscription.StatusLapsed {
		return subscription.Subscription{}, subscription.ErrRequiresReactivation
	}

	before := sub
	if err := sub.Renew(now); err != nil {
		return subscription.Subscription{}, err
	}
	if err := deps.SubscriptionStore.SaveIfUnchanged(ctx, sub, before); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return subscription.Subscription{}, fmt.Errorf("%w: %w", ErrConcurrentRenewal, err)
		}
		return subscription.Subscription{}, err
	}

	recordBillingEvent(ctx, deps.HistoryStore, deps.Metrics, deps.GenerateID(), now, billingRecord{
		action:      audit.ActionRenew,
		actor:       input.Actor,
		description: "renewed from current expiry",
		before:      &before,
		after:       sub,
	})
	if m, ok := memberForNotice(ctx, deps.MemberStore, sub); ok {
		enqueueNotice(ctx, noticeDeps{Outbox: deps.Outbox, GenerateID: deps.GenerateID, Now: deps.Now, GraceDays: deps.GraceDays},
			audit.ActionRenew, m, sub)
	}
	return sub, nil
}

// memberForNotice loads the subscription's member, logging failures.
func memberForNotice(ctx context.Context, store MemberStore, sub subscription.Subscription) (member.Member, bool) {
	if store == nil {
		return member.Member{}, false
	}
	m, err := store.GetByID(ctx, sub.MemberID)
	if err != nil {
		slog.Warn("notice_member_lookup_failed", "subscription_id", sub.ID, "member_id", sub.MemberID, "error", err)
		return member.Member{}, false
	}
	return m, true
}
