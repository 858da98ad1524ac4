package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/metrics"
	subscriptionStore "gymdesk/internal/adapters/storage/subscription"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/subscription"
)

// Orchestrator errors. Validation failures wrap ErrInvalidInput so the HTTP
// edge can map them to 400 without knowing every domain sentinel.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrMemberArchived     = errors.New("member is archived")
	ErrActiveSubscription = errors.New("member already has a current subscription")
	ErrConcurrentRenewal  = errors.New("subscription changed concurrently; reload and retry")
)

// SystemActor is the actor recorded for scheduled changes.
const SystemActor = "system"

// MemberStore is the member persistence the billing use cases need.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (member.Member, error)
	GetByEmail(ctx context.Context, email string) (member.Member, error)
	Save(ctx context.Context, m member.Member) error
}

// SubscriptionStore is the subscription persistence the billing use cases need.
type SubscriptionStore interface {
	GetByID(ctx context.Context, id string) (subscription.Subscription, error)
	Save(ctx context.Context, s subscription.Subscription) error
	SaveIfUnchanged(ctx context.Context, s, prev subscription.Subscription) error
	ListByMember(ctx context.Context, memberID string) ([]subscription.Subscription, error)
	ListDue(ctx context.Context, asOf time.Time, after subscriptionStore.DueCursor, limit int) ([]subscription.Subscription, error)
}

// HistoryStore records billing history.
type HistoryStore interface {
	Save(ctx context.Context, e audit.Event) error
}

// OutboxWriter queues side effects.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// billingRecord describes one change to a subscription's billing cycle.
type billingRecord struct {
	action      audit.Action
	actor       string
	description string
	before      *subscription.Subscription
	after       subscription.Subscription
}

// recordBillingEvent writes the billing history row, counts the change and
// logs it. History failures are logged, not returned: the subscription row is
// already committed.
func recordBillingEvent(ctx context.Context, store HistoryStore, m *metrics.Metrics, id string, now time.Time, rec billingRecord) {
	change := audit.BillingChange{
		NextExpiry: rec.after.ExpiresAt.Format(time.DateOnly),
		Anchor:     rec.after.Anchor,
		Cadence:    string(rec.after.Cadence),
		Clamped:    billing.Clamped(rec.after.Anchor, rec.after.ExpiresAt),
	}
	if rec.before != nil {
		change.PreviousExpiry = rec.before.ExpiresAt.Format(time.DateOnly)
		change.PreviousAnchor = rec.before.Anchor
	}
	actor := rec.actor
	if actor == "" {
		actor = SystemActor
	}

	event := audit.NewEvent(id, now, audit.CategoryBilling, rec.action).
		WithActor(actor).
		WithResource(audit.ResourceSubscription, rec.after.ID).
		WithDescription(rec.description).
		WithBillingChange(change)

	if err := store.Save(ctx, event); err != nil {
		slog.Error("billing_history_save_failed", "subscription_id", rec.after.ID, "action", rec.action, "error", err)
	}
	m.BillingEvent(string(rec.action), change.Cadence, change.Clamped)
	slog.Info("billing_event",
		"event", "subscription_"+string(rec.action),
		"subscription_id", rec.after.ID,
		"member_id", rec.after.MemberID,
		"previous_expiry", change.PreviousExpiry,
		"next_expiry", change.NextExpiry,
		"anchor", change.Anchor,
		"clamped", change.Clamped,
	)
}

// ensureNoCurrentSubscription fails with ErrActiveSubscription when the
// member holds an active or grace subscription other than exceptID.
func ensureNoCurrentSubscription(ctx context.Context, store SubscriptionStore, memberID, exceptID string, asOf time.Time, graceDays int) error {
	existing, err := store.ListByMember(ctx, memberID)
	if err != nil {
		return err
	}
	for _, s := range existing {
		if s.ID == exceptID {
			continue
		}
		switch s.EffectiveStatus(asOf, graceDays) {
		case subscription.StatusActive, subscription.StatusGrace:
			return ErrActiveSubscription
		}
	}
	return nil
}

// todayOr returns d, or the calendar date of now when d is zero.
func todayOr(d, now time.Time) time.Time {
	if d.IsZero() {
		return billing.DateOf(now.UTC())
	}
	return billing.DateOf(d)
}
