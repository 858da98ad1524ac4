package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage"
	subscriptionStore "gymdesk/internal/adapters/storage/subscription"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/subscription"
)

// Sweep limits.
const (
	DefaultSweepBatchSize = 200
	// MaxCatchUpCycles bounds how many missed periods one sweep renews for a
	// single auto-renewing subscription.
	MaxCatchUpCycles = 36
)

// RenewalSweepInput carries input for one sweep run.
type RenewalSweepInput struct {
	AsOf      time.Time // zero means today
	BatchSize int
}

// RenewalSweepDeps holds dependencies for the sweep.
type RenewalSweepDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	HistoryStore      HistoryStore
	Outbox            OutboxWriter
	Metrics           *metrics.Metrics
	GenerateID        func() string
	Now               func() time.Time
	GraceDays         int
}

// SweepReport summarises one sweep.
type SweepReport struct {
	AsOf          string `json:"as_of"`
	Scanned       int    `json:"scanned"`
	Renewed       int    `json:"renewed"`
	CyclesRenewed int    `json:"cycles_renewed"`
	CatchUpCapped int    `json:"catch_up_capped"`
	Grace         int    `json:"grace"`
	Lapsed        int    `json:"lapsed"`
	Conflicts     int    `json:"conflicts"`
	Failed        int    `json:"failed"`
}

// ExecuteRenewalSweep processes every active or grace subscription due on or
// before AsOf. Auto-renewing ones are renewed period by period from their
// expiry until it passes AsOf; the rest move to grace or lapse.
// PRE: deps are initialised
// POST: Every due subscription handled once; per-item failures are counted, not returned
// INVARIANT: Anchors are never changed by the sweep
func ExecuteRenewalSweep(ctx context.Context, input RenewalSweepInput, deps RenewalSweepDeps) (SweepReport, error) {
	started := time.Now()
	asOf := todayOr(input.AsOf, deps.Now())
	batch := input.BatchSize
	if batch <= 0 {
		batch = DefaultSweepBatchSize
	}
	report := SweepReport{AsOf: asOf.Format(time.DateOnly)}

	var cursor subscriptionStore.DueCursor
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		due, err := deps.SubscriptionStore.ListDue(ctx, asOf, cursor, batch)
		if err != nil {
			return report, fmt.Errorf("list due subscriptions: %w", err)
		}
		for _, sub := range due {
			report.Scanned++
			if err := sweepOne(ctx, sub, asOf, deps, &report); err != nil {
				if errors.Is(err, storage.ErrConflict) {
					report.Conflicts++
					slog.Info("renewal_sweep_conflict", "subscription_id", sub.ID)
				} else {
					report.Failed++
					slog.Error("renewal_sweep_item_failed", "subscription_id", sub.ID, "error", err)
				}
			}
		}
		if len(due) < batch {
			break
		}
		cursor = subscriptionStore.After(due[len(due)-1])
	}

	deps.Metrics.ObserveSweep(time.Since(started))
	slog.Info("renewal_sweep_complete",
		"as_of", report.AsOf,
		"scanned", report.Scanned,
		"renewed", report.Renewed,
		"cycles", report.CyclesRenewed,
		"grace", report.Grace,
		"lapsed", report.Lapsed,
		"conflicts", report.Conflicts,
		"failed", report.Failed,
	)
	return report, nil
}

func sweepOne(ctx context.Context, sub subscription.Subscription, asOf time.Time, deps RenewalSweepDeps, report *SweepReport) error {
	now := deps.Now()
	notices := noticeDeps{Outbox: deps.Outbox, GenerateID: deps.GenerateID, Now: deps.Now, GraceDays: deps.GraceDays}
	original := sub

	if sub.AutoRenew {
		type period struct{ before, after subscription.Subscription }
		var steps []period
		for !sub.ExpiresAt.After(asOf) && len(steps) < MaxCatchUpCycles {
			prev := sub
			if err := sub.Renew(now); err != nil {
				return err
			}
			steps = append(steps, period{before: prev, after: sub})
		}
		if err := deps.SubscriptionStore.SaveIfUnchanged(ctx, sub, original); err != nil {
			return err
		}
		report.Renewed++
		report.CyclesRenewed += len(steps)
		if !sub.ExpiresAt.After(asOf) {
			report.CatchUpCapped++
			slog.Warn("renewal_catch_up_capped", "subscription_id", sub.ID, "expires_at", sub.ExpiresAt.Format(time.DateOnly))
		}

		// One history row per period so the ledger shows every cycle.
		for i, p := range steps {
			recordBillingEvent(ctx, deps.HistoryStore, deps.Metrics, deps.GenerateID(), now, billingRecord{
				action:      audit.ActionRenew,
				actor:       SystemActor,
				description: fmt.Sprintf("auto-renewal %d of %d", i+1, len(steps)),
				before:      &p.before,
				after:       p.after,
			})
		}
		if m, ok := memberForNotice(ctx, deps.MemberStore, sub); ok {
			enqueueNotice(ctx, notices, audit.ActionRenew, m, sub)
		}
		return nil
	}

	switch sub.EffectiveStatus(asOf, deps.GraceDays) {
	case subscription.StatusGrace:
		if sub.Status == subscription.StatusGrace {
			return nil
		}
		sub.MarkGrace(now)
		if err := deps.SubscriptionStore.SaveIfUnchanged(ctx, sub, original); err != nil {
			return err
		}
		report.Grace++
		recordBillingEvent(ctx, deps.HistoryStore, deps.Metrics, deps.GenerateID(), now, billingRecord{
			action: audit.ActionGrace, actor: SystemActor, description: "expired; grace period started",
			before: &original, after: sub,
		})
		if m, ok := memberForNotice(ctx, deps.MemberStore, sub); ok {
			enqueueNotice(ctx, notices, audit.ActionGrace, m, sub)
		}
	case subscription.StatusLapsed:
		sub.MarkLapsed(now)
		if err := deps.SubscriptionStore.SaveIfUnchanged(ctx, sub, original); err != nil {
			return err
		}
		report.Lapsed++
		recordBillingEvent(ctx, deps.HistoryStore, deps.Metrics, deps.GenerateID(), now, billingRecord{
			action: audit.ActionLapse, actor: SystemActor, description: "grace period ended without renewal",
			before: &original, after: sub,
		})
		if m, ok := memberForNotice(ctx, deps.MemberStore, sub); ok {
			enqueueNotice(ctx, notices, audit.ActionLapse, m, sub)
		}
	}
	return nil
}
