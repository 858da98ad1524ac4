package projections

import (
	"context"
	"time"

	auditStore "gymdesk/internal/adapters/storage/audit"
	domainAudit "gymdesk/internal/domain/audit"
)

// DefaultHistoryLimit caps history results when no limit is given.
const DefaultHistoryLimit = 100

// GetBillingHistoryQuery carries query parameters.
type GetBillingHistoryQuery struct {
	SubscriptionID string
	Limit          int
}

// BillingHistoryEntry is one billing change.
type BillingHistoryEntry struct {
	ID             string    `json:"id"`
	At             time.Time `json:"at"`
	Action         string    `json:"action"`
	Actor          string    `json:"actor"`
	Description    string    `json:"description"`
	PreviousExpiry string    `json:"previous_expiry,omitempty"`
	NextExpiry     string    `json:"next_expiry"`
	PreviousAnchor int       `json:"previous_anchor,omitempty"`
	Anchor         int       `json:"anchor"`
	Cadence        string    `json:"cadence"`
	Clamped        bool      `json:"clamped"`
}

// GetBillingHistoryDeps holds dependencies for GetBillingHistory.
type GetBillingHistoryDeps struct {
	SubscriptionStore SubscriptionStore
	HistoryStore      HistoryStore
}

// QueryGetBillingHistory lists a subscription's billing changes, newest first.
// PRE: Valid subscription ID
// POST: Returns storage.ErrNotFound for an unknown subscription
func QueryGetBillingHistory(ctx context.Context, query GetBillingHistoryQuery, deps GetBillingHistoryDeps) ([]BillingHistoryEntry, error) {
	if _, err := deps.SubscriptionStore.GetByID(ctx, query.SubscriptionID); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	category := domainAudit.CategoryBilling
	resourceType := domainAudit.ResourceSubscription
	events, err := deps.HistoryStore.List(ctx, auditStore.Filter{
		Category:     &category,
		ResourceType: &resourceType,
		ResourceID:   &query.SubscriptionID,
	}, limit)
	if err != nil {
		return nil, err
	}

	out := make([]BillingHistoryEntry, 0, len(events))
	for _, e := range events {
		entry := BillingHistoryEntry{
			ID:          e.ID,
			At:          e.Timestamp,
			Action:      string(e.Action),
			Actor:       e.ActorID,
			Description: e.Description,
		}
		if change, err := e.BillingChange(); err == nil {
			entry.PreviousExpiry = change.PreviousExpiry
			entry.NextExpiry = change.NextExpiry
			entry.PreviousAnchor = change.PreviousAnchor
			entry.Anchor = change.Anchor
			entry.Cadence = change.Cadence
			entry.Clamped = change.Clamped
		}
		out = append(out, entry)
	}
	return out, nil
}
