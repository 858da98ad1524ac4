package projections

import (
	"context"

	auditStore "gymdesk/internal/adapters/storage/audit"
	"gymdesk/internal/adapters/storage/member"
	domainAudit "gymdesk/internal/domain/audit"
	domainMember "gymdesk/internal/domain/member"
	domainSubscription "gymdesk/internal/domain/subscription"
)

// MemberStore interface for member queries.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (domainMember.Member, error)
	List(ctx context.Context, filter member.ListFilter) ([]domainMember.Member, error)
}

// SubscriptionStore interface for subscription queries.
type SubscriptionStore interface {
	GetByID(ctx context.Context, id string) (domainSubscription.Subscription, error)
	ListByMember(ctx context.Context, memberID string) ([]domainSubscription.Subscription, error)
}

// HistoryStore interface for billing history queries.
type HistoryStore interface {
	List(ctx context.Context, filter auditStore.Filter, limit int) ([]domainAudit.Event, error)
}
