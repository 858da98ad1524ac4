package subscription

import (
	"context"
	"time"

	domain "gymdesk/internal/domain/subscription"
)

// Store persists Subscription state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Subscription, error)
	Save(ctx context.Context, value domain.Subscription) error
	// SaveIfUnchanged updates value only while the stored expiry, status and
	// auto-renew flag still equal prev's, returning storage.ErrConflict
	// otherwise.
	SaveIfUnchanged(ctx context.Context, value domain.Subscription, prev domain.Subscription) error
	ListByMember(ctx context.Context, memberID string) ([]domain.Subscription, error)
	// ListDue returns active or grace subscriptions expiring on or before
	// asOf, ordered by (expires_at, id) and starting after the cursor.
	ListDue(ctx context.Context, asOf time.Time, after DueCursor, limit int) ([]domain.Subscription, error)
}

// DueCursor is the keyset position of the last row a sweep handled. The zero
// value starts from the beginning.
type DueCursor struct {
	ExpiresAt time.Time
	ID        string
}

// After returns the cursor positioned on s.
func After(s domain.Subscription) DueCursor {
	return DueCursor{ExpiresAt: s.ExpiresAt, ID: s.ID}
}
