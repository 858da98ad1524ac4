package audit

import (
	"context"

	domain "gymdesk/internal/domain/audit"
)

// Store defines the interface for billing history persistence.
type Store interface {
	// Save persists an audit event.
	// PRE: event has an ID and timestamp
	Save(ctx context.Context, event domain.Event) error

	// List returns events matching filter, newest first.
	// PRE: limit > 0
	List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error)
}

// Filter defines query parameters for listing audit events. Nil fields do
// not filter.
type Filter struct {
	Category     *domain.Category
	Action       *domain.Action
	ResourceType *string
	ResourceID   *string
}

var _ Store = (*SQLiteStore)(nil)
