package subscription

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gymdesk/internal/domain/billing"
)

// Status constants
const (
	StatusActive    = "active"
	StatusGrace     = "grace"
	StatusLapsed    = "lapsed"
	StatusCancelled = "cancelled"
)

// DefaultGraceDays is how long after expiry a member keeps access while a
// renewal is outstanding.
const DefaultGraceDays = 7

// Domain errors
var (
	ErrEmptyID              = errors.New("subscription ID is required")
	ErrEmptyMemberID        = errors.New("member ID is required")
	ErrInvalidStatus        = errors.New("status must be 'active', 'grace', 'lapsed' or 'cancelled'")
	ErrEmptyExpiry          = errors.New("expiry date cannot be zero")
	ErrRequiresReactivation = errors.New("subscription has lapsed or been cancelled and must be reactivated")
	ErrStillActive          = errors.New("subscription is still active and cannot be reactivated")
	ErrAlreadyCancelled     = errors.New("subscription is already cancelled")
)

// Subscription is a member's recurring plan.
type Subscription struct {
	ID        string
	MemberID  string
	Cadence   billing.Cadence
	Anchor    int
	ExpiresAt time.Time
	Status    string
	AutoRenew bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New starts a subscription on start. The anchor is start's day-of-month.
// PRE: cadence is valid, start is non-zero
// POST: Returns an active subscription expiring one cadence period after start
func New(id, memberID string, cadence billing.Cadence, start time.Time, autoRenew bool, now time.Time) (Subscription, error) {
	res, err := billing.Reactivate(start, cadence)
	if err != nil {
		return Subscription{}, err
	}
	s := Subscription{
		ID:        id,
		MemberID:  memberID,
		Cadence:   cadence,
		Anchor:    res.Anchor,
		ExpiresAt: res.NextExpiration,
		Status:    StatusActive,
		AutoRenew: autoRenew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Validate(); err != nil {
		return Subscription{}, err
	}
	return s, nil
}

// Validate checks if the Subscription has valid data.
// PRE: Subscription struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Subscription) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(s.MemberID) == "" {
		return ErrEmptyMemberID
	}
	if !s.Cadence.Valid() {
		return billing.ErrInvalidCadence
	}
	if err := billing.ValidateAnchor(s.Anchor); err != nil {
		return err
	}
	if s.ExpiresAt.IsZero() {
		return ErrEmptyExpiry
	}
	switch s.Status {
	case StatusActive, StatusGrace, StatusLapsed, StatusCancelled:
	default:
		return ErrInvalidStatus
	}
	return nil
}

// EffectiveStatus derives the status as of a date.
// Cancelled and lapsed are sticky; otherwise access is active before expiry,
// in grace for graceDays after it, and lapsed from then on.
// INVARIANT: s is not mutated
func (s Subscription) EffectiveStatus(asOf time.Time, graceDays int) string {
	if s.Status == StatusCancelled || s.Status == StatusLapsed {
		return s.Status
	}
	day := billing.DateOf(asOf)
	if day.Before(s.ExpiresAt) {
		return StatusActive
	}
	if day.Before(s.ExpiresAt.AddDate(0, 0, graceDays)) {
		return StatusGrace
	}
	return StatusLapsed
}

// HasAccess reports whether the member can train as of asOf. A cancelled
// subscription still runs to its expiry.
func (s Subscription) HasAccess(asOf time.Time, graceDays int) bool {
	if s.Status == StatusCancelled {
		return billing.DateOf(asOf).Before(s.ExpiresAt)
	}
	st := s.EffectiveStatus(asOf, graceDays)
	return st == StatusActive || st == StatusGrace
}

// Renew extends the subscription by one cadence period from its current
// expiry. The anchor is unchanged.
// PRE: Status is active or grace
// POST: ExpiresAt advanced one period, Status active
func (s *Subscription) Renew(now time.Time) error {
	if s.Status != StatusActive && s.Status != StatusGrace {
		return ErrRequiresReactivation
	}
	next, err := billing.ExtendActive(s.Anchor, s.ExpiresAt, s.Cadence)
	if err != nil {
		return fmt.Errorf("extend subscription %s: %w", s.ID, err)
	}
	s.ExpiresAt = next
	s.Status = StatusActive
	s.UpdatedAt = now
	return nil
}

// Reactivate restarts a lapsed or cancelled subscription from a payment date,
// replacing anchor and cadence.
// PRE: Status is lapsed or cancelled
// POST: Anchor is paymentDate's day, ExpiresAt one period after paymentDate, Status active
func (s *Subscription) Reactivate(paymentDate time.Time, cadence billing.Cadence, now time.Time) error {
	if s.Status != StatusLapsed && s.Status != StatusCancelled {
		return ErrStillActive
	}
	res, err := billing.Reactivate(paymentDate, cadence)
	if err != nil {
		return err
	}
	s.Anchor = res.Anchor
	s.Cadence = cadence
	s.ExpiresAt = res.NextExpiration
	s.Status = StatusActive
	s.UpdatedAt = now
	return nil
}

// Cancel stops future renewals. Access continues until ExpiresAt.
// PRE: Status is not cancelled
// POST: Status cancelled, AutoRenew false
func (s *Subscription) Cancel(now time.Time) error {
	if s.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	s.Status = StatusCancelled
	s.AutoRenew = false
	s.UpdatedAt = now
	return nil
}

// MarkGrace moves an active subscription into its grace period.
func (s *Subscription) MarkGrace(now time.Time) {
	if s.Status == StatusActive {
		s.Status = StatusGrace
		s.UpdatedAt = now
	}
}

// MarkLapsed ends access for a subscription that was not renewed in time.
// PRE: Status is active or grace
// POST: Status lapsed
func (s *Subscription) MarkLapsed(now time.Time) {
	if s.Status == StatusActive || s.Status == StatusGrace {
		s.Status = StatusLapsed
		s.UpdatedAt = now
	}
}
