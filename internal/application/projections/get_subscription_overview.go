package projections

import (
	"context"
	"errors"
	"time"

	"gymdesk/internal/domain/billing"
	domainSubscription "gymdesk/internal/domain/subscription"
)

// Upcoming expiration limits.
const (
	DefaultUpcoming = 6
	MaxUpcoming     = 24
)

// ErrUpcomingOutOfRange is returned for an Upcoming above MaxUpcoming.
var ErrUpcomingOutOfRange = errors.New("upcoming must be between 1 and 24")

// GetSubscriptionOverviewQuery carries query parameters.
type GetSubscriptionOverviewQuery struct {
	SubscriptionID string
	Upcoming       int // 0 means DefaultUpcoming
}

// UpcomingExpiration is one future renewal date.
type UpcomingExpiration struct {
	Date    string `json:"date"`
	Clamped bool   `json:"clamped"`
}

// GetSubscriptionOverviewResult carries the query result.
type GetSubscriptionOverviewResult struct {
	SubscriptionID  string               `json:"subscription_id"`
	MemberID        string               `json:"member_id"`
	MemberName      string               `json:"member_name"`
	Cadence         string               `json:"cadence"`
	Anchor          int                  `json:"anchor"`
	ExpiresAt       string               `json:"expires_at"`
	StoredStatus    string               `json:"stored_status"`
	EffectiveStatus string               `json:"effective_status"`
	HasAccess       bool                 `json:"has_access"`
	AutoRenew       bool                 `json:"auto_renew"`
	GraceEndsAt     string               `json:"grace_ends_at,omitempty"`
	Upcoming        []UpcomingExpiration `json:"upcoming"`
}

// GetSubscriptionOverviewDeps holds dependencies for GetSubscriptionOverview.
type GetSubscriptionOverviewDeps struct {
	SubscriptionStore SubscriptionStore
	MemberStore       MemberStore
	Now               func() time.Time
	GraceDays         int
}

// QueryGetSubscriptionOverview returns a subscription with its status as of
// now and the expirations it would reach if renewed on time.
// PRE: Valid subscription ID; 0 <= Upcoming <= MaxUpcoming
// POST: Upcoming lists future expirations strictly after ExpiresAt, empty once lapsed or cancelled
func QueryGetSubscriptionOverview(ctx context.Context, query GetSubscriptionOverviewQuery, deps GetSubscriptionOverviewDeps) (GetSubscriptionOverviewResult, error) {
	n := query.Upcoming
	if n == 0 {
		n = DefaultUpcoming
	}
	if n < 0 || n > MaxUpcoming {
		return GetSubscriptionOverviewResult{}, ErrUpcomingOutOfRange
	}

	s, err := deps.SubscriptionStore.GetByID(ctx, query.SubscriptionID)
	if err != nil {
		return GetSubscriptionOverviewResult{}, err
	}
	m, err := deps.MemberStore.GetByID(ctx, s.MemberID)
	if err != nil {
		return GetSubscriptionOverviewResult{}, err
	}

	now := deps.Now().UTC()
	effective := s.EffectiveStatus(now, deps.GraceDays)
	result := GetSubscriptionOverviewResult{
		SubscriptionID:  s.ID,
		MemberID:        m.ID,
		MemberName:      m.Name,
		Cadence:         string(s.Cadence),
		Anchor:          s.Anchor,
		ExpiresAt:       s.ExpiresAt.Format(time.DateOnly),
		StoredStatus:    s.Status,
		EffectiveStatus: effective,
		HasAccess:       s.HasAccess(now, deps.GraceDays),
		AutoRenew:       s.AutoRenew,
		Upcoming:        []UpcomingExpiration{},
	}
	if effective == domainSubscription.StatusGrace {
		result.GraceEndsAt = s.ExpiresAt.AddDate(0, 0, deps.GraceDays).Format(time.DateOnly)
	}
	if effective == domainSubscription.StatusActive || effective == domainSubscription.StatusGrace {
		dates, err := billing.Schedule(s.Anchor, s.Cadence, s.ExpiresAt, n)
		if err != nil {
			return GetSubscriptionOverviewResult{}, err
		}
		for _, d := range dates {
			result.Upcoming = append(result.Upcoming, UpcomingExpiration{
				Date:    d.Format(time.DateOnly),
				Clamped: billing.Clamped(s.Anchor, d),
			})
		}
	}
	return result, nil
}
