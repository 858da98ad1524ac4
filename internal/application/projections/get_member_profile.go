package projections

import (
	"context"
	"time"
)

// GetMemberProfileQuery carries query parameters.
type GetMemberProfileQuery struct {
	MemberID string
}

// MemberSubscription summarises one of a member's subscriptions.
type MemberSubscription struct {
	ID              string `json:"id"`
	Cadence         string `json:"cadence"`
	Anchor          int    `json:"anchor"`
	ExpiresAt       string `json:"expires_at"`
	EffectiveStatus string `json:"effective_status"`
	AutoRenew       bool   `json:"auto_renew"`
}

// GetMemberProfileResult carries the query result.
type GetMemberProfileResult struct {
	MemberID      string               `json:"member_id"`
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	Status        string               `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
	HasAccess     bool                 `json:"has_access"`
	Subscriptions []MemberSubscription `json:"subscriptions"`
}

// GetMemberProfileDeps holds dependencies for GetMemberProfile.
type GetMemberProfileDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	Now               func() time.Time
	GraceDays         int
}

// QueryGetMemberProfile retrieves a member with their subscriptions.
// PRE: Valid member ID
// POST: HasAccess is true when any subscription grants access as of now
func QueryGetMemberProfile(ctx context.Context, query GetMemberProfileQuery, deps GetMemberProfileDeps) (GetMemberProfileResult, error) {
	m, err := deps.MemberStore.GetByID(ctx, query.MemberID)
	if err != nil {
		return GetMemberProfileResult{}, err
	}
	subs, err := deps.SubscriptionStore.ListByMember(ctx, m.ID)
	if err != nil {
		return GetMemberProfileResult{}, err
	}

	now := deps.Now().UTC()
	result := GetMemberProfileResult{
		MemberID:      m.ID,
		Name:          m.Name,
		Email:         m.Email,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
		Subscriptions: make([]MemberSubscription, 0, len(subs)),
	}
	for _, s := range subs {
		if s.HasAccess(now, deps.GraceDays) {
			result.HasAccess = true
		}
		result.Subscriptions = append(result.Subscriptions, MemberSubscription{
			ID:              s.ID,
			Cadence:         string(s.Cadence),
			Anchor:          s.Anchor,
			ExpiresAt:       s.ExpiresAt.Format(time.DateOnly),
			EffectiveStatus: s.EffectiveStatus(now, deps.GraceDays),
			AutoRenew:       s.AutoRenew,
		})
	}
	return result, nil
}
