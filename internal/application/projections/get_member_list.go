package projections

import (
	"context"
	"time"

	"gymdesk/internal/adapters/storage/member"
)

// Member list paging limits.
const (
	DefaultMemberListLimit = 50
	MaxMemberListLimit     = 500
)

// GetMemberListQuery carries query parameters.
type GetMemberListQuery struct {
	Status string // "" lists every member
	Limit  int
	Offset int
}

// MemberListItem is one row of the member list.
type MemberListItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	HasAccess bool   `json:"has_access"`
}

// GetMemberListResult carries the query result.
type GetMemberListResult struct {
	Members []MemberListItem `json:"members"`
}

// GetMemberListDeps holds dependencies for GetMemberList.
type GetMemberListDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	Now               func() time.Time
	GraceDays         int
}

// QueryGetMemberList retrieves a page of members with access flags.
// PRE: Valid query parameters
// POST: Limit is clamped to MaxMemberListLimit
func QueryGetMemberList(ctx context.Context, query GetMemberListQuery, deps GetMemberListDeps) (GetMemberListResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultMemberListLimit
	}
	if limit > MaxMemberListLimit {
		limit = MaxMemberListLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	members, err := deps.MemberStore.List(ctx, member.ListFilter{
		Limit:  limit,
		Offset: offset,
		Status: query.Status,
	})
	if err != nil {
		return GetMemberListResult{}, err
	}

	now := deps.Now().UTC()
	result := GetMemberListResult{Members: make([]MemberListItem, 0, len(members))}
	for _, m := range members {
		subs, err := deps.SubscriptionStore.ListByMember(ctx, m.ID)
		if err != nil {
			return GetMemberListResult{}, err
		}
		item := MemberListItem{ID: m.ID, Name: m.Name, Email: m.Email, Status: m.Status}
		for _, s := range subs {
			if s.HasAccess(now, deps.GraceDays) {
				item.HasAccess = true
				break
			}
		}
		result.Members = append(result.Members, item)
	}
	return result, nil
}
