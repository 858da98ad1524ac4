package web

import (
	"net/http"
	"time"

	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/member"
)

type memberResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toMemberResponse(m member.Member) memberResponse {
	return memberResponse{ID: m.ID, Name: m.Name, Email: m.Email, Status: m.Status, CreatedAt: m.CreatedAt}
}

// handleRegisterMember creates a member.
// POST /api/members {"name": "...", "email": "..."}
func handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := strictDecode(r, &body); err != nil {
		badRequest(w, err)
		return
	}

	m, err := orchestrators.ExecuteRegisterMember(r.Context(), orchestrators.RegisterMemberInput{
		Name:  body.Name,
		Email: body.Email,
	}, orchestrators.RegisterMemberDeps{
		MemberStore: stores.MemberStore,
		GenerateID:  generateID,
		Now:         timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberResponse(m))
}

// handleListMembers lists members with access flags.
// GET /api/members?status=active&limit=50&offset=0
func handleListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseInt("limit", q.Get("limit"), 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	offset, err := parseInt("offset", q.Get("offset"), 0)
	if err != nil {
		badRequest(w, err)
		return
	}

	result, err := projections.QueryGetMemberList(r.Context(), projections.GetMemberListQuery{
		Status: q.Get("status"),
		Limit:  limit,
		Offset: offset,
	}, projections.GetMemberListDeps{
		MemberStore:       stores.MemberStore,
		SubscriptionStore: stores.SubscriptionStore,
		Now:               timeNow,
		GraceDays:         opts.GraceDays,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetMemberProfile returns a member with their subscriptions.
// GET /api/members/{id}
func handleGetMemberProfile(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryGetMemberProfile(r.Context(), projections.GetMemberProfileQuery{
		MemberID: r.PathValue("id"),
	}, projections.GetMemberProfileDeps{
		MemberStore:       stores.MemberStore,
		SubscriptionStore: stores.SubscriptionStore,
		Now:               timeNow,
		GraceDays:         opts.GraceDays,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleArchiveMember archives a member without a current subscription.
// POST /api/members/{id}/archive
func handleArchiveMember(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteArchiveMember(r.Context(), orchestrators.ArchiveMemberInput{
		MemberID: r.PathValue("id"),
	}, orchestrators.ArchiveMemberDeps{
		MemberStore:       stores.MemberStore,
		SubscriptionStore: stores.SubscriptionStore,
		Now:               timeNow,
		GraceDays:         opts.GraceDays,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": member.StatusArchived})
}

// handleRestoreMember restores an archived member.
// POST /api/members/{id}/restore
func handleRestoreMember(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteRestoreMember(r.Context(), orchestrators.RestoreMemberInput{
		MemberID: r.PathValue("id"),
	}, orchestrators.RestoreMemberDeps{
		MemberStore: stores.MemberStore,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": member.StatusActive})
}
