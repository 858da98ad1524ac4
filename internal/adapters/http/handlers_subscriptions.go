package web

import (
	"net/http"
	"time"

	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/subscription"
)

type subscriptionResponse struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	Cadence   string    `json:"cadence"`
	Anchor    int       `json:"anchor"`
	ExpiresAt string    `json:"expires_at"`
	Status    string    `json:"status"`
	AutoRenew bool      `json:"auto_renew"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSubscriptionResponse(s subscription.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        s.ID,
		MemberID:  s.MemberID,
		Cadence:   string(s.Cadence),
		Anchor:    s.Anchor,
		ExpiresAt: s.ExpiresAt.Format(time.DateOnly),
		Status:    s.Status,
		AutoRenew: s.AutoRenew,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// handleCreateSubscription starts a subscription anchored on its start date.
// POST /api/subscriptions {"member_id", "cadence", "start_date"?, "auto_renew"?, "actor"?}
func handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MemberID  string `json:"member_id"`
		Cadence   string `json:"cadence"`
		StartDate string `json:"start_date"`
		AutoRenew bool   `json:"auto_renew"`
		Actor     string `json:"actor"`
	}
	if err := strictDecode(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		badRequest(w, err)
		return
	}

	sub, err := orchestrators.ExecuteCreateSubscription(r.Context(), orchestrators.CreateSubscriptionInput{
		MemberID:  body.MemberID,
		Cadence:   body.Cadence,
		StartDate: start,
		AutoRenew: body.AutoRenew,
		Actor:     body.Actor,
	}, orchestrators.CreateSubscriptionDeps(billingDeps()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// handleGetSubscription returns the overview projection.
// GET /api/subscriptions/{id}?upcoming=6
func handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	upcoming, err := parseInt("upcoming", r.URL.Query().Get("upcoming"), 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	result, err := projections.QueryGetSubscriptionOverview(r.Context(), projections.GetSubscriptionOverviewQuery{
		SubscriptionID: r.PathValue("id"),
		Upcoming:       upcoming,
	}, projections.GetSubscriptionOverviewDeps{
		SubscriptionStore: stores.SubscriptionStore,
		MemberStore:       stores.MemberStore,
		Now:               timeNow,
		GraceDays:         opts.GraceDays,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRenewSubscription extends an active or grace subscription one period.
// POST /api/subscriptions/{id}/renew {"expected_expiry"?, "actor"?}
func handleRenewSubscription(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExpectedExpiry string `json:"expected_expiry"`
		Actor          string `json:"actor"`
	}
	if err := strictDecode(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	expected, err := parseDate("expected_expiry", body.ExpectedExpiry)
	if err != nil {
		badRequest(w, err)
		return
	}

	sub, err := orchestrators.ExecuteRenewSubscription(r.Context(), orchestrators.RenewSubscriptionInput{
		SubscriptionID: r.PathValue("id"),
		ExpectedExpiry: expected,
		Actor:          body.Actor,
	}, orchestrators.RenewSubscriptionDeps(billingDeps()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// handleReactivateSubscription restarts a lapsed or cancelled subscription.
// POST /api/subscriptions/{id}/reactivate {"payment_date"?, "cadence"?, "actor"?}
func handleReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentDate string `json:"payment_date"`
		Cadence     string `json:"cadence"`
		Actor       string `json:"actor"`
	}
	if err := strictDecode(r, &body); err != nil {
		badRequest(w, err)
		return
	}
	payment, err := parseDate("payment_date", body.PaymentDate)
	if err != nil {
		badRequest(w, err)
		return
	}

	sub, err := orchestrators.ExecuteReactivateSubscription(r.Context(), orchestrators.ReactivateSubscriptionInput{
		SubscriptionID: r.PathValue("id"),
		PaymentDate:    payment,
		Cadence:        body.Cadence,
		Actor:          body.Actor,
	}, orchestrators.ReactivateSubscriptionDeps(billingDeps()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// handleCancelSubscription stops renewals.
// POST /api/subscriptions/{id}/cancel {"actor"?}
func handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor string `json:"actor"`
	}
	if err := strictDecode(r, &body); err != nil {
		badRequest(w, err)
		return
	}

	sub, err := orchestrators.ExecuteCancelSubscription(r.Context(), orchestrators.CancelSubscriptionInput{
		SubscriptionID: r.PathValue("id"),
		Actor:          body.Actor,
	}, orchestrators.CancelSubscriptionDeps(billingDeps()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// handleSubscriptionHistory lists billing events, newest first.
// GET /api/subscriptions/{id}/history?limit=100
func handleSubscriptionHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseInt("limit", r.URL.Query().Get("limit"), 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	entries, err := projections.QueryGetBillingHistory(r.Context(), projections.GetBillingHistoryQuery{
		SubscriptionID: r.PathValue("id"),
		Limit:          limit,
	}, projections.GetBillingHistoryDeps{
		SubscriptionStore: stores.SubscriptionStore,
		HistoryStore:      stores.AuditStore,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
