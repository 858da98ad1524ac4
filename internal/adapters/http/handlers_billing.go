package web

import (
	"net/http"
	"time"

	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/billing"
)

type expirationResponse struct {
	Anchor         int    `json:"anchor"`
	Cadence        string `json:"cadence"`
	NextExpiration string `json:"next_expiration"`
	Clamped        bool   `json:"clamped"`
}

// handleNextExpiration exposes the snapback rule directly.
// GET /api/billing/next-expiration?anchor=31&cadence=MONTHLY&from=2024-01-31
func handleNextExpiration(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	anchor, err := parseInt("anchor", q.Get("anchor"), 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	cadence, err := billing.ParseCadence(q.Get("cadence"))
	if err != nil {
		badRequest(w, err)
		return
	}
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		badRequest(w, err)
		return
	}

	next, err := billing.ComputeNextExpiration(anchor, cadence, from)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expirationResponse{
		Anchor:         anchor,
		Cadence:        string(cadence),
		NextExpiration: next.Format(time.DateOnly),
		Clamped:        billing.Clamped(anchor, next),
	})
}

// handleReactivationPreview shows what a payment on a date would start.
// GET /api/billing/reactivation?payment_date=2024-03-18&cadence=MONTHLY
func handleReactivationPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cadence, err := billing.ParseCadence(q.Get("cadence"))
	if err != nil {
		badRequest(w, err)
		return
	}
	payment, err := parseDate("payment_date", q.Get("payment_date"))
	if err != nil {
		badRequest(w, err)
		return
	}

	res, err := billing.Reactivate(payment, cadence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expirationResponse{
		Anchor:         res.Anchor,
		Cadence:        string(cadence),
		NextExpiration: res.NextExpiration.Format(time.DateOnly),
		Clamped:        billing.Clamped(res.Anchor, res.NextExpiration),
	})
}

type scheduleResponse struct {
	Anchor  int                              `json:"anchor"`
	Cadence string                           `json:"cadence"`
	From    string                           `json:"from"`
	Dates   []projections.UpcomingExpiration `json:"dates"`
}

// handleSchedule previews the next count expirations.
// GET /api/billing/schedule?anchor=31&cadence=MONTHLY&from=2024-01-31&count=6
func handleSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	anchor, err := parseInt("anchor", q.Get("anchor"), 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	count, err := parseInt("count", q.Get("count"), projections.DefaultUpcoming)
	if err != nil {
		badRequest(w, err)
		return
	}
	if count < 1 || count > projections.MaxUpcoming {
		badRequest(w, projections.ErrUpcomingOutOfRange)
		return
	}
	cadence, err := billing.ParseCadence(q.Get("cadence"))
	if err != nil {
		badRequest(w, err)
		return
	}
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		badRequest(w, err)
		return
	}

	dates, err := billing.Schedule(anchor, cadence, from, count)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := scheduleResponse{Anchor: anchor, Cadence: string(cadence), From: from.Format(time.DateOnly)}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, projections.UpcomingExpiration{
			Date:    d.Format(time.DateOnly),
			Clamped: billing.Clamped(anchor, d),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
