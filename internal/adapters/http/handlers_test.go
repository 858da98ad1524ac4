package web

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage"
	auditStore "gymdesk/internal/adapters/storage/audit"
	memberStore "gymdesk/internal/adapters/storage/member"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	subscriptionStore "gymdesk/internal/adapters/storage/subscription"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/outbox"
)

// newTestServer wires the full mux over an in-memory database with the clock
// stopped at now.
func newTestServer(t *testing.T, now time.Time) http.Handler {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	m := metrics.New()
	tdb := storage.NewTimedDB(db, m, 0)
	s := &Stores{
		MemberStore:       memberStore.NewSQLiteStore(tdb),
		SubscriptionStore: subscriptionStore.NewSQLiteStore(tdb),
		AuditStore:        auditStore.NewSQLiteStore(tdb),
		OutboxStore:       outboxStore.NewSQLiteStore(tdb),
	}

	prevNow := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = prevNow })

	processor := orchestrators.NewOutboxProcessor(s.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: email.NewNoopSender()},
	}, m, timeNow)

	return NewMux(s, Options{
		CSRFKey:            make([]byte, 32),
		RateLimitPerSecond: 1000,
		GraceDays:          7,
		Metrics:            m,
		Outbox:             processor,
		DB:                 tdb,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func createMemberAndSubscription(t *testing.T, h http.Handler, body string) subscriptionResponse {
	t.Helper()
	rr := do(t, h, "POST", "/api/members", `{"name":"Ana","email":"ana@example.com"}`)
	expectStatus(t, rr, http.StatusCreated)
	m := decode[memberResponse](t, rr)

	rr = do(t, h, "POST", "/api/subscriptions", strings.Replace(body, "$MEMBER", m.ID, 1))
	expectStatus(t, rr, http.StatusCreated)
	return decode[subscriptionResponse](t, rr)
}

func TestBillingEngineEndpoints(t *testing.T) {
	h := newTestServer(t, time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC))

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/billing/next-expiration?anchor=31&cadence=MONTHLY&from=2024-01-31", 200, `"next_expiration":"2024-02-29","clamped":true`},
		{"/api/billing/next-expiration?anchor=31&cadence=monthly&from=2024-02-29", 200, `"next_expiration":"2024-03-31","clamped":false`},
		{"/api/billing/next-expiration?anchor=29&cadence=YEARLY&from=2024-02-29", 200, `"next_expiration":"2025-02-28"`},
		{"/api/billing/next-expiration?anchor=32&cadence=MONTHLY&from=2024-01-31", 400, "anchor"},
		{"/api/billing/next-expiration?anchor=31&cadence=WEEKLY&from=2024-01-31", 400, "cadence"},
		{"/api/billing/next-expiration?anchor=31&cadence=MONTHLY", 400, ""},
		{"/api/billing/next-expiration?anchor=x&cadence=MONTHLY&from=2024-01-31", 400, "anchor must be an integer"},
		{"/api/billing/reactivation?payment_date=2024-03-18&cadence=MONTHLY", 200, `"anchor":18,"cadence":"MONTHLY","next_expiration":"2024-04-18"`},
		{"/api/billing/reactivation?payment_date=18-03-2024&cadence=MONTHLY", 400, "payment_date must be YYYY-MM-DD"},
		{"/api/billing/schedule?anchor=31&cadence=MONTHLY&from=2024-02-29&count=3", 200, `[{"date":"2024-03-31","clamped":false},{"date":"2024-04-30","clamped":true},{"date":"2024-05-31","clamped":false}]`},
		{"/api/billing/schedule?anchor=31&cadence=MONTHLY&from=2024-02-29&count=25", 400, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, h, "GET", tt.path, "")
			expectStatus(t, rr, tt.status)
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("body %q missing %q", rr.Body.String(), tt.want)
			}
		})
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	h := newTestServer(t, time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC))
	sub := createMemberAndSubscription(t, h, `{"member_id":"$MEMBER","cadence":"MONTHLY","start_date":"2024-01-31","actor":"front-desk"}`)
	if sub.Anchor != 31 || sub.ExpiresAt != "2024-02-29" || sub.Status != "active" {
		t.Fatalf("created = %+v", sub)
	}

	// A second current subscription is refused.
	rr := do(t, h, "POST", "/api/subscriptions", `{"member_id":"`+sub.MemberID+`","cadence":"YEARLY"}`)
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "GET", "/api/subscriptions/"+sub.ID+"?upcoming=2", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"upcoming":[{"date":"2024-03-31","clamped":false},{"date":"2024-04-30","clamped":true}]`) {
		t.Errorf("overview = %s", rr.Body.String())
	}

	rr = do(t, h, "POST", "/api/subscriptions/"+sub.ID+"/renew", `{"expected_expiry":"2024-02-29"}`)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[subscriptionResponse](t, rr); got.ExpiresAt != "2024-03-31" || got.Anchor != 31 {
		t.Errorf("renewed = %+v", got)
	}
	// Retrying the same renewal does not renew twice.
	rr = do(t, h, "POST", "/api/subscriptions/"+sub.ID+"/renew", `{"expected_expiry":"2024-02-29"}`)
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "POST", "/api/subscriptions/"+sub.ID+"/cancel", "")
	expectStatus(t, rr, http.StatusOK)
	rr = do(t, h, "POST", "/api/subscriptions/"+sub.ID+"/cancel", "")
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "POST", "/api/subscriptions/"+sub.ID+"/renew", "")
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "POST", "/api/subscriptions/"+sub.ID+"/reactivate", `{"payment_date":"2024-04-05","cadence":"quarterly"}`)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[subscriptionResponse](t, rr); got.Anchor != 5 || got.ExpiresAt != "2024-07-05" || got.Cadence != "QUARTERLY" {
		t.Errorf("reactivated = %+v", got)
	}

	rr = do(t, h, "GET", "/api/subscriptions/"+sub.ID+"/history", "")
	expectStatus(t, rr, http.StatusOK)
	history := decode[[]map[string]any](t, rr)
	if len(history) != 4 {
		t.Fatalf("history rows = %d, want 4: %s", len(history), rr.Body.String())
	}
	if history[0]["action"] != "reactivate" || history[3]["action"] != "signup" || history[3]["actor"] != "front-desk" {
		t.Errorf("history order = %v", history)
	}

	rr = do(t, h, "GET", "/api/members/"+sub.MemberID, "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"has_access":true`) {
		t.Errorf("profile = %s", rr.Body.String())
	}
}

func TestRequestValidation(t *testing.T) {
	h := newTestServer(t, time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC))

	tests := []struct {
		method, path, body string
		status             int
	}{
		{"POST", "/api/members", `{"name":"Ana","email":"ana@example.com","role":"admin"}`, 400},
		{"POST", "/api/members", `{"name":"","email":"ana@example.com"}`, 400},
		{"POST", "/api/members", `{"name":"Ana","email":"not-an-email"}`, 400},
		{"POST", "/api/subscriptions", `{"member_id":"missing","cadence":"MONTHLY"}`, 404},
		{"POST", "/api/subscriptions", `{"member_id":"x","cadence":"MONTHLY","start_date":"31/01/2024"}`, 400},
		{"GET", "/api/subscriptions/missing", "", 404},
		{"GET", "/api/subscriptions/missing/history", "", 404},
		{"POST", "/api/subscriptions/missing/renew", "", 404},
		{"GET", "/api/members/missing", "", 404},
		{"POST", "/admin/renewals/run?as_of=tomorrow", "", 400},
		{"GET", "/admin/outbox?limit=0", "", 400},
		{"POST", "/admin/outbox/missing/abandon", "", 404},
		{"POST", "/admin/outbox/missing/explode", "", 404},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			expectStatus(t, do(t, h, tt.method, tt.path, tt.body), tt.status)
		})
	}
}

func TestMemberEndpoints(t *testing.T) {
	h := newTestServer(t, time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC))
	sub := createMemberAndSubscription(t, h, `{"member_id":"$MEMBER","cadence":"MONTHLY"}`)

	rr := do(t, h, "POST", "/api/members", `{"name":"Ana Again","email":"ANA@example.com"}`)
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "POST", "/api/members/"+sub.MemberID+"/archive", "")
	expectStatus(t, rr, http.StatusConflict)
	rr = do(t, h, "POST", "/api/members/"+sub.MemberID+"/restore", "")
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "POST", "/api/members", `{"name":"Ben","email":"ben@example.com"}`)
	expectStatus(t, rr, http.StatusCreated)
	ben := decode[memberResponse](t, rr)
	rr = do(t, h, "POST", "/api/members/"+ben.ID+"/archive", "")
	expectStatus(t, rr, http.StatusOK)
	rr = do(t, h, "POST", "/api/subscriptions", `{"member_id":"`+ben.ID+`","cadence":"MONTHLY"}`)
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "GET", "/api/members?status=active", "")
	expectStatus(t, rr, http.StatusOK)
	if body := rr.Body.String(); !strings.Contains(body, "ana@example.com") || strings.Contains(body, "ben@example.com") {
		t.Errorf("active members = %s", body)
	}
}

func TestRunRenewals(t *testing.T) {
	h := newTestServer(t, time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC))
	sub := createMemberAndSubscription(t, h, `{"member_id":"$MEMBER","cadence":"MONTHLY","auto_renew":true}`)

	rr := do(t, h, "POST", "/admin/renewals/run?as_of=2024-03-31", "")
	expectStatus(t, rr, http.StatusOK)
	report := decode[orchestrators.SweepReport](t, rr)
	if report.Renewed != 1 || report.CyclesRenewed != 2 {
		t.Errorf("report = %+v, want 1 renewed over 2 cycles", report)
	}

	rr = do(t, h, "GET", "/api/subscriptions/"+sub.ID, "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"expires_at":"2024-04-30"`) || !strings.Contains(rr.Body.String(), `"anchor":31`) {
		t.Errorf("overview = %s", rr.Body.String())
	}
}

func TestOutboxAdmin(t *testing.T) {
	h := newTestServer(t, time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC))
	createMemberAndSubscription(t, h, `{"member_id":"$MEMBER","cadence":"MONTHLY"}`)

	rr := do(t, h, "GET", "/admin/outbox?status=pending", "")
	expectStatus(t, rr, http.StatusOK)
	entries := decode[[]outboxEntryResponse](t, rr)
	if len(entries) != 1 || entries[0].ActionType != outbox.ActionTypeEmail {
		t.Fatalf("pending = %+v, want the welcome email", entries)
	}

	rr = do(t, h, "POST", "/admin/outbox/"+entries[0].ID+"/retry", "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[outboxEntryResponse](t, rr); got.Status != outbox.StatusDone || got.ExternalID == "" {
		t.Errorf("retried = %+v", got)
	}
	rr = do(t, h, "POST", "/admin/outbox/"+entries[0].ID+"/retry", "")
	expectStatus(t, rr, http.StatusConflict)

	rr = do(t, h, "GET", "/admin/outbox?status=all", "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[[]outboxEntryResponse](t, rr); len(got) != 1 {
		t.Errorf("all entries = %d, want 1", len(got))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, time.Now())

	rr := do(t, h, "GET", "/healthz", "")
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	rr = do(t, h, "GET", "/metrics", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "gymdesk_http_request_duration_seconds") {
		t.Error("metrics should include the request histogram after a request")
	}
}
