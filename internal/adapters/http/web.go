package web

import (
	"context"
	"net/http"
	"time"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/metrics"
	auditStore "gymdesk/internal/adapters/storage/audit"
	memberStore "gymdesk/internal/adapters/storage/member"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	subscriptionStore "gymdesk/internal/adapters/storage/subscription"
	"gymdesk/internal/application/orchestrators"
)

// Stores holds all storage dependencies.
type Stores struct {
	MemberStore       memberStore.Store
	SubscriptionStore subscriptionStore.Store
	AuditStore        auditStore.Store
	OutboxStore       outboxStore.Store
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures NewMux.
type Options struct {
	CSRFKey            []byte
	SecureCookies      bool
	RateLimitPerSecond int
	SlowRequest        time.Duration
	GraceDays          int
	Metrics            *metrics.Metrics
	Outbox             *orchestrators.OutboxProcessor
	DB                 Pinger
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global options (set by NewMux)
var opts Options

// NewMux wires HTTP handlers for the app.
func NewMux(s *Stores, o Options) http.Handler {
	stores = s
	opts = o
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = 10
	}

	mux := http.NewServeMux()
	registerRoutes(mux)

	limiter := middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second)

	// Applied inner to outer: SecurityHeaders, CSRF, RateLimit, Timing.
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.SecureCookies),
		middleware.RateLimit(limiter),
		middleware.Timing(opts.Metrics, opts.SlowRequest),
	)
}

// billingDeps builds the dependencies shared by the subscription orchestrators.
// CreateSubscriptionDeps, RenewSubscriptionDeps and the rest share this shape
// and convert from it directly.
func billingDeps() orchestrators.RenewalSweepDeps {
	return orchestrators.RenewalSweepDeps{
		MemberStore:       stores.MemberStore,
		SubscriptionStore: stores.SubscriptionStore,
		HistoryStore:      stores.AuditStore,
		Outbox:            stores.OutboxStore,
		Metrics:           opts.Metrics,
		GenerateID:        generateID,
		Now:               timeNow,
		GraceDays:         opts.GraceDays,
	}
}
