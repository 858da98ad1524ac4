package web

import "net/http"

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	// Recurrence engine
	mux.HandleFunc("GET /api/billing/next-expiration", handleNextExpiration)
	mux.HandleFunc("GET /api/billing/reactivation", handleReactivationPreview)
	mux.HandleFunc("GET /api/billing/schedule", handleSchedule)

	// Members
	mux.HandleFunc("GET /api/members", handleListMembers)
	mux.HandleFunc("POST /api/members", handleRegisterMember)
	mux.HandleFunc("GET /api/members/{id}", handleGetMemberProfile)
	mux.HandleFunc("POST /api/members/{id}/archive", handleArchiveMember)
	mux.HandleFunc("POST /api/members/{id}/restore", handleRestoreMember)

	// Subscriptions
	mux.HandleFunc("POST /api/subscriptions", handleCreateSubscription)
	mux.HandleFunc("GET /api/subscriptions/{id}", handleGetSubscription)
	mux.HandleFunc("POST /api/subscriptions/{id}/renew", handleRenewSubscription)
	mux.HandleFunc("POST /api/subscriptions/{id}/reactivate", handleReactivateSubscription)
	mux.HandleFunc("POST /api/subscriptions/{id}/cancel", handleCancelSubscription)
	mux.HandleFunc("GET /api/subscriptions/{id}/history", handleSubscriptionHistory)

	// Admin
	mux.HandleFunc("POST /admin/renewals/run", handleRunRenewals)
	mux.HandleFunc("GET /admin/outbox", handleListOutbox)
	mux.HandleFunc("POST /admin/outbox/{id}/{action}", handleOutboxAction)
}
