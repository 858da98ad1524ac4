package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/email"
	web "gymdesk/internal/adapters/http"
	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage"
	auditStore "gymdesk/internal/adapters/storage/audit"
	memberStore "gymdesk/internal/adapters/storage/member"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	subscriptionStore "gymdesk/internal/adapters/storage/subscription"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/config"
	"gymdesk/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server_exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// WAL mode, foreign keys and busy timeout
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		return err
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		return err
	}

	m := metrics.New()
	timedDB := storage.NewTimedDB(db, m, cfg.SlowQuery())

	stores := &web.Stores{
		MemberStore:       memberStore.NewSQLiteStore(timedDB),
		SubscriptionStore: subscriptionStore.NewSQLiteStore(timedDB),
		AuditStore:        auditStore.NewSQLiteStore(timedDB),
		OutboxStore:       outboxStore.NewSQLiteStore(timedDB),
	}

	var sender email.Sender
	if cfg.ResendKey != "" {
		sender = email.NewResendSender(cfg.ResendKey, cfg.ResendFrom, cfg.ReplyTo)
		slog.Info("email_sender_configured", "provider", "resend")
	} else {
		sender = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender_disabled", "hint", "GYM_RESEND_KEY is not set; notices will not be delivered")
		} else {
			slog.Info("email_sender_configured", "provider", "noop")
		}
	}

	processor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: sender},
	}, m, time.Now)

	sweepDeps := orchestrators.RenewalSweepDeps{
		MemberStore:       stores.MemberStore,
		SubscriptionStore: stores.SubscriptionStore,
		HistoryStore:      stores.AuditStore,
		Outbox:            stores.OutboxStore,
		Metrics:           m,
		GenerateID:        uuid.NewString,
		Now:               time.Now,
		GraceDays:         cfg.GraceDays,
	}

	scheduler := orchestrators.NewScheduler(logger)
	if err := scheduler.Add("renewal_sweep", cfg.RenewalSchedule, 30*time.Minute, orchestrators.RenewalSweepJob(sweepDeps)); err != nil {
		return err
	}
	if err := scheduler.Add("outbox", cfg.OutboxSchedule(), cfg.OutboxInterval, processor.ProcessPending); err != nil {
		return err
	}
	scheduler.Start()

	csrfKey, err := cfg.CSRFKey()
	if err != nil {
		return err
	}

	handler := web.NewMux(stores, web.Options{
		CSRFKey:            csrfKey,
		SecureCookies:      cfg.IsProduction(),
		RateLimitPerSecond: cfg.RateLimit,
		SlowRequest:        cfg.SlowRequest(),
		GraceDays:          cfg.GraceDays,
		Metrics:            m,
		Outbox:             processor,
		DB:                 timedDB,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server_starting",
			"version", version,
			"addr", cfg.Addr,
			"env", cfg.Env,
			"schema", storage.LatestSchemaVersion(),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			<-scheduler.Stop().Done()
			return err
		}
	case <-ctx.Done():
		slog.Info("server_stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server_shutdown_failed", "error", err)
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		slog.Warn("scheduled_jobs_still_running")
	}
	slog.Info("server_stopped")
	return nil
}
