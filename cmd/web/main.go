package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"portal/cmd/web/handlers"
	"portal/cmd/web/validator"
	"portal/internal/audit"
	"portal/internal/config"
	"portal/internal/events"
	"portal/internal/health"
	"portal/internal/payment"
	"portal/internal/pricing"
	"portal/internal/provider"
	"portal/internal/readmodels"
	"portal/internal/receipt"
	"portal/internal/reconciliation"
	"portal/kit/broker"
	"portal/kit/db"
	"portal/kit/observability"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger()
	metricsKit := observability.NewMetrics()
	bus := broker.New()

	for _, p := range []string{cfg.SQLiteDSN, cfg.AuditFile} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Error("out dir init error", "dir", dir, "error", err.Error())
				return
			}
		}
	}

	conn, err := db.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("db init error", "error", err.Error())
		return
	}
	defer func() { _ = conn.Close() }()

	node, err := snowflake.NewNode(1)
	if err != nil {
		logger.Error("snowflake init error", "error", err.Error())
		return
	}

	auditSvc, err := audit.NewServiceWithFile(logger, cfg.AuditFile)
	if err != nil {
		logger.Error("audit init error", "error", err.Error())
		return
	}
	defer func() { _ = auditSvc.Close() }()

	reg := provider.NewRegistry(cfg.PrimaryProvider)
	breaker := provider.CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
	}
	if cfg.Paystack.Enabled {
		reg.Register(provider.NewCircuitBreakerAdapter(provider.NewPaystack(provider.PaystackConfig{
			Secret:  cfg.Paystack.Secret,
			BaseURL: cfg.Paystack.BaseURL,
			Timeout: cfg.GatewayTimeout,
		}), breaker))
	}
	if cfg.Flutterwave.Enabled {
		reg.Register(provider.NewCircuitBreakerAdapter(provider.NewFlutterwave(provider.FlutterwaveConfig{
			Secret:  cfg.Flutterwave.Secret,
			BaseURL: cfg.Flutterwave.BaseURL,
			Timeout: cfg.GatewayTimeout,
		}), breaker))
	}

	schedule := pricing.NewSchedule("NGN")
	for purpose, raw := range map[payment.Purpose]string{
		payment.PurposeApplicationFee: cfg.ApplicationFee,
		payment.PurposeAcceptanceFee:  cfg.AcceptanceFee,
		payment.PurposeTuition:        cfg.TuitionFee,
	} {
		if raw == "" {
			continue
		}
		amt, perr := decimal.NewFromString(raw)
		if perr != nil {
			logger.Error("fee override parse error", "purpose", string(purpose), "value", raw, "error", perr.Error())
			return
		}
		schedule.SetFee(purpose, "", amt)
	}

	ledger := payment.NewSQLLedger(conn, node)
	paymentSvc := payment.NewService(reg, ledger, schedule, bus, metricsKit, cfg.GatewayTimeout)
	disputeRepo := reconciliation.NewSQLDisputeRepository(conn)
	reconSvc := reconciliation.NewService(ledger, disputeRepo, auditSvc, bus, metricsKit)
	receiptSvc := receipt.NewService(logger, ledger, metricsKit, os.Getenv("RECEIPT_BASE_URL"))
	projector := readmodels.NewProjector()

	checks := map[string]health.CheckFunc{
		"db": func(ctx context.Context) error { return conn.PingContext(ctx) },
	}
	for _, name := range reg.Names() {
		name := name
		checks["provider:"+name] = func(ctx context.Context) error {
			a, gerr := reg.Get(name)
			if gerr != nil {
				return gerr
			}
			pinger, ok := a.(provider.Pinger)
			if !ok {
				return nil
			}
			return pinger.Ping(ctx)
		}
	}
	healthSvc := health.NewService(10*time.Second, checks)

	allEvents := []broker.Event{
		events.PaymentInitiated{},
		events.PaymentStatusChanged{},
		events.PaymentSucceeded{},
		events.PaymentFailed{},
		events.PaymentVerified{},
		events.PaymentRefunded{},
		events.DisputeOpened{},
		events.DisputeResolved{},
	}
	for _, evt := range allEvents {
		bus.Subscribe(evt.Name(), auditSvc.HandleAny)
		bus.Subscribe(evt.Name(), projector.Apply)
	}
	bus.Subscribe((events.PaymentSucceeded{}).Name(), receiptSvc.HandlePaymentSucceeded)

	jsonV := validator.NewJSON()
	paymentH := handlers.NewPayment(jsonV, paymentSvc, projector)
	webhookH := handlers.NewWebhook(paymentSvc)
	reconH := handlers.NewReconciliation(jsonV, reconSvc)
	healthH := handlers.NewHealth(healthSvc)
	metricsH := handlers.NewMetrics(metricsKit)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Actor-Id"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments", paymentH.Create)
		r.Get("/payments/{paymentID}", paymentH.Get)
		r.Get("/payments/{paymentID}/events", paymentH.Events)
		r.Post("/payments/{paymentID}/requery", paymentH.Requery)
		r.Get("/candidates/{candidateID}/payments", paymentH.ListByCandidate)

		r.Post("/webhooks/{provider}", webhookH.Receive)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/payments/{paymentID}/verify", reconH.Verify)
			r.Post("/payments/{paymentID}/refund", reconH.Refund)
			r.Post("/payments/{paymentID}/disputes", reconH.OpenDispute)
			r.Post("/disputes/{disputeID}/resolve", reconH.ResolveDispute)
			r.Get("/disputes/{disputeID}", reconH.GetDispute)
		})
	})
	r.Get("/healthz", healthH.Liveness)
	r.Get("/readyz", healthH.Readiness)
	r.Get("/metrics", metricsH.Handler)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
	}

	logger.Info("web server started", "addr", srv.Addr, "providers", len(reg.Names()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("web server error", "error", err.Error())
	}
}
