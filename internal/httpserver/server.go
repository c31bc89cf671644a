package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/logger"
	"github.com/vellumapp/platform/internal/metrics"
	"github.com/vellumapp/platform/internal/ratelimit"
	"github.com/vellumapp/platform/internal/reconciler"
	"github.com/vellumapp/platform/internal/redeem"
)

// Server wires handlers, middleware, and dependencies around the core's
// HTTP surface: provider webhooks, the redeem-code endpoint, and the
// operational health/metrics endpoints.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg            *config.Config
	store          *docstore.Gateway
	reconciler     *reconciler.Reconciler
	stripeAuth     *reconciler.StripeAuthenticator
	stripeDispatch *reconciler.StripeDispatcher
	paypalAuth     *reconciler.PaypalAuthenticator
	paypalDispatch *reconciler.PaypalDispatcher
	redeem         *redeem.Handler
	limiter        *ratelimit.Limiter
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

func (h *handlers) gateway() *docstore.Gateway { return h.store }

// New builds the HTTP server with its configured router.
func New(
	cfg *config.Config,
	gateway *docstore.Gateway,
	rec *reconciler.Reconciler,
	stripeAuth *reconciler.StripeAuthenticator,
	stripeDispatch *reconciler.StripeDispatcher,
	paypalAuth *reconciler.PaypalAuthenticator,
	paypalDispatch *reconciler.PaypalDispatcher,
	redeemHandler *redeem.Handler,
	limiter *ratelimit.Limiter,
	metricsCollector *metrics.Metrics,
	appLogger zerolog.Logger,
) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:            cfg,
			store:          gateway,
			reconciler:     rec,
			stripeAuth:     stripeAuth,
			stripeDispatch: stripeDispatch,
			paypalAuth:     paypalAuth,
			paypalDispatch: paypalDispatch,
			redeem:         redeemHandler,
			limiter:        limiter,
			metrics:        metricsCollector,
			logger:         appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, cfg, gateway, rec, stripeAuth, stripeDispatch, paypalAuth, paypalDispatch, redeemHandler, limiter, metricsCollector, appLogger)

	return s
}

// ConfigureRouter attaches routes to an existing router.
func ConfigureRouter(
	router chi.Router,
	cfg *config.Config,
	gateway *docstore.Gateway,
	rec *reconciler.Reconciler,
	stripeAuth *reconciler.StripeAuthenticator,
	stripeDispatch *reconciler.StripeDispatcher,
	paypalAuth *reconciler.PaypalAuthenticator,
	paypalDispatch *reconciler.PaypalDispatcher,
	redeemHandler *redeem.Handler,
	limiter *ratelimit.Limiter,
	metricsCollector *metrics.Metrics,
	appLogger zerolog.Logger,
) {
	if router == nil {
		return
	}

	handler := handlers{
		cfg:            cfg,
		store:          gateway,
		reconciler:     rec,
		stripeAuth:     stripeAuth,
		stripeDispatch: stripeDispatch,
		paypalAuth:     paypalAuth,
		paypalDispatch: paypalDispatch,
		redeem:         redeemHandler,
		limiter:        limiter,
		metrics:        metricsCollector,
		logger:         appLogger,
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(logger.Middleware(appLogger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	// Lightweight endpoints: health check and the admin-gated metrics scrape.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/healthz", handler.health)
		r.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Handle("/metrics", promhttp.Handler())
		r.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Get("/admin/webhooks", handler.handleListWebhookEvents)
	})

	// Provider webhook endpoints: long enough to absorb a slow downstream
	// store write, but webhooks are not rate limited (the provider, not an
	// end user, controls delivery volume).
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/webhooks/stripe", handler.handleStripeWebhook)
		r.Post("/webhooks/paypal", handler.handlePaypalWebhook)
	})

	// User-facing endpoints: rate limited per caller identity.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		if limiter != nil {
			r.Use(ratelimit.Middleware(limiter, "redeem", identityFromHeader, nil))
		}
		r.Post("/egvault/redeem", handler.handleRedeem)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
