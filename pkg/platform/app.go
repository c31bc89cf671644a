// Package platform wires together every component of the entitlement and
// transaction core into one running application: the document store
// gateway, event journal bus, distributed mutex, transaction runner,
// entitlement graph, permission folder, rate limiter, payment reconciler,
// image pipeline sink, cron leaser, cache loader fabric, and the HTTP
// surface in front of all of it.
package platform

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vellumapp/platform/internal/bus"
	"github.com/vellumapp/platform/internal/circuitbreaker"
	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/customers"
	"github.com/vellumapp/platform/internal/cron"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/httpserver"
	"github.com/vellumapp/platform/internal/imagepipeline"
	"github.com/vellumapp/platform/internal/lifecycle"
	"github.com/vellumapp/platform/internal/loaders"
	"github.com/vellumapp/platform/internal/logger"
	"github.com/vellumapp/platform/internal/metrics"
	"github.com/vellumapp/platform/internal/mutex"
	"github.com/vellumapp/platform/internal/permissions"
	"github.com/vellumapp/platform/internal/ratelimit"
	"github.com/vellumapp/platform/internal/reconciler"
	"github.com/vellumapp/platform/internal/redeem"
	"github.com/vellumapp/platform/internal/txrunner"
)

// Config is this application's configuration, loaded from YAML plus
// environment overrides.
type Config = config.Config

// LoadConfig reads path (empty for defaults-only) into a Config.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// App holds every wired component a long-running process or a one-shot
// command needs. Not every field is populated by every entrypoint: a cron
// worker process builds an App and only ever touches Leaser/Jobs, while the
// HTTP server process only touches Server.
type App struct {
	Config *Config

	Gateway  *docstore.Gateway
	Bus      bus.Bus
	Mutex    mutex.Mutex
	Metrics  *metrics.Metrics
	Breakers *circuitbreaker.Manager
	Limiter  *ratelimit.Limiter

	Runner        *txrunner.Runner
	Folder        *permissions.Folder
	Fabric        *loaders.Fabric
	UserLoader    *loaders.UserComputedLoader
	Customers     *customers.Resolver
	Reconciler    *reconciler.Reconciler
	ImagePipe     *imagepipeline.Consumer
	Leaser        *cron.Leaser
	RedeemHandler *redeem.Handler

	Server *httpserver.Server

	log       zerolog.Logger
	resources *lifecycle.Manager
}

// Option customizes App construction, mirroring the override-for-testing
// pattern used elsewhere in this codebase's app wiring: a caller can supply
// a fake Bus or an in-memory Mutex in place of the networked default.
type Option func(*options)

type options struct {
	bus   bus.Bus
	mu    mutex.Mutex
	store *docstore.Gateway
}

// WithBus overrides the default JetStream-backed event bus.
func WithBus(b bus.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithMutex overrides the default Redis-backed distributed mutex.
func WithMutex(m mutex.Mutex) Option {
	return func(o *options) { o.mu = m }
}

// WithGateway overrides the default document store connection, letting a
// test point this App at an already-connected gateway.
func WithGateway(g *docstore.Gateway) Option {
	return func(o *options) { o.store = g }
}

// New builds a fully wired App from cfg. Every networked dependency
// (Mongo, NATS, Redis) is connected eagerly; callers that want to defer
// that should supply overrides via Option.
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	resources := lifecycle.NewManager()
	log := logger.New(loggerConfig(cfg.Logging))

	gateway := o.store
	if gateway == nil {
		g, err := docstore.Connect(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("connect document store: %w", err)
		}
		resources.RegisterFunc("docstore", g.Close)
		gateway = g
	}

	b := o.bus
	if b == nil {
		nb, err := bus.Connect(cfg.Bus, log)
		if err != nil {
			return nil, fmt.Errorf("connect event bus: %w", err)
		}
		resources.RegisterFunc("bus", nb.Close)
		b = nb
	}

	mu := o.mu
	if mu == nil {
		redisClient, err := newRedisClient(cfg.Mutex.URL)
		if err != nil {
			return nil, fmt.Errorf("connect mutex redis: %w", err)
		}
		resources.RegisterFunc("mutex_redis", redisClient.Close)
		mu = mutex.NewRedisMutex(redisClient, cfg.Mutex.RetryDelay.Duration)
	}

	m := metrics.New(nil)
	breakers := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.URL != "" {
		limiterClient, err := newRedisClient(cfg.RateLimit.URL)
		if err != nil {
			return nil, fmt.Errorf("connect ratelimit redis: %w", err)
		}
		resources.RegisterFunc("ratelimit_redis", limiterClient.Close)
		limiter = ratelimit.New(limiterClient, cfg.RateLimit, m)
	}

	runner := txrunner.New(gateway, b, cfg.Bus.EventSubject, m, log)
	folder := permissions.NewFolder(gateway)
	fabric := loaders.NewFabric(gateway)
	userLoader := loaders.NewUserComputedLoader(gateway, fabric, folder)
	customerResolver := customers.NewResolver(gateway)

	refresher := reconciler.NewMarkerRefresher(gateway, log)
	rec := reconciler.New(gateway, mu, runner, refresher).WithMetrics(m)
	stripeAuth := reconciler.NewStripeAuthenticator(cfg.Stripe)
	stripeDispatch := reconciler.NewStripeDispatcher(gateway, customerResolver.StripeResolver())
	paypalAuth := reconciler.NewPaypalAuthenticator(cfg.Paypal, breakers)
	paypalDispatch := reconciler.NewPaypalDispatcher(gateway, customerResolver.PaypalResolver())

	redeemHandler := redeem.NewHandler(gateway, runner, customerResolver, cfg.Stripe)

	imagePipe := imagepipeline.NewConsumer(b, runner, gateway, cfg.ImagePipeline.SubjectPrefix, log)

	leaser := cron.New(gateway, hostnameOrFallback(), cfg.Cron, log)

	server := httpserver.New(cfg, gateway, rec, stripeAuth, stripeDispatch, paypalAuth, paypalDispatch, redeemHandler, limiter, m, log)

	return &App{
		Config:        cfg,
		Gateway:       gateway,
		Bus:           b,
		Mutex:         mu,
		Metrics:       m,
		Breakers:      breakers,
		Limiter:       limiter,
		Runner:        runner,
		Folder:        folder,
		Fabric:        fabric,
		UserLoader:    userLoader,
		Customers:     customerResolver,
		Reconciler:    rec,
		ImagePipe:     imagePipe,
		Leaser:        leaser,
		RedeemHandler: redeemHandler,
		Server:        server,
		log:           log,
		resources:     resources,
	}, nil
}

// Close releases every resource this App registered, in LIFO order.
func (a *App) Close() error {
	return a.resources.Close()
}

// CronJobs returns the set of periodic jobs this core registers with its
// leaser. Currently empty: no periodic job has been defined yet beyond the
// event-driven reconciler and image pipeline, both already bus-triggered.
func (a *App) CronJobs() []cron.Job {
	return nil
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func loggerConfig(cfg config.LoggingConfig) logger.Config {
	return logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		Environment: cfg.Environment,
	}
}

func hostnameOrFallback() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "platform-worker"
	}
	return h
}
