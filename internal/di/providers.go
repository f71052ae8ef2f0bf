package di

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	"go-verification-gateway/internal/app"
	"go-verification-gateway/internal/config"
	"go-verification-gateway/internal/database"
	"go-verification-gateway/internal/http/handler"
	"go-verification-gateway/internal/http/middleware"
	"go-verification-gateway/internal/http/router"
	"go-verification-gateway/internal/notify"
	"go-verification-gateway/internal/observability"
	"go-verification-gateway/internal/session"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(provideLogger)

var StoreSet = wire.NewSet(provideBackend, provideStore, provideClock)

var SessionSet = wire.NewSet(provideNotifier, provideManager)

var HTTPSet = wire.NewSet(
	provideIssueHandler,
	provideSessionHandler,
	provideVerifyHandler,
	provideHealthHandler,
	provideStatsHandler,
	provideRouterDependencies,
	router.New,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

// storeBackend bundles the selected store with its optional health probe and
// redis handle so downstream providers can share one construction.
type storeBackend struct {
	store  session.Store
	pinger handler.Pinger
	redis  redis.UniversalClient
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg.Env, cfg.LogLevel)
}

func provideClock() session.Clock {
	return session.NewClock()
}

func provideBackend(cfg *config.Config) (*storeBackend, error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := session.NewRedisStore(client, cfg.RedisPrefix)
		return &storeBackend{store: store, pinger: store, redis: client}, nil
	case config.StoreDatabase:
		db, err := database.Open(cfg)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		store := session.NewDatabaseStore(db)
		return &storeBackend{store: store, pinger: store}, nil
	default:
		return &storeBackend{store: session.NewMemoryStore()}, nil
	}
}

func provideStore(backend *storeBackend) session.Store {
	return backend.store
}

func provideNotifier(cfg *config.Config, logger *slog.Logger) notify.CompletionNotifier {
	if cfg.DiscordWebhookURL != "" {
		return notify.NewDiscordNotifier(cfg.DiscordWebhookURL, cfg.ServerName, nil)
	}
	return notify.NewDevNotifier(logger)
}

func provideManager(store session.Store, notifier notify.CompletionNotifier, clock session.Clock, cfg *config.Config, logger *slog.Logger) *session.Manager {
	return session.NewManager(store, notifier, clock, session.ManagerConfig{
		Window:         cfg.VerifyWindow,
		Checkpoint1URL: cfg.Checkpoint1URL,
		Checkpoint2URL: cfg.Checkpoint2URL,
	}, logger)
}

func provideIssueHandler(cfg *config.Config, clock session.Clock) *handler.IssueHandler {
	return handler.NewIssueHandler(cfg.APISecret, cfg.PublicBaseURL, clock)
}

func provideSessionHandler(mgr *session.Manager, clock session.Clock, cfg *config.Config) *handler.SessionHandler {
	return handler.NewSessionHandler(mgr, clock, cfg.DiscordInviteURL)
}

func provideVerifyHandler(mgr *session.Manager, cfg *config.Config) *handler.VerifyHandler {
	return handler.NewVerifyHandler(mgr, cfg.PublicBaseURL)
}

func provideHealthHandler(backend *storeBackend) *handler.HealthHandler {
	return handler.NewHealthHandler(backend.pinger)
}

func provideStatsHandler() *handler.StatsHandler {
	return handler.NewStatsHandler()
}

func provideRouterDependencies(
	issue *handler.IssueHandler,
	sessions *handler.SessionHandler,
	verify *handler.VerifyHandler,
	health *handler.HealthHandler,
	stats *handler.StatsHandler,
	backend *storeBackend,
	cfg *config.Config,
) router.Dependencies {
	minute := time.Minute
	var issueLimiter, apiLimiter *middleware.RateLimiter
	if backend.redis != nil {
		// Shared limiter state lets horizontally scaled instances agree.
		limiter := middleware.NewRedisFixedWindowLimiter(backend.redis, cfg.RedisPrefix+":rl")
		issueLimiter = middleware.NewDistributedRateLimiter(limiter, cfg.IssueRateLimitPerMin, minute, middleware.FailClosed, "issue")
		apiLimiter = middleware.NewDistributedRateLimiter(limiter, cfg.APIRateLimitPerMin, minute, middleware.FailOpen, "api")
	} else {
		issueLimiter = middleware.NewRateLimiter(cfg.IssueRateLimitPerMin, minute)
		apiLimiter = middleware.NewRateLimiter(cfg.APIRateLimitPerMin, minute)
	}
	return router.Dependencies{
		Issue:        issue,
		Sessions:     sessions,
		Verify:       verify,
		Health:       health,
		Stats:        stats,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		SecureCookie: cfg.Env != "development",
		IssueLimiter: issueLimiter,
		APILimiter:   apiLimiter,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// MigrationRunner applies schema migrations for the database-backed store.
type MigrationRunner struct {
	cfg *config.Config
}

func NewMigrationRunner(cfg *config.Config) *MigrationRunner {
	return &MigrationRunner{cfg: cfg}
}

func (m *MigrationRunner) Run() error {
	db, err := database.Open(m.cfg)
	if err != nil {
		return err
	}
	return database.Migrate(db)
}
