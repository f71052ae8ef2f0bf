package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"go-verification-gateway/internal/http/handler"
	"go-verification-gateway/internal/http/middleware"
)

// Dependencies carries everything the route tree needs. Limiters are
// pre-built so the redis-backed variant can be swapped in without the
// router knowing.
type Dependencies struct {
	Issue    *handler.IssueHandler
	Sessions *handler.SessionHandler
	Verify   *handler.VerifyHandler
	Health   *handler.HealthHandler
	Stats    *handler.StatsHandler

	CORSOrigins  []string
	SecureCookie bool

	IssueLimiter *middleware.RateLimiter
	APILimiter   *middleware.RateLimiter
}

func New(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.DeviceID(dep.SecureCookie))

	r.Get("/health/live", dep.Health.Live)
	r.Get("/health/ready", dep.Health.Ready)

	r.Group(func(r chi.Router) {
		if dep.IssueLimiter != nil {
			r.Use(dep.IssueLimiter.Middleware())
		}
		r.Get("/api/generate", dep.Issue.Generate)
	})

	r.Group(func(r chi.Router) {
		if dep.APILimiter != nil {
			r.Use(dep.APILimiter.Middleware())
		}
		r.Get("/v/{token}", dep.Sessions.View)
		r.Post("/v/{token}/checkpoints/{step}", dep.Sessions.Launch)
		r.Get("/verify", dep.Verify.Confirm)
		r.Get("/api/stats", dep.Stats.Stats)
	})

	return r
}
