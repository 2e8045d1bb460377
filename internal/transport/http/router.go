package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shutterbook/studio-api/internal/application/auth"
	"github.com/shutterbook/studio-api/internal/application/user"
	"github.com/shutterbook/studio-api/internal/config"
	"github.com/shutterbook/studio-api/internal/pkg/otpcode"
	"github.com/shutterbook/studio-api/internal/transport/http/handler"
	appmiddleware "github.com/shutterbook/studio-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo UserRepository
	OTPRepo  OTPRepository
	Notifier auth.Notifier
	Tokens   TokenProvider
}

// Router is the application handler plus the background pieces it owns.
type Router struct {
	http.Handler
	limiter *appmiddleware.RateLimiter
}

// Close stops the rate limiter's cleanup goroutine.
func (r *Router) Close() { r.limiter.Stop() }

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) *Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Applied to the public sign-in endpoints only.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:  deps.UserRepo,
		OTPRepo:   deps.OTPRepo,
		Notifier:  deps.Notifier,
		Generator: otpcode.NewGenerator(cfg.OTPCodeLength),
		Tokens:    deps.Tokens,
		CodeTTL:   cfg.OTPTTL,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo: deps.UserRepo,
		OTPRepo:  deps.OTPRepo,
	})

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(authSvc)
	profileH := handler.NewProfileHandler(userSvc)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/otp/request", otpH.Request)
		r.With(sensitiveRL.Limit).Post("/auth/otp/verify", otpH.Verify)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Tokens))

			r.Get("/auth/profile", profileH.Get)
			r.Put("/auth/profile", profileH.Update)
			r.Post("/auth/deactivate", profileH.Deactivate)
		})
	})

	return &Router{Handler: r, limiter: sensitiveRL}
}
