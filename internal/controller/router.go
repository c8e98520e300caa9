package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/storekit/paygate/internal/gateway"
	"github.com/storekit/paygate/internal/infrastructure/config"
	"github.com/storekit/paygate/internal/infrastructure/observability"
	"github.com/storekit/paygate/internal/logsink"
	customMW "github.com/storekit/paygate/internal/middleware"
	"github.com/storekit/paygate/internal/ratelimit"
	"github.com/storekit/paygate/internal/service"
	"github.com/storekit/paygate/internal/session"
	"github.com/storekit/paygate/internal/settings"
)

type RouterDeps struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Orders      OrderStore
	Bindings    session.BindingStore
	Gateway     gateway.Gateway
	Reconciler  *service.PaymentReconciler
	Limiter     ratelimit.Limiter
	Sink        logsink.Sink
	Metrics     *observability.Metrics
	Settings    settings.Store
	Config      *config.Config
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.Config.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	callbackH := NewCallbackController(deps.Reconciler, deps.Limiter, deps.Sink, deps.Metrics, deps.Config.Store)
	orderH := NewOrderController(deps.Orders, deps.Bindings, deps.Gateway, deps.Reconciler, deps.Settings)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// The provider return redirect. Auth is optional here: the customer's
	// browser may come back without its session auth intact.
	r.With(customMW.OptionalAuth(deps.Config.Auth.JWTSecret)).
		Get("/payments/callback", callbackH.HandleCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.Config.Server.AdminRatePerMin))

		r.With(customMW.OptionalAuth(deps.Config.Auth.JWTSecret)).Group(func(r chi.Router) {
			r.Post("/orders", orderH.Create)
			r.Post("/orders/{id}/pay", orderH.Pay)
		})

		r.With(customMW.RequireAuth(deps.Config.Auth.JWTSecret)).Group(func(r chi.Router) {
			r.Get("/orders/{id}", orderH.Get)
			r.Get("/orders/{id}/notes", orderH.GetNotes)
			r.Post("/orders/{id}/reprocess", orderH.Reprocess)
		})
	})

	return r
}
