package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/eventbooking/bookingcore/internal/auth"
	"github.com/eventbooking/bookingcore/internal/cache"
	"github.com/eventbooking/bookingcore/internal/code"
	"github.com/eventbooking/bookingcore/internal/config"
	"github.com/eventbooking/bookingcore/internal/http/handlers"
	"github.com/eventbooking/bookingcore/internal/http/middlewares"
	"github.com/eventbooking/bookingcore/internal/observability"
	"github.com/eventbooking/bookingcore/internal/repo/postgres"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Prom     *observability.Prom
	Registry *prometheus.Registry
	Redis    *cache.RedisCache
	Verifier *auth.Verifier
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("bookingcore-api"))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health + metrics
	ping := func(ctx context.Context) error {
		if deps.Pool == nil {
			return nil
		}
		return deps.Pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// wire up repositories
	codes := code.NewGenerator()
	eventsRepo := postgres.NewEventsRepo(deps.Pool, deps.Prom)
	reservationsRepo := postgres.NewReservationsRepo(deps.Pool, deps.Prom, codes, deps.Log)
	statsRepo := postgres.NewStatsRepo(deps.Pool, deps.Prom)
	usersRepo := postgres.NewUsersRepo(deps.Pool, deps.Prom)

	// wire up handlers
	listCache := cache.New(5 * time.Second)
	eventsHandler := handlers.NewEventsHandler(eventsRepo, reservationsRepo, listCache)
	reservationsHandler := handlers.NewReservationsHandler(reservationsRepo, usersRepo)
	statsHandler := handlers.NewStatsHandler(statsRepo, usersRepo, deps.Redis)

	authmw := middlewares.NewAuthMiddleware(deps.Verifier)
	authn := authmw.RequireAuth()
	manageEvents := authmw.RequireRole("organizer", "admin")

	// booking is the hot path; one bucket per user, falling back to IP
	bookingLimiter := middlewares.NewRateLimiter(10, time.Minute)

	// events
	r.GET("/events", eventsHandler.ListEvents)
	r.GET("/events/:id", eventsHandler.GetEventByID)
	r.GET("/events/:id/availability", eventsHandler.GetAvailability)

	r.POST("/events", authn, manageEvents, eventsHandler.CreateEvent)
	r.PUT("/events/:id", authn, manageEvents, eventsHandler.UpdateEvent)
	r.DELETE("/events/:id", authn, manageEvents, eventsHandler.DeleteEvent)
	r.POST("/events/:id/publish", authn, manageEvents, eventsHandler.PublishEvent)
	r.POST("/events/:id/cancel", authn, manageEvents, eventsHandler.CancelEvent)
	r.POST("/events/:id/finish", authn, manageEvents, eventsHandler.FinishEvent)
	r.GET("/events/:id/reservations", authn, manageEvents, reservationsHandler.ListEventReservations)

	// reservations
	r.GET("/reservations", authn, authmw.RequireRole("admin"), reservationsHandler.ListReservations)
	r.POST("/reservations", authn, bookingLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), reservationsHandler.CreateReservation)
	r.GET("/reservations/:id", authn, reservationsHandler.GetReservationByID)
	r.GET("/reservations/code/:code", authn, reservationsHandler.GetReservationByCode)
	r.POST("/reservations/:id/confirm", authn, reservationsHandler.ConfirmReservation)
	r.POST("/reservations/:id/cancel", authn, reservationsHandler.CancelReservation)
	r.GET("/users/:id/reservations", authn, reservationsHandler.ListUserReservations)

	// stats
	r.GET("/stats/overview", authn, authmw.RequireRole("admin"), statsHandler.Overview)
	r.GET("/stats/organizers/:id", authn, statsHandler.Organizer)
	r.GET("/stats/users/:id", authn, statsHandler.User)

	return r
}
