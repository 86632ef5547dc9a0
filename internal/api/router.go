package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

type Dependencies struct {
	Runner             handler.ExamRunner
	Attendance         handler.AttendanceLister
	Infractions        handler.InfractionLister
	Camera             enroll.Source
	EnrollmentRoot     string
	AttendanceDuration time.Duration
	// Hub receives session events; it is started and stopped by the router.
	Hub *ws.Hub
	DB  handler.Pinger
	// WebhookWorker drains the notification retry queue when set.
	WebhookWorker *webhook.Worker
	// Quit is called once after POST /v1/quit stopped the running session.
	Quit func()
	// BaseCtx parents the sessions started over HTTP.
	BaseCtx context.Context
	// APIKey protects /v1 when set.
	APIKey string
	// RateLimit is the per-client request budget per minute; zero disables it.
	RateLimit int
}

type Router struct {
	app          *fiber.App
	logger       *slog.Logger
	deps         *Dependencies
	rateLimiter  *middleware.RateLimiter
	cancelHub    context.CancelFunc
	cancelWorker context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Proctor API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var db handler.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Control routes need the runner and friends
	if r.deps == nil {
		return
	}

	baseCtx := r.deps.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	quit := r.deps.Quit
	if quit == nil {
		quit = func() {}
	}

	if r.deps.Hub != nil {
		hubCtx, hubCancel := context.WithCancel(context.Background())
		r.cancelHub = hubCancel
		go r.deps.Hub.Run(hubCtx)
	}

	if r.deps.WebhookWorker != nil {
		ctx, cancel := context.WithCancel(context.Background())
		r.cancelWorker = cancel
		go r.deps.WebhookWorker.Run(ctx)
	}

	v1 := r.app.Group("/v1")
	v1.Use(middleware.APIKeyAuth(r.deps.APIKey))

	if r.deps.RateLimit > 0 {
		r.rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(r.deps.RateLimit))
		v1.Use(r.rateLimiter.Handler())
	}

	sessionHandler := handler.NewSessionHandler(baseCtx, r.deps.Runner, r.deps.AttendanceDuration, r.logger)
	v1.Post("/sessions", sessionHandler.Start)
	v1.Get("/sessions/current", sessionHandler.Current)
	v1.Post("/sessions/current/stop", sessionHandler.Stop)

	if r.deps.Camera != nil {
		enrollmentHandler := handler.NewEnrollmentHandler(r.deps.Camera, r.deps.EnrollmentRoot, r.logger)
		v1.Post("/enrollment/photos", enrollmentHandler.Capture)
	}

	if r.deps.Attendance != nil {
		attendanceHandler := handler.NewAttendanceHandler(r.deps.Attendance)
		v1.Get("/attendance", attendanceHandler.List)
	}

	if r.deps.Infractions != nil {
		infractionHandler := handler.NewInfractionHandler(r.deps.Infractions)
		v1.Get("/infractions", infractionHandler.List)
	}

	controlHandler := handler.NewControlHandler(r.deps.Runner, quit, r.logger)
	v1.Post("/quit", controlHandler.Quit)

	if r.deps.Hub != nil {
		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop WebSocket hub
	if r.cancelHub != nil {
		r.cancelHub()
	}

	// Stop webhook worker
	if r.cancelWorker != nil {
		r.cancelWorker()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
