package handler

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/internal/middleware"
)

// Routes bundles everything the HTTP surface needs
type Routes struct {
	Video           *VideoHandler
	Health          *HealthHandler
	Stream          *StreamHandler
	RateLimiter     *middleware.RateLimiter
	GeneratePerHour int
	LogLevel        string
}

// NewApp builds the fiber app with global middleware and every route
func NewApp(r Routes) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	logFormat := "${time} ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(r.LogLevel, "debug") {
		logFormat = "${time} ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
		Output: logger.Logger().Writer(),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/", r.Health.Root)
	app.Get("/health", r.Health.Live)

	api := app.Group("/api")
	api.Get("/health", r.Health.Detailed)

	videos := api.Group("/videos")
	generate := []fiber.Handler{r.Video.Generate}
	if r.RateLimiter != nil {
		generate = append([]fiber.Handler{r.RateLimiter.GenerateLimit(r.GeneratePerHour)}, generate...)
	}
	videos.Post("/generate", generate...)
	videos.Get("/", r.Video.List)
	videos.Get("/:job_id", r.Video.Status)
	videos.Get("/:job_id/download", r.Video.Download)

	if r.Stream != nil {
		app.Get("/ws/videos/:job_id", r.Stream.Upgrade, websocket.New(r.Stream.Serve))
	}

	return app
}
