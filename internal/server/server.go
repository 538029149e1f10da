package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/menta2k/drawing-converter/internal/config"
	"github.com/menta2k/drawing-converter/internal/controller"
	"github.com/menta2k/drawing-converter/internal/logger"
	"github.com/menta2k/drawing-converter/internal/sessionstore"
)

const module = "server"

type Server struct {
	app    *fiber.App
	cfg    *config.Config
	log    logger.ILogger
	repo   *sessionstore.Repository
	cancel context.CancelFunc
}

func New(cfg *config.Config, newSession sessionstore.Factory, log logger.ILogger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "drawing-converter",
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          errorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CorsOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept",
		AllowMethods:  "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders: "Content-Disposition, Content-Length, Content-Type",
	}))

	runCtx, cancel := context.WithCancel(context.Background())
	repo := sessionstore.NewRepository(config.Duration(cfg.Server.SessionTTLMinutes*60*1000), newSession)

	api := app.Group("/api")
	api.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok", "sessions": repo.Len()})
	})
	controller.NewSessionController(runCtx, repo, log).RegisterRoutes(api)

	return &Server{app: app, cfg: cfg, log: log, repo: repo, cancel: cancel}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.log.Info(module, "server listening", map[string]interface{}{"addr": s.cfg.Server.Addr})
	return s.app.Listen(s.cfg.Server.Addr)
}

// Shutdown cancels in-flight recognition runs and stops the listener.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
