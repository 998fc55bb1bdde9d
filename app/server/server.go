package server

import (
	"context"
	"log/slog"
	"time"

	"docqa/app/api"
	"docqa/app/metrics"
	"docqa/app/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Deps struct {
	Ingester      api.Ingester
	Answerer      api.Answerer
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	UploadLimitMB int
}

// NewApp builds the fiber application with every route registered.
func NewApp(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	bodyLimit := fiber.DefaultBodyLimit
	if d.UploadLimitMB > 0 {
		bodyLimit = d.UploadLimitMB * 1024 * 1024
	}

	var (
		app = fiber.New(fiber.Config{
			ErrorHandler:          api.ErrorHandler(d.Logger),
			BodyLimit:             bodyLimit,
			DisableStartupMessage: true,
		})
		checkHandler   = api.NewCheckHandler()
		fileHandler    = api.NewFileHandler(d.Ingester, d.Logger)
		requestHandler = api.NewRequestHandler(d.Answerer, d.Logger)
		check          = app.Group("/check")
		apiGroup       = app.Group("/api")
	)

	app.Use(middleware.Metrics(d.Metrics, "/metrics"))
	app.Use(recover.New())

	app.Get("/", checkHandler.HandleRoot)
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	check.Get("/healthy", checkHandler.HandleHealthy)
	apiGroup.Post("/upload", fileHandler.HandleUpload)
	apiGroup.Post("/chat", requestHandler.HandleChat)

	return app
}

type Server struct {
	listenAddr string
	app        *fiber.App
	logger     *slog.Logger
}

func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listenAddr: addr,
		app:        NewApp(d),
		logger:     logger,
	}
}

// Run blocks until ctx is canceled or the listener fails, then drains
// in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", s.listenAddr)
		errCh <- s.app.Listen(s.listenAddr)
	}()

	select {
	case err := <-errCh:
		s.logger.Error("error to start server", "error", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
