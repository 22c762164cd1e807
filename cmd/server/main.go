package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"credentialing-backend/internal/audit"
	"credentialing-backend/internal/auth"
	"credentialing-backend/internal/config"
	"credentialing-backend/internal/engine"
	"credentialing-backend/internal/logging"
	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Config and logging
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("config loaded", "port", cfg.Server.Port, "db_driver", cfg.Database.Driver, "audit_driver", cfg.Audit.Driver)

	// 2. Database and schema
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	reg := metadata.NewRegistry()
	if err := db.Bootstrap(ctx, reg); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	logger.Info("schema ready", "tables", len(reg.AllEntities()))

	// 3. Audit sink
	sink, closeSink, err := audit.Open(cfg.Audit, db, logger)
	if err != nil {
		return fmt.Errorf("open audit sink: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeSink(shutdownCtx); err != nil {
			logger.Warn("audit sink shutdown", "error", err)
		}
	}()

	// 4. Metrics and the draft engine
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	drafts, err := engine.NewDraftService(db, reg, cfg.Drafts,
		engine.WithLogger(logger),
		engine.WithAuditSink(sink),
		engine.WithMetrics(engine.NewMetrics(promReg)),
	)
	if err != nil {
		return fmt.Errorf("init draft service: %w", err)
	}

	// 5. HTTP
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler(logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(requestLogger(logger))

	engine.RegisterOpsRoutes(app, promReg)
	auth.RegisterAuthRoutes(app, auth.NewAuthHandler(db, cfg.JWTSecret, logger))
	engine.RegisterDraftRoutes(app, engine.NewHandler(drafts, logger), auth.AuthMiddleware(cfg.JWTSecret))

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("starting server", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
			"request_id", c.Locals("requestid"),
		)
		return err
	}
}
