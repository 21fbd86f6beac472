package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/munsociety/munsociety/internal/app"
	"github.com/munsociety/munsociety/internal/auth"
	"github.com/munsociety/munsociety/internal/blogs"
	"github.com/munsociety/munsociety/internal/carousel"
	"github.com/munsociety/munsociety/internal/members"
	"github.com/munsociety/munsociety/internal/observability"
	"github.com/munsociety/munsociety/internal/outreach"
	"github.com/munsociety/munsociety/internal/platform/cache"
	"github.com/munsociety/munsociety/internal/platform/db"
	"github.com/munsociety/munsociety/internal/resources"
	"github.com/munsociety/munsociety/internal/storage"
	"github.com/munsociety/munsociety/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, err := storage.NewStore(cfg.UploadPath, cfg.MaxUploadSize)
	if err != nil {
		logger.Error("init upload store", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	tokenStore := auth.NewTokenStore(redisClient, cfg.SessionTTL)
	authRepo := auth.NewPGRepository(dbpool)
	authService := auth.NewService(authRepo, tokenStore, logger)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, metrics)

	membersService := members.NewService(members.NewPGRepository(dbpool))
	membersHandler := members.NewHandler(logger, membersService)

	blogsService := blogs.NewService(blogs.NewPGRepository(dbpool), store)
	blogsHandler := blogs.NewHandler(logger, blogsService)

	resourceService := resources.NewService(resources.NewPGRepository(dbpool), store, metrics)
	resourceHandler := resources.NewHandler(logger, resourceService)

	carouselService := carousel.NewService(carousel.NewPGRepository(dbpool), store)
	carouselHandler := carousel.NewHandler(logger, carouselService)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	outreachHandler := outreach.NewHandler(outreach.HandlerConfig{
		Logger:        logger,
		Queue:         queueClient,
		ContactEmail:  cfg.ContactEmail,
		SheetsEnabled: cfg.SheetsWebhookURL != "",
		MailEnabled:   cfg.SMTPHost != "",
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthMiddleware:  authMiddleware,
		AuthHandler:     authHandler,
		MembersHandler:  membersHandler,
		BlogsHandler:    blogsHandler,
		ResourceHandler: resourceHandler,
		CarouselHandler: carouselHandler,
		OutreachHandler: outreachHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}
