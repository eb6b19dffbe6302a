package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Dosada05/lunch-roulette/brackets"
	"github.com/Dosada05/lunch-roulette/config"
	"github.com/Dosada05/lunch-roulette/content"
	"github.com/Dosada05/lunch-roulette/handlers"
	"github.com/Dosada05/lunch-roulette/metrics"
	"github.com/Dosada05/lunch-roulette/middleware"
	"github.com/Dosada05/lunch-roulette/repositories"
	api "github.com/Dosada05/lunch-roulette/routes"
	"github.com/Dosada05/lunch-roulette/services"
	"github.com/Dosada05/lunch-roulette/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout  = 15 * time.Second
	contactRateBurst = 3
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("upstream", cfg.UpstreamBaseURL),
		slog.Duration("session_ttl", cfg.SessionTTL))

	if err := run(cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Инициализация хранилища вложений (Cloudflare R2), если настроено
	var attachments storage.AttachmentStore
	if cfg.R2.Enabled() {
		store, err := storage.NewCloudflareR2Store(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 store: %w", err)
		}
		attachments = store
		logger.Info("Cloudflare R2 store initialized", slog.String("bucket", cfg.R2.BucketName))
	} else {
		logger.Info("Cloudflare R2 not configured, attachments are forwarded upstream")
	}

	restaurantRepo, err := repositories.NewHTTPRestaurantRepository(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, m)
	if err != nil {
		return fmt.Errorf("failed to initialize restaurant repository: %w", err)
	}

	catalog, err := content.Load()
	if err != nil {
		return fmt.Errorf("failed to load static content: %w", err)
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)

	// Инициализация сервисов
	sessionService := services.NewSessionService(restaurantRepo, wsHub, m, logger, services.SessionServiceConfig{
		PublicBaseURL:  cfg.PublicBaseURL,
		DefaultOriginX: cfg.DefaultOriginX,
		DefaultOriginY: cfg.DefaultOriginY,
		DefaultRadius:  cfg.DefaultRadius,
		TTL:            cfg.SessionTTL,
	})
	restaurantService := services.NewRestaurantService(restaurantRepo, logger)
	contactService := services.NewContactService(restaurantRepo, attachments, m, logger)
	infoService := services.NewInfoService(catalog)
	logger.Info("Services initialized")

	sessions := middleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL, strings.HasPrefix(cfg.PublicBaseURL, "https://"), logger)
	contactLimiter := middleware.NewRateLimiter(cfg.ContactRatePerMinute, contactRateBurst, logger)

	// Планировщик: удаление простаивающих сессий и счётчиков лимитера
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			sessionService.Sweep(time.Now())
			if n := contactLimiter.Prune(); n > 0 {
				logger.Debug("Scheduler: rate limiter entries pruned", slog.Int("count", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule session sweeper: %w", err)
	}

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Session:    handlers.NewSessionHandler(sessionService, sessions),
		Tournament: handlers.NewTournamentHandler(sessionService),
		Restaurant: handlers.NewRestaurantHandler(restaurantService),
		Contact:    handlers.NewContactHandler(contactService),
		Info:       handlers.NewInfoHandler(infoService),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, sessionService, cfg.CORSAllowedOrigins, logger),
	}, api.Options{
		Logger:             logger,
		Metrics:            m,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Sessions:           sessions,
		ContactLimiter:     contactLimiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("WebSocket Hub started")
		return wsHub.Run(gCtx)
	})

	g.Go(func() error {
		scheduler.Start()
		logger.Info("Session sweeper started", slog.Duration("interval", cfg.SweepInterval))
		<-gCtx.Done()
		return scheduler.Shutdown()
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}
