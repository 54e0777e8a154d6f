package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"monitor-dashboard/internal/auth"
	"monitor-dashboard/internal/config"
	"monitor-dashboard/internal/dashboard/application"
	dashboardhttp "monitor-dashboard/internal/dashboard/interfaces/http"
	"monitor-dashboard/internal/eventing"
	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/observability/metrics"
	"monitor-dashboard/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	metrics.Init()

	tokens, err := tokenSource(cfg.API, logger)
	if err != nil {
		logger.Error("api token error", "error", err)
		os.Exit(1)
	}
	auth.CheckExpiry(logger, tokens.Token(), time.Now())

	client, err := source.NewClient(cfg.API.BaseURL,
		source.WithTimeout(cfg.API.Timeout),
		source.WithTokenSource(tokens),
		source.WithLogger(logger),
	)
	if err != nil {
		logger.Error("monitoring client error", "error", err)
		os.Exit(1)
	}

	service, err := application.NewService(client,
		application.WithPollInterval(cfg.PollInterval),
		application.WithCompactMode(cfg.CompactMode),
		application.WithGroupDefaults(cfg.GroupDefaults),
		application.WithLogger(logger),
	)
	if err != nil {
		logger.Error("dashboard service error", "error", err)
		os.Exit(1)
	}

	if cfg.NATS.URL != "" {
		publisher, err := eventing.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("nats connect error", "url", cfg.NATS.URL, "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		service.MonitorsPoller().OnPublish(eventing.Mirror[monitoring.MonitorMetric](
			publisher,
			eventing.Subject(cfg.NATS.SubjectPrefix, application.TableMonitors),
			eventing.EventMonitorsSnapshot,
			application.TableMonitors,
			logger,
		))
		service.AlarmsPoller().OnPublish(eventing.Mirror[monitoring.Alarm](
			publisher,
			eventing.Subject(cfg.NATS.SubjectPrefix, application.TableAlarms),
			eventing.EventAlarmsSnapshot,
			application.TableAlarms,
			logger,
		))
		logger.Info("snapshot mirror enabled", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	handler, err := dashboardhttp.NewHandler(service, logger)
	if err != nil {
		logger.Error("dashboard handler error", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(func(next http.Handler) http.Handler { return loggingMiddleware(next, logger) })
	handler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := service.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", "error", err)
		}
	}()

	logger.Info("http listening", "addr", cfg.HTTPAddr, "api", client.BaseURL(), "interval", cfg.PollInterval)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", "error", err)
		service.Stop()
		os.Exit(1)
	}
	service.Stop()
	logger.Info("shutdown complete")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func tokenSource(cfg config.APIConfig, logger *slog.Logger) (source.TokenSource, error) {
	if cfg.TokenFile != "" {
		return auth.NewFileToken(cfg.TokenFile, logger)
	}
	return auth.StaticToken(cfg.Token), nil
}

func loggingMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", resp.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
