package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hamed0406/pgkeepalive/internal/config"
	"github.com/hamed0406/pgkeepalive/internal/domain"
	"github.com/hamed0406/pgkeepalive/internal/httpapi"
	"github.com/hamed0406/pgkeepalive/internal/logging"
	"github.com/hamed0406/pgkeepalive/internal/metrics"
	"github.com/hamed0406/pgkeepalive/internal/notify"
	"github.com/hamed0406/pgkeepalive/internal/postgres"
	"github.com/hamed0406/pgkeepalive/internal/probe"
	"github.com/hamed0406/pgkeepalive/internal/scheduler"
	"github.com/hamed0406/pgkeepalive/internal/tracing"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Exporter:    cfg.TracingExporter,
		ServiceName: cfg.AppName,
	})
	if err != nil {
		logger.Fatal("tracing_setup_error", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing_shutdown_error", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	exec := probe.NewExecutor(postgres.New(logger), logger, cfg.AppName)
	coord := probe.NewCoordinator(exec, logger)

	loadEnv := func() (probe.Environment, error) {
		return config.LoadEnvironment(os.Environ(), cfg.BindingsFile)
	}
	rc := scheduler.NewRechecker(logger, coord, loadEnv, cfg.CheckInterval)
	rc.Metrics = m
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		rc.Alerter = scheduler.NewAlerter(logger, notify.Multi{slack}, scheduler.AlerterConfig{
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
		})
	}
	go rc.Run(ctx)

	api := httpapi.NewServer(logger, rc, domain.LabelsFor(cfg.StatusLang), cfg.Location())
	api.Metrics = m.Handler()

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.Options{
			APIKeys:        cfg.RunAPIKeys,
			RunRPM:         cfg.RunRPM,
			RunBurst:       cfg.RunBurst,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api_shutdown_error", zap.Error(err))
		}
	}()

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.Duration("check_interval", cfg.CheckInterval),
		zap.String("status_lang", cfg.StatusLang),
		zap.String("tracing", cfg.TracingExporter),
		zap.Bool("alerts", rc.Alerter != nil),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_error", zap.Error(err))
	}
	logger.Info("api_stopped")
}
