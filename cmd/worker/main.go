package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fabline/fabline/internal/app"
	jobmetrics "github.com/fabline/fabline/internal/jobs"
	"github.com/fabline/fabline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	blobs, err := app.OpenBlobs(ctx, cfg)
	if err != nil {
		logger.Error("open blob store", slog.Any("error", err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := jobmetrics.NewMetrics(registry)

	mailer := jobs.NewSMTPMailer(app.SMTPConfig(cfg), blobs)
	sms := jobs.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayKey)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Queue(),
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSendMail, Handler: mailer.HandleSendMail},
			{Type: jobs.TaskSendSMS, Handler: sms.HandleSendSMS},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: cfg.AppReadTimeout,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		if err := metricsServer.Close(); err != nil {
			logger.Warn("worker metrics close", slog.Any("error", err))
		}
	}()

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
