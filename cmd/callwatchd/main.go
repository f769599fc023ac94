// callwatchd is the call detection daemon. It reads raw telephony signals
// from the host bridge, correlates them into call-lifecycle events, tracks
// the call session state machine and drives the overlay, the shared SQLite
// store and host notifications.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/callwatchio/callwatch/internal/comms"
	"github.com/callwatchio/callwatch/internal/correlator"
	"github.com/callwatchio/callwatch/internal/engine"
	"github.com/callwatchio/callwatch/internal/notify"
	"github.com/callwatchio/callwatch/internal/overlay"
	"github.com/callwatchio/callwatch/internal/resolver"
	"github.com/callwatchio/callwatch/internal/source"
	"github.com/callwatchio/callwatch/internal/store"
	"github.com/callwatchio/callwatch/internal/types"
)

func main() {
	var (
		configPath          string
		dbPath              string
		feedPath            string
		metricsAddr         string
		webhookURL          string
		webhookTimeout      int
		webhookInsecureSkip bool
		webhookAuthToken    string
		supervisorInterval  time.Duration
	)

	flag.StringVar(&configPath, "config", "", "Path to YAML config file. Flags override file values.")
	flag.StringVar(&dbPath, "db", "callwatch.db", "Path to the shared SQLite database.")
	flag.StringVar(&feedPath, "feed", "-", "Call signal feed: '-' for stdin or a unix socket path.")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":9184", "The address the metric endpoint binds to.")
	flag.StringVar(&webhookURL, "webhook-url", "", "URL for host notifications (HTTP POST). Empty disables the webhook.")
	flag.IntVar(&webhookTimeout, "webhook-timeout", 10, "Webhook HTTP request timeout in seconds.")
	flag.BoolVar(&webhookInsecureSkip, "webhook-insecure-skip-verify", false, "Disable TLS certificate verification for webhook (insecure).")
	flag.StringVar(&webhookAuthToken, "webhook-auth-token", "", "Bearer token for webhook Authorization header. Overridden by CALLWATCH_WEBHOOK_AUTH_TOKEN env var if set.")
	flag.DurationVar(&supervisorInterval, "supervisor-interval", overlay.DefaultSupervisorInterval, "How often the overlay supervisor re-checks the indicator during active calls.")
	flag.Parse()

	// Setup logger
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := DefaultConfig()
	if configPath != "" {
		cfg, err = LoadConfig(configPath)
		if err != nil {
			logger.Fatal("Unable to load config", zap.Error(err))
		}
	}
	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DBPath = dbPath
		case "feed":
			cfg.Feed = feedPath
		case "metrics-bind-address":
			cfg.MetricsAddr = metricsAddr
		case "webhook-url":
			cfg.Webhook.URL = webhookURL
		case "webhook-timeout":
			cfg.Webhook.TimeoutSeconds = webhookTimeout
		case "webhook-insecure-skip-verify":
			cfg.Webhook.InsecureSkipVerify = webhookInsecureSkip
		case "webhook-auth-token":
			cfg.Webhook.AuthToken = webhookAuthToken
		case "supervisor-interval":
			cfg.SupervisorInterval = supervisorInterval
		}
	})

	// Environment variable override for webhook auth token (keeps the token
	// out of process listings).
	if envToken := os.Getenv("CALLWATCH_WEBHOOK_AUTH_TOKEN"); envToken != "" {
		cfg.Webhook.AuthToken = envToken
	}

	logger.Info("Starting callwatchd",
		zap.String("version", "dev"),
		zap.String("db", cfg.DBPath),
		zap.String("feed", cfg.Feed),
		zap.Bool("webhook_enabled", cfg.Webhook.URL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared store
	db, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("Unable to open store", zap.Error(err))
	}

	// Host notification sink
	var sink notify.Sink = notify.NopSink{}
	var webhookSink *notify.WebhookSink
	if cfg.Webhook.URL != "" {
		webhookSink, err = notify.NewWebhookSink(logger, notify.WebhookSinkConfig{
			URL:                cfg.Webhook.URL,
			TimeoutSeconds:     cfg.Webhook.TimeoutSeconds,
			InsecureSkipVerify: cfg.Webhook.InsecureSkipVerify,
			AuthToken:          cfg.Webhook.AuthToken,
		})
		if err != nil {
			logger.Fatal("Unable to create webhook sink", zap.Error(err))
		}
		webhookSink.Start(ctx)
		sink = webhookSink
		logger.Info("Webhook sink configured",
			zap.String("url", notify.RedactURL(cfg.Webhook.URL)))
	}

	// Signal correlation and call state machine
	corr := correlator.NewWithOptions(logger, correlator.Options{History: db})
	ovl := overlay.NewWithOptions(newLogRenderer(logger), logger, overlay.Options{
		SupervisorInterval: cfg.SupervisorInterval,
	})
	res := resolver.New(db, nil, logger)
	commLog := comms.NewLogger(db, logger)
	responder := comms.NewAutoResponder(db, sinkSender{sink: sink}, commLog, logger)
	eng := engine.New(corr, res, ovl, db, commLog, responder, sink, logger)

	// Signal sources bridged from the host feed
	fd := newFeed(corr, eng, logger)
	registry := source.NewRegistry(logger)
	mustAdd(logger, registry, source.NewChannelSource("screening-hook", types.SourceScreening, fd.channel(types.SourceScreening)))
	mustAdd(logger, registry, source.NewChannelSource("legacy-broadcast", types.SourceLegacyBroadcast, fd.channel(types.SourceLegacyBroadcast)))
	mustAdd(logger, registry, source.NewChannelSource("modern-callback", types.SourceModernCallback, fd.channel(types.SourceModernCallback)))

	registered := registry.RegisterAll(ctx, func(ev types.RawEvent) {
		corr.Ingest(ctx, ev)
	})
	if registered == 0 {
		logger.Fatal("No signal source registered, call detection impossible")
	}
	logger.Info("Signal sources registered", zap.Int("count", registered))

	// Metrics endpoint
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Engine stopped with error", zap.Error(err))
		}
	}()

	if err := fd.Run(ctx, cfg.Feed); err != nil {
		logger.Error("Feed failed", zap.Error(err))
		stop()
	}

	// Feed is gone (EOF or signal); drain and shut down.
	stop()
	<-engineDone

	registry.UnregisterAll()
	corr.Close()
	if webhookSink != nil {
		webhookSink.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("callwatchd stopped")
}

func mustAdd(logger *zap.Logger, registry *source.Registry, src source.Source) {
	if err := registry.Add(src); err != nil {
		logger.Fatal("Unable to add signal source",
			zap.String("source", src.Name()),
			zap.Error(err),
		)
	}
}

// sinkSender delivers the auto-reply text through the host notification sink;
// the host owns the actual SMS transport.
type sinkSender struct {
	sink notify.Sink
}

func (s sinkSender) Send(ctx context.Context, to, body string) error {
	return s.sink.Notify(ctx, notify.EventSendSMS, map[string]any{
		"to":        to,
		"body":      body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
