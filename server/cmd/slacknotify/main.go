package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/slacknotify/server/internal/api"
	"github.com/obsidianstack/slacknotify/server/internal/auth"
	"github.com/obsidianstack/slacknotify/server/internal/compose"
	"github.com/obsidianstack/slacknotify/server/internal/config"
	"github.com/obsidianstack/slacknotify/server/internal/consumer"
	"github.com/obsidianstack/slacknotify/server/internal/history"
	"github.com/obsidianstack/slacknotify/server/internal/metrics"
	"github.com/obsidianstack/slacknotify/server/internal/notification"
	"github.com/obsidianstack/slacknotify/server/internal/render"
	"github.com/obsidianstack/slacknotify/server/internal/slack"
	"github.com/obsidianstack/slacknotify/server/internal/storage"
	"github.com/obsidianstack/slacknotify/server/internal/sysnotify"
	"github.com/obsidianstack/slacknotify/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Server.Log))

	slog.Info("slacknotify starting",
		"config", *configPath,
		"node_id", cfg.Server.NodeID,
		"http_port", cfg.Server.HTTPPort,
		"storage", cfg.Server.Storage.Driver,
		"notifications", len(cfg.Notifications),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, cfg); err != nil {
		slog.Error("slacknotify stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, cfg *config.Config) error {
	holder := config.NewHolder(cfg)

	st, err := storage.Open(ctx, cfg.Server.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	system, err := systemNotifications(ctx, cfg.Server.SystemNotifications, st)
	if err != nil {
		return err
	}

	reg := metrics.New()
	hist := history.New(cfg.Server.History.TTL)
	go hist.Run(ctx)

	composer := compose.New(st, st, render.NewTextTemplate(), compose.WithMetrics(reg))
	client := slack.NewClient(slack.WithTimeout(cfg.Server.Delivery.Timeout))
	notifier := notification.NewNotifier(
		notification.NewSlackSender(composer, client),
		sysnotify.NewService(system, cfg.Server.NodeID, nil),
		notification.WithHistory(hist),
		notification.WithMetrics(reg),
	)

	// Notification settings follow the file; server settings need a restart.
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			holder.Set(next)
			slog.Info("config reloaded", "notifications", len(next.Notifications))
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	if cfg.Server.Kafka.Enabled {
		reader, err := consumer.NewReader(cfg.Server.Kafka)
		if err != nil {
			return err
		}
		c := consumer.New(reader, holder, notifier, nil)
		defer c.Close()
		go func() {
			slog.Info("kafka consumer started", "topic", cfg.Server.Kafka.Topic, "group_id", cfg.Server.Kafka.GroupID)
			if err := c.Run(ctx); err != nil {
				slog.Error("kafka consumer stopped", "err", err)
			}
		}()
	}

	hub := ws.New(hist, cfg.Server.Feed.Interval, nil)
	go hub.Run(ctx)

	apiHandler := api.New(api.Deps{
		Config:   holder,
		Executor: notifier,
		History:  hist,
		Ingest:   st,
		System:   system,
		Metrics:  reg,
	})

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/metrics", apiHandler)
	httpMux.Handle("/ws/deliveries", hub)

	authn := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		"/api/v1/health",
	)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           authn(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("slacknotify shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// systemNotifications returns the configured system notification backend.
func systemNotifications(ctx context.Context, cfg config.SystemNotificationsConfig, st *storage.Store) (sysnotify.Store, error) {
	if cfg.Backend != "redis" {
		return st, nil
	}
	rdb, err := sysnotify.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword(), cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	slog.Info("system notifications on redis", "addr", cfg.RedisAddr, "prefix", cfg.KeyPrefix)
	return sysnotify.NewRedisPublisher(rdb, cfg.KeyPrefix), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
