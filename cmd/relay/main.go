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

	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/archive"
	"github.com/park285/chess-relay/internal/broadcast"
	appcfg "github.com/park285/chess-relay/internal/config"
	"github.com/park285/chess-relay/internal/httpapi"
	"github.com/park285/chess-relay/internal/journal"
	"github.com/park285/chess-relay/internal/msgcat"
	"github.com/park285/chess-relay/internal/notify"
	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/internal/rules"
	"github.com/park285/chess-relay/internal/session"
	"github.com/park285/chess-relay/internal/wshub"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	msgs, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx := context.Background()
	engine := rules.New()
	hub := wshub.New(wshub.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendQueue:      cfg.SendQueueSize,
		PingInterval:   cfg.PingInterval,
		Messages:       msgs,
	})

	opts := []session.Option{
		session.WithCatalog(msgs),
		session.WithNameLimit(cfg.DisplayNameLimit),
	}
	var closers []func() error

	// Side sinks are optional; the relay runs without any of them.
	if cfg.RedisURL != "" {
		store, err := journal.Open(ctx, cfg.RedisURL, cfg.JournalTTL)
		if err != nil {
			log.Fatalf("journal init error: %v", err)
		}
		opts = append(opts, session.WithRecorder(store))
		closers = append(closers, store.Close)
	}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		opts = append(opts, session.WithResultSink(repo))
		closers = append(closers, repo.Close)
	}
	if cfg.ResultWebhookURL != "" {
		hook, err := notify.NewWebhook(cfg.ResultWebhookURL)
		if err != nil {
			log.Fatalf("webhook init error: %v", err)
		}
		opts = append(opts, session.WithResultSink(hook))
	}

	coord := session.NewCoordinator(room.NewRegistry(engine.Initial()), engine, broadcast.New(hub), opts...)
	hub.Attach(coord)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(httpapi.Deps{Rooms: coord, Connections: hub, WS: hub}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("relay_listen",
			zap.String("addr", cfg.Addr),
			zap.Bool("journal", cfg.RedisURL != ""),
			zap.Bool("archive", cfg.DatabaseURL != ""),
			zap.Bool("webhook", cfg.ResultWebhookURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("relay_listen_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	obslog.L().Info("relay_shutdown", zap.String("signal", sig.String()))

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hub.Shutdown(sctx); err != nil {
		obslog.L().Warn("relay_hub_shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(sctx); err != nil {
		obslog.L().Warn("relay_http_shutdown", zap.Error(err))
	}
	for _, c := range closers {
		_ = c()
	}
}
