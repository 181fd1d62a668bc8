package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/classvote/api/internal/adapters/feed/redis"
	"github.com/classvote/api/internal/adapters/handler/http"
	"github.com/classvote/api/internal/adapters/llm/claude"
	"github.com/classvote/api/internal/adapters/metrics"
	"github.com/classvote/api/internal/adapters/repository/postgres"
	"github.com/classvote/api/internal/config"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/classvote/api/internal/core/services"
	"github.com/classvote/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	if err := run(cfg, l); err != nil {
		l.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, l *zap.Logger) error {
	db, err := sqlx.Connect("postgres", cfg.Database.ConnString())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := postgres.CheckSchema(context.Background(), db); err != nil {
		return err
	}

	notifier, feed, closeFeed, err := newChangeFeed(cfg, db, l)
	if err != nil {
		return err
	}
	defer closeFeed()

	m := metrics.New()
	msgs := i18n.New(i18n.Lang(cfg.App.Language))
	opts := services.Options{Messages: msgs, Metrics: m, Logger: l}

	voteRepo := postgres.NewVoteRepository(db)
	submissionRepo := postgres.NewSubmissionRepository(db, l.Named("submissions"))
	resetRepo := postgres.NewResetRequestRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror := services.NewMirror(voteRepo, submissionRepo, resetRepo, feed, opts)
	if err := mirror.Start(ctx); err != nil {
		return fmt.Errorf("start mirror: %w", err)
	}

	voteService := services.NewVoteService(voteRepo, submissionRepo, resetRepo, notifier, mirror, opts)
	summaryService := services.NewSummaryService(
		voteRepo,
		submissionRepo,
		claude.NewSummarizer(cfg.LLM, msgs.Lang(), l.Named("claude")),
		notifier,
		mirror,
		opts,
	)
	adminService := services.NewAdminService(voteRepo, services.AdminConfig{
		JWTSecret:        cfg.Auth.JWTSecret,
		TokenTTL:         cfg.Auth.AdminTokenTTL,
		MasterKeyEnabled: cfg.Auth.MasterKeyEnabled,
	}, opts)

	handler := http.NewRouter(
		http.RouterConfig{
			Log:            l,
			AllowedOrigins: cfg.App.Origins(),
			Metrics:        m,
			Readiness:      mirror,
		},
		http.NewVoteHandler(voteService, msgs, l),
		http.NewAdminHandler(adminService, voteService, summaryService, msgs, l, http.AdminHandlerConfig{
			CookieSecure: cfg.Auth.CookieSecure,
		}),
		http.NewEventsHandler(voteService, mirror, msgs, l),
	)

	server := &stdhttp.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}
	// Event streams only end when the mirror stops closing its watchers.
	server.RegisterOnShutdown(mirror.Stop)

	serverErr := make(chan error, 1)
	go func() {
		l.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		mirror.Stop()
		return err
	}
	l.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newChangeFeed(cfg *config.Config, db *sqlx.DB, l *zap.Logger) (ports.ChangeNotifier, ports.ChangeFeed, func(), error) {
	switch cfg.Feed.Driver {
	case "redis":
		client, err := redis.NewClient(cfg.Feed)
		if err != nil {
			return nil, nil, nil, err
		}
		feed := redis.NewFeed(client, cfg.Feed.Channel, l.Named("feed"))
		return feed, feed, closeRedis(client, l), nil
	default:
		return postgres.NewChangeNotifier(db, cfg.Feed.Channel),
			postgres.NewChangeFeed(cfg.Database.ConnString(), cfg.Feed.Channel, l.Named("feed")),
			func() {},
			nil
	}
}

func closeRedis(client *goredis.Client, l *zap.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			l.Warn("close redis", zap.Error(err))
		}
	}
}
