package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/classvote/api/internal/adapters/feed/redis"
	"github.com/classvote/api/internal/adapters/llm/claude"
	"github.com/classvote/api/internal/adapters/repository/postgres"
	"github.com/classvote/api/internal/config"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/classvote/api/internal/core/services"
	"github.com/classvote/api/internal/logger"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "maximum duration of the job")
	flag.Parse()

	var cfg struct {
		Database config.DatabaseConfig
		Feed     config.FeedConfig
		LLM      config.LLMConfig
		App      config.AppConfig
		Log      config.LogConfig
	}
	if err := config.LoadInto(&cfg); err != nil {
		log.Fatal(err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.ConnString())
	if err != nil {
		l.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	// Running servers pick up the summaries through the change feed.
	var notifier ports.ChangeNotifier = postgres.NewChangeNotifier(db, cfg.Feed.Channel)
	if cfg.Feed.Driver == "redis" {
		client, err := redis.NewClient(cfg.Feed)
		if err != nil {
			l.Fatal("connect redis", zap.Error(err))
		}
		defer client.Close()
		notifier = redis.NewFeed(client, cfg.Feed.Channel, l.Named("feed"))
	}

	msgs := i18n.New(i18n.Lang(cfg.App.Language))
	summaryService := services.NewSummaryService(
		postgres.NewVoteRepository(db),
		postgres.NewSubmissionRepository(db, l.Named("submissions")),
		claude.NewSummarizer(cfg.LLM, msgs.Lang(), l.Named("claude")),
		notifier,
		nil,
		services.Options{Messages: msgs, Logger: l},
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	l.Info("starting vote summarization job")
	if err := summaryService.SummarizeAllVotes(ctx); err != nil {
		l.Fatal("summarizing votes", zap.Error(err))
	}
	l.Info("vote summarization completed")
}
