package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chatinsight/chat-insight/internal/ai/openai"
	"github.com/chatinsight/chat-insight/internal/app"
	"github.com/chatinsight/chat-insight/internal/config"
	"github.com/chatinsight/chat-insight/internal/logging"
	"github.com/chatinsight/chat-insight/internal/service/summary"
)

func main() {
	dataDir := flag.String("data", "", "Directory holding messages.csv and edges.csv (default: DATA_DIR)")
	output := flag.String("output", "", "Path of the markdown report (default: <data>/conversation_summaries.md)")
	noCache := flag.Bool("no-cache", false, "Always call the model, ignoring cached batch summaries")
	flag.Parse()

	logger := logging.New(os.Stdout, "json", "info")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	logger = logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err := cfg.RequireLLM(); err != nil {
		logger.WithError(err).Fatal("summarizer is not configured")
	}

	dir := *dataDir
	if dir == "" {
		dir = cfg.DataDir
	}
	out := *output
	if out == "" {
		out = filepath.Join(dir, "conversation_summaries.md")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, closeRelations, err := app.OpenRelations(ctx, cfg, dir, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open relations")
	}
	defer closeRelations()

	rel, err := loader.Load(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to load relations")
	}

	opts := summary.Options{
		Model:     cfg.LLM.Model,
		BatchSize: cfg.Analysis.SummaryBatchSize,
		Pause:     cfg.Analysis.SummaryPause,
		CacheTTL:  cfg.Cache.TTL,
	}
	if !*noCache {
		c, closeCache, err := app.OpenCache(cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to open cache")
		}
		defer closeCache()
		opts.Cache = c
	}

	client := openai.NewClient(openai.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	report, err := summary.NewService(client, logger, opts).Summarize(ctx, rel)
	if err != nil {
		logger.WithError(err).Fatal("summarization interrupted")
	}

	f, err := os.Create(out)
	if err != nil {
		logger.WithError(err).Fatal("failed to create report file")
	}
	if err := report.WriteMarkdown(f); err != nil {
		f.Close()
		logger.WithError(err).Fatal("failed to write report")
	}
	if err := f.Close(); err != nil {
		logger.WithError(err).Fatal("failed to write report")
	}

	logger.WithField("path", out).WithField("batches", len(report.Batches)).Info("summary report written")
}
