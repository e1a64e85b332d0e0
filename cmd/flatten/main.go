package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/chatinsight/chat-insight/internal/config"
	"github.com/chatinsight/chat-insight/internal/dataset"
	"github.com/chatinsight/chat-insight/internal/flatten"
	"github.com/chatinsight/chat-insight/internal/logging"
	"github.com/chatinsight/chat-insight/internal/storage/postgres"
)

func main() {
	input := flag.String("input", "conversations.json", "Path to the exported conversations JSON array")
	output := flag.String("output", "", "Directory for messages.csv and edges.csv (default: DATA_DIR)")
	store := flag.Bool("store", false, "Also store the run in PostgreSQL (requires DATABASE_DSN)")
	flag.Parse()

	logger := logging.New(os.Stdout, "json", "info")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	logger = logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	outDir := *output
	if outDir == "" {
		outDir = cfg.DataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*input)
	if err != nil {
		logger.WithError(err).WithField("input", *input).Fatal("failed to open input")
	}
	defer f.Close()

	result, err := flatten.New(logger, cfg.Flatten.Workers).Flatten(ctx, f)
	if err != nil {
		logger.WithError(err).WithField("input", *input).Fatal("failed to flatten input")
	}

	if err := dataset.NewDir(outDir).Save(&result.Relations); err != nil {
		logger.WithError(err).Fatal("failed to write relations")
	}
	logger.WithFields(logrus.Fields{
		"dir":      outDir,
		"messages": len(result.Messages),
		"edges":    len(result.Edges),
	}).Info("relations written")

	if *store {
		if cfg.Database.DSN == "" {
			logger.Fatal("-store requires DATABASE_DSN")
		}
		db, err := postgres.New(ctx, cfg.Database.DSN, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()

		run, err := postgres.NewRelationRepository(db.Pool()).SaveRun(ctx, *input, result.Conversations, len(result.Skipped), &result.Relations)
		if err != nil {
			logger.WithError(err).Fatal("failed to store relations")
		}
		logger.WithField("run_id", run.ID).Info("relations stored")
	}
}
