package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/chatinsight/chat-insight/internal/app"
	"github.com/chatinsight/chat-insight/internal/config"
	"github.com/chatinsight/chat-insight/internal/logging"
	"github.com/chatinsight/chat-insight/internal/metrics"
)

func main() {
	dataDir := flag.String("data", "", "Directory holding messages.csv and edges.csv (default: DATA_DIR)")
	output := flag.String("output", "", "Path of the metrics JSON file (default: <data>/metrics.json)")
	quiet := flag.Bool("quiet", false, "Do not print the text report")
	flag.Parse()

	logger := logging.New(os.Stderr, "json", "info")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	logger = logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	dir := *dataDir
	if dir == "" {
		dir = cfg.DataDir
	}
	out := *output
	if out == "" {
		out = filepath.Join(dir, "metrics.json")
	}

	ctx := context.Background()
	loader, closeFn, err := app.OpenRelations(ctx, cfg, dir, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open relations")
	}
	defer closeFn()

	rel, err := loader.Load(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to load relations")
	}

	report := metrics.Compute(rel, metrics.Options{DepthSample: cfg.Analysis.DepthSample})

	f, err := os.Create(out)
	if err != nil {
		logger.WithError(err).Fatal("failed to create metrics file")
	}
	if err := report.WriteJSON(f); err != nil {
		f.Close()
		logger.WithError(err).Fatal("failed to write metrics")
	}
	if err := f.Close(); err != nil {
		logger.WithError(err).Fatal("failed to write metrics")
	}
	logger.WithField("path", out).Info("metrics written")

	if !*quiet {
		if err := report.WriteText(os.Stdout); err != nil {
			logger.WithError(err).Fatal("failed to print report")
		}
	}
}
