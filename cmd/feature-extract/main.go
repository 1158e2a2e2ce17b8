package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/warestack/wms-predict/internal/config"
	"github.com/warestack/wms-predict/internal/extract"
	"github.com/warestack/wms-predict/internal/features"
	"github.com/warestack/wms-predict/internal/history"
	"github.com/warestack/wms-predict/internal/utils"
)

func main() {
	var (
		configPath string
		featureSet string
		daysBack   int
		since      string
		output     string
		saveToDB   bool
		workers    int
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&featureSet, "feature-set", "demand", "Feature set to extract (all, demand or picker)")
	flag.IntVar(&daysBack, "days-back", 90, "How many days of history to extract")
	flag.StringVar(&since, "since", "", "Extract from this RFC3339 timestamp instead of -days-back")
	flag.StringVar(&output, "output", "-", "Output file for JSON lines, - for stdout; a directory with -feature-set all")
	flag.BoolVar(&saveToDB, "save-to-db", false, "Also upsert features into ml_feature_values")
	flag.IntVar(&workers, "workers", 4, "Parallel entity partitions")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	if cfg.Database.DSN == "" {
		logger.Error("extraction requires a configured database DSN")
		os.Exit(1)
	}

	cutoff := utils.DaysAgo(time.Now(), daysBack)
	if since != "" {
		cutoff, err = utils.ParseRFC3339(since)
		if err != nil {
			logger.Error("invalid -since value", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := history.NewPostgresHistory(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open history database", slog.Any("error", err))
		os.Exit(1)
	}
	defer source.Close()

	sets := []features.FeatureSet{features.FeatureSet(featureSet)}
	if featureSet == "all" {
		sets = features.Sets()
	}

	var pgSink *extract.PostgresSink
	if saveToDB {
		pgSink, err = extract.NewPostgresSink(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Error("failed to open feature database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pgSink.Close()
	}

	runner := extract.NewRunner(logger, features.NewEngine(), source)
	for _, set := range sets {
		out, closeOut, err := openOutput(output, set, len(sets) > 1)
		if err != nil {
			logger.Error("failed to open output", slog.String("path", output), slog.Any("error", err))
			os.Exit(1)
		}

		sinks := []extract.Sink{extract.NewJSONLinesSink(out)}
		if pgSink != nil {
			sinks = append(sinks, pgSink)
		}

		stats, err := runner.Run(ctx, extract.Options{
			Set:     set,
			Since:   cutoff,
			Workers: workers,
		}, sinks...)
		closeOut()
		if err != nil {
			logger.Error("extraction failed", slog.String("feature_set", string(set)), slog.Any("error", err))
			os.Exit(1)
		}

		logger.Info("done",
			slog.String("feature_set", string(set)),
			slog.Int("entities", stats.Entities),
			slog.Int("vectors", stats.Vectors),
			slog.Duration("elapsed", stats.Elapsed))
	}
}

// openOutput resolves where one feature set's JSON lines go. With multiple
// sets the path is treated as a directory holding one file per set.
func openOutput(path string, set features.FeatureSet, multi bool) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	target := path
	if multi {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, nil, err
		}
		target = filepath.Join(path, string(set)+".jsonl")
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
