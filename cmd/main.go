package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/nhpp/internal/adapters/eventfile"
	app "github.com/okian/nhpp/internal/app"
	"github.com/okian/nhpp/internal/config"
	"github.com/okian/nhpp/internal/domain/model"
	"github.com/okian/nhpp/internal/domain/types"
	"github.com/okian/nhpp/pkg/logger"
	"github.com/okian/nhpp/pkg/metrics"
)

var errNoEventsFile = errors.New("events_file must be set")

func main() {
	// Initialize logging on stderr; stdout carries the JSON report.
	if err := initLogging(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		logger.Get().Error(ctx, "batch fit failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func initLogging() error {
	return logger.InitWithWriter(os.Stderr)
}

// output is what the driver prints on stdout.
type output struct {
	RunID        string          `json:"run_id"`
	Events       int             `json:"events"`
	Criterion    string          `json:"criterion"`
	Best         string          `json:"best,omitempty"`
	Candidates   []types.Summary `json:"candidates"`
	Failed       []string        `json:"failed,omitempty"`
	Duplicates   []string        `json:"duplicates,omitempty"`
	MeanKS       *float64        `json:"mean_ks,omitempty"`
	ElapsedMilli int64           `json:"elapsed_ms"`
}

// run loads configuration, fits the catalogue and writes a JSON report.
func run(ctx context.Context, stdout io.Writer) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Get()

	if cfg.EventsFile == "" {
		return errNoEventsFile
	}
	events, err := eventfile.ReadEventsFile(cfg.EventsFile)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("%s: no events", cfg.EventsFile)
	}
	start := math.Floor(events[0].Start)
	if cfg.ObservationStart != nil {
		start = *cfg.ObservationStart
	}
	series := model.NewEventSeries(events, start, cfg.ObservationEnd)
	log.Info(ctx, "events loaded",
		logger.String("file", cfg.EventsFile),
		logger.Int("events", series.Len()),
		logger.Float64("observation_start", series.Start),
		logger.Float64("observation_end", series.End),
	)

	svc, candidates, err := app.NewFromConfig(ctx, cfg, app.WithLogger(log.Named("service")))
	if err != nil {
		return err
	}

	report, fitErr := svc.FitCatalogue(ctx, series, candidates)
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn(ctx, "metrics textfile not written", logger.String("path", cfg.MetricsFile), logger.Error(err))
		}
	}
	if report == nil {
		return fitErr
	}

	out := output{
		RunID:        report.RunID,
		Events:       series.Len(),
		Candidates:   report.Summaries,
		ElapsedMilli: report.Elapsed.Milliseconds(),
	}
	if report.Ranking != nil {
		out.Criterion = string(report.Ranking.Criterion)
	}
	if report.Best != nil {
		out.Best = report.Best.Name
	}
	for _, f := range report.Failed {
		out.Failed = append(out.Failed, f.Name+": "+f.Err.Error())
	}
	for _, d := range report.Duplicates {
		out.Duplicates = append(out.Duplicates, d.Name+" = "+d.Of)
	}
	if report.Diagnostics != nil && len(report.Diagnostics.KS) > 0 {
		ks := report.Diagnostics.MeanKS
		out.MeanKS = &ks
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return fitErr
}
