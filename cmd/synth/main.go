// Command synth writes a synthetic storm record drawn from an NHPP with an
// annual, seasonal and cluster term. The output is a CSV the nhpp driver
// reads through events_file.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/okian/nhpp/internal/adapters/eventfile"
	"github.com/okian/nhpp/internal/domain/rate"
	"github.com/okian/nhpp/internal/domain/simulate"
	"github.com/okian/nhpp/pkg/logger"
)

// Default configuration constants.
const (
	defaultRate     = 12.0
	defaultStart    = 1985.0
	defaultEnd      = 2015.0
	defaultDuration = 0.01 // years, a few days
	defaultSeed     = 1
)

func main() {
	if err := initLogging(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		os.Stderr.WriteString("synth: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// initLogging keeps stdout free for the CSV record.
func initLogging() error {
	return logger.InitWithWriter(os.Stderr)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	var (
		annual    = fs.Float64("rate", defaultRate, "Mean storms per year")
		amplitude = fs.Float64("amplitude", 0, "Seasonal sinusoid amplitude in storms per year (0 disables)")
		phase     = fs.Float64("phase", 0, "Seasonal phase in years")
		clusterA  = fs.Float64("cluster", 0, "Cluster excitation in storms per year (0 disables)")
		clusterK  = fs.Float64("decay", 20, "Cluster decay rate per year")
		start     = fs.Float64("start", defaultStart, "Observation start (decimal year)")
		end       = fs.Float64("end", defaultEnd, "Observation end (decimal year)")
		duration  = fs.Float64("duration", defaultDuration, "Active duration of every storm in years")
		seed      = fs.Uint64("seed", defaultSeed, "Random seed")
		output    = fs.String("output", "", "Output CSV file (default: stdout)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	defs := []rate.TermDef{{Name: "annual", Kind: rate.KindConstant, Start: []float64{*annual}}}
	if *amplitude != 0 {
		defs = append(defs, rate.TermDef{Name: "seasonal", Kind: rate.KindSinusoid, Start: []float64{*amplitude, *phase}})
	}
	if *clusterA != 0 {
		defs = append(defs, rate.TermDef{Name: "cluster", Kind: rate.KindCluster, Start: []float64{*clusterA, *clusterK}})
	}
	spec, err := rate.New(defs)
	if err != nil {
		return err
	}
	sim, err := simulate.New(spec, spec.Start(), *start, *end,
		simulate.WithDurations(simulate.FixedDuration(*duration)))
	if err != nil {
		return err
	}

	w := stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		//nolint:errcheck // closed after a successful Sync below
		defer f.Close()
		w = f
	}

	n, err := eventfile.WriteEvents(w, sim.Sequence(*seed))
	if err != nil {
		return err
	}
	if f, ok := w.(*os.File); ok && *output != "" {
		if err := f.Sync(); err != nil {
			return err
		}
	}
	logger.Get().Info(ctx, "synthetic record written",
		logger.String("equation", spec.Equation()),
		logger.Floats("theta", spec.Start()),
		logger.Int("events", n),
		logger.Any("seed", *seed),
	)
	return nil
}
