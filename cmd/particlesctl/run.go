package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"particles/internal/config"
	"particles/internal/render"
	"particles/internal/report"
	particlesapi "particles/pkg/particles"
)

// stdoutIsTerminal reports whether the terminal renderer can draw on stdout.
var stdoutIsTerminal = func() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *cli) runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "YAML configuration merged over the defaults")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	generations := fs.Int("gens", 0, "generation count (0 uses simulation.generations)")
	population := fs.Int("pop", 0, "population size override")
	seed := fs.Int64("seed", 0, "rng seed override (0 keeps the configured seed)")
	workers := fs.Int("workers", 0, "tick worker count override")
	resume := fs.String("resume", "", "seed the first generation from this run's last population")
	resumeLatest := fs.Bool("resume-latest", false, "resume from the most recent run")
	renderTerm := fs.Bool("render", false, "draw the simulation in the terminal")
	showRadar := fs.Bool("radar", false, "draw radar hits (requires --render)")
	manual := fs.Bool("manual", false, "wait for space or enter before each generation (requires --render)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	quiet := fs.Bool("quiet", false, "do not print per-generation records")
	top := fs.Int("top", 10, "number of top genomes kept in the artifacts")
	flags := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*showRadar || *manual) && !*renderTerm {
		return errors.New("--radar and --manual require --render")
	}
	if *generations < 0 || *population < 0 || *workers < 0 || *top < 0 {
		return errors.New("gens, pop, workers and top must be >= 0")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *population > 0 {
		cfg.Population.Size = *population
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *workers > 0 {
		cfg.Simulation.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := c.open(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *runID == "" {
		*runID = uuid.NewString()
	}
	req := particlesapi.RunRequest{
		Config:       cfg,
		RunID:        *runID,
		Generations:  *generations,
		ResumeFrom:   *resume,
		ResumeLatest: *resumeLatest,
		TopCount:     *top,
	}

	if *metricsAddr != "" {
		metrics := report.NewMetrics(*runID)
		stopMetrics, addr, err := serveMetrics(*metricsAddr, metrics)
		if err != nil {
			return err
		}
		defer stopMetrics()
		fmt.Fprintf(c.stderr, "serving metrics on http://%s/metrics\n", addr)
		req.Reporters = append(req.Reporters, metrics)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	closeRenderer := func() {}
	if *renderTerm {
		if !stdoutIsTerminal() {
			return errors.New("--render requires stdout to be a terminal")
		}
		term, err := render.NewTerminal(nil)
		if err != nil {
			return err
		}
		closeRenderer = sync.OnceFunc(term.Close)
		defer closeRenderer()
		term.ShowRadar = *showRadar
		req.Renderer = term

		var onStart func()
		if *manual {
			start := make(chan struct{}, 1)
			req.Start = start
			onStart = func() {
				select {
				case start <- struct{}{}:
				default:
				}
			}
		}
		go term.Keys(runCtx, onStart, cancel)
	} else if !*quiet {
		req.Reporters = append(req.Reporters, report.Text{W: c.stdout})
	}

	summary, err := client.Run(runCtx, req)
	closeRenderer()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "run completed run_id=%s generations=%d final_best=%s goal_reached=%s artifacts=%s\n",
		summary.RunID,
		summary.Generations,
		humanize.FormatFloat("#,###.####", summary.FinalBestFitness),
		humanize.Comma(int64(summary.GoalReached)),
		summary.ArtifactsDir,
	)
	if summary.ResumedFrom != "" {
		fmt.Fprintf(c.stdout, "resumed_from=%s first_generation=%d\n", summary.ResumedFrom, summary.FirstGeneration)
	}
	if summary.Cancelled {
		fmt.Fprintln(c.stdout, "run stopped before the next generation")
	}
	return nil
}

// serveMetrics exposes the run's registry until the returned stop function
// is called.
func serveMetrics(addr string, metrics *report.Metrics) (func(), string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	stop := func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}
	return stop, listener.Addr().String(), nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
