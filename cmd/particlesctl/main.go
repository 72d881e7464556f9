package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"particles/internal/report"
	particlesapi "particles/pkg/particles"
)

const (
	defaultConfigPath = "particles.yaml"
	runsDir           = "runs"
	exportsDir        = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	cli := &cli{stdout: stdout, stderr: stderr}
	switch args[0] {
	case "init":
		return cli.runInit(ctx, args[1:])
	case "run":
		return cli.runRun(ctx, args[1:])
	case "runs":
		return cli.runRuns(ctx, args[1:])
	case "generations":
		return cli.runGenerations(ctx, args[1:])
	case "population":
		return cli.runPopulation(ctx, args[1:])
	case "export":
		return cli.runExport(ctx, args[1:])
	case "plot":
		return cli.runPlot(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type cli struct {
	stdout io.Writer
	stderr io.Writer
}

// clientFlags are shared by every command that opens a client.
type clientFlags struct {
	storeKind  *string
	dbPath     *string
	runsDir    *string
	exportsDir *string
	logLevel   *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:  fs.String("store", "", "store backend: memory|sqlite (default depends on build tags)"),
		dbPath:     fs.String("db-path", "particles.db", "sqlite database path"),
		runsDir:    fs.String("runs-dir", runsDir, "run artifacts directory"),
		exportsDir: fs.String("exports-dir", exportsDir, "default export directory"),
		logLevel:   fs.String("log-level", "warn", "log level: debug|info|warn|error"),
	}
}

func (c *cli) open(flags clientFlags) (*particlesapi.Client, error) {
	logger, err := newLogger(*flags.logLevel, c.stderr)
	if err != nil {
		return nil, err
	}
	return particlesapi.New(particlesapi.Options{
		StoreKind:  *flags.storeKind,
		DBPath:     *flags.dbPath,
		RunsDir:    *flags.runsDir,
		ExportsDir: *flags.exportsDir,
		Logger:     logger,
	})
}

func (c *cli) runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", defaultConfigPath, "configuration file to write")
	force := fs.Bool("force", false, "overwrite an existing configuration file")
	flags := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*force {
		if _, err := os.Stat(*configPath); err == nil {
			return fmt.Errorf("%s already exists; use --force to overwrite", *configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	file, err := os.Create(*configPath)
	if err != nil {
		return err
	}
	if err := particlesapi.WriteDefaultConfig(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	client, err := c.open(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "initialized config=%s\n", *configPath)
	return nil
}

func (c *cli) runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	flags := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := c.open(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, particlesapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(c.stdout, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(c.stdout, "no runs found")
		return nil
	}
	for _, item := range items {
		created := item.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		fmt.Fprintf(c.stdout, "run_id=%s created=%s seed=%d population=%s generations=%d final_best=%s goal_reached=%s\n",
			item.RunID,
			created,
			item.Seed,
			humanize.Comma(int64(item.Population)),
			item.Generations,
			humanize.FormatFloat("#,###.####", item.FinalBestFitness),
			humanize.Comma(int64(item.GoalReached)),
		)
	}
	return nil
}

func (c *cli) runGenerations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generations", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "show only the last N generations (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit generation records as JSON")
	flags := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.open(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	records, err := client.Generations(ctx, particlesapi.GenerationsRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(c.stdout, records)
	}
	for _, r := range records {
		fmt.Fprintf(c.stdout, "generation=%d duration=%s ticks=%s goal_reached=%d/%d success=%s best=%s mean=%s stddev=%s\n",
			r.Index,
			r.Duration,
			humanize.Comma(int64(r.Ticks)),
			r.GoalReachedCount,
			r.PopulationSize,
			report.FormatPercent(r.SuccessRate()),
			humanize.FormatFloat("#,###.####", r.BestFitness),
			humanize.FormatFloat("#,###.####", r.MeanFitness),
			humanize.FormatFloat("#,###.####", r.StdDevFitness),
		)
	}
	return nil
}

func (c *cli) runPopulation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("population", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	generation := fs.Int("generation", 0, "generation to show (0 shows the last stored)")
	limit := fs.Int("limit", 10, "number of top genomes to show")
	jsonOut := fs.Bool("json", false, "emit the top genomes as JSON")
	flags := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.open(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Population(ctx, particlesapi.PopulationRequest{
		RunID:      *runID,
		Latest:     *latest,
		Generation: *generation,
		Limit:      *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(c.stdout, summary)
	}
	fmt.Fprintf(c.stdout, "run_id=%s generation=%d size=%s\n", summary.RunID, summary.Generation, humanize.Comma(int64(summary.Size)))
	for _, top := range summary.Top {
		m := top.Member
		g := m.Genome
		fmt.Fprintf(c.stdout, "rank=%d fitness=%s goal=%t side=%s lifespan=%s force=%.2f stability=%.2f random=%.2f forward=%.2f limit=%.1fx%.1f radar=%.0f\n",
			top.Rank,
			humanize.FormatFloat("#,###.####", m.Fitness),
			m.GoalReached,
			m.Side,
			m.Lifespan,
			g.ForceCoefficient,
			g.StabilityCoefficient,
			g.RandomCoefficient,
			g.ForwardCoefficient,
			g.XSpeedLimit,
			g.YSpeedLimit,
			g.RadarStrength,
		)
	}
	return nil
}

func (c *cli) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", "", "export output directory (default --exports-dir)")
	flags := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := c.open(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, particlesapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func (c *cli) runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "plot the most recent run")
	out := fs.String("out", "", "PNG output path (default: the run's fitness.png)")
	flags := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := c.open(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	path, err := client.Plot(ctx, particlesapi.PlotRequest{RunID: *runID, Latest: *latest, OutPath: *out})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "plotted to=%s\n", path)
	return nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: particlesctl <init|run|runs|generations|population|export|plot> [flags]", msg)
}
