package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/api"
	"github.com/rxtech-lab/argo-indicator/internal/config"
	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/engine"
	"github.com/rxtech-lab/argo-indicator/internal/feed"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/internal/version"
)

var timestampLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339}

// rangeFromFlags converts the start/end timestamp flags into the engine's
// epoch-seconds range.
func rangeFromFlags(cmd *cli.Command) types.TimeRange {
	return types.TimeRange{
		Start: float64(cmd.Timestamp("start").UnixNano()) / float64(time.Second),
		End:   float64(cmd.Timestamp("end").UnixNano()) / float64(time.Second),
	}
}

func newEngine(cmd *cli.Command, log *logger.Logger) (*engine.Engine, *config.EngineConfig, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.NewEngine(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	return eng, cfg, nil
}

// computeAction runs one batch session over a time range and exports the
// resulting series as parquet files.
func computeAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	eng, _, err := newEngine(cmd, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	r := rangeFromFlags(cmd)

	sess, err := eng.CreateSession(ctx, cmd.String("symbol"), cmd.String("variant"), types.ModeBatch, optional.Some(r))
	if err != nil {
		return err
	}

	if err := eng.Wait(sess.ID); err != nil {
		return err
	}

	status := sess.Status()
	log.Info("batch session completed",
		zap.String("session_id", status.ID),
		zap.Int64("points_written", status.PointsWritten))

	if dir := cmd.String("export"); dir != "" {
		files, err := eng.ExportParquet(status.ID, dir)
		if err != nil {
			return err
		}

		for _, f := range files {
			fmt.Println(f)
		}
	}

	return nil
}

// serveAction starts the HTTP API and runs until interrupted.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	eng, _, err := newEngine(cmd, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	server := api.NewServer(eng, log)
	addr := cmd.String("listen")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe(addr)
	}()

	log.Info("serving", zap.String("addr", addr), zap.String("version", version.Version))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// verifyAction replays a range through the live pipeline and compares it
// against the batch pipeline, point by point.
func verifyAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	eng, cfg, err := newEngine(cmd, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	r := rangeFromFlags(cmd)
	symbol := cmd.String("symbol")

	variants := cmd.StringSlice("variant")
	if len(variants) == 0 {
		for _, v := range cfg.Variants {
			variants = append(variants, v.ID)
		}
	}

	failed := 0

	for _, id := range variants {
		report, err := eng.Verify(ctx, id, symbol, r)
		if err != nil {
			return err
		}

		if report.OK() {
			fmt.Printf("OK   %s %s (%d points)\n", report.VariantID, report.Symbol, report.BatchPoints)
			continue
		}

		failed++

		fmt.Printf("FAIL %s %s batch=%d replay=%d mismatches=%d\n",
			report.VariantID, report.Symbol, report.BatchPoints, report.ReplayPoints, len(report.Mismatches))

		for _, m := range report.Mismatches {
			fmt.Printf("  %s\n", m.String())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d variant(s) diverged", failed)
	}

	return nil
}

// fetchAction downloads historical trades from a provider into a parquet
// dataset usable as the engine's data_path.
func fetchAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	writer, err := datasource.NewDatasetWriter(log)
	if err != nil {
		return err
	}
	defer writer.Close()

	symbol := cmd.String("symbol")
	r := rangeFromFlags(cmd)

	switch provider := cmd.String("provider"); provider {
	case "binance":
		err = feed.FetchBinance(ctx, writer, symbol, r, log)
	case "polygon":
		err = feed.FetchPolygon(ctx, writer, os.Getenv("POLYGON_API_KEY"), symbol, r, log)
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}

	if err != nil {
		return err
	}

	out := cmd.String("out")
	if err := writer.ExportParquet(out); err != nil {
		return err
	}

	log.Info("dataset written", zap.String("path", out), zap.Int("ticks", writer.Count()))

	return nil
}

// schemaAction prints the JSON schema for the engine config.
func schemaAction(_ context.Context, _ *cli.Command) error {
	cfg := &config.EngineConfig{}

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the engine config YAML",
		Value:    "indicator.yaml",
		Required: false,
	}
}

func symbolFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "symbol",
		Aliases:  []string{"s"},
		Usage:    "Instrument symbol, e.g. BTCUSDT",
		Required: true,
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.TimestampFlag{
			Name:     "start",
			Usage:    "Range start (`YYYY-MM-DD` or RFC3339)",
			Required: true,
			Config: cli.TimestampConfig{
				Layouts: timestampLayouts,
			},
		},
		&cli.TimestampFlag{
			Name:     "end",
			Usage:    "Range end (`YYYY-MM-DD` or RFC3339). Defaults to now.",
			Value:    time.Now(),
			Required: false,
			Config: cli.TimestampConfig{
				Layouts: timestampLayouts,
			},
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "indicator",
		Usage:   "Time-windowed indicator computation engine",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "compute",
				Usage: "Run a batch computation session over a historical range",
				Flags: append([]cli.Flag{
					configFlag(),
					symbolFlag(),
					&cli.StringFlag{
						Name:     "variant",
						Aliases:  []string{"v"},
						Usage:    "Variant ID from the config catalog",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: "Directory to export the computed series as parquet",
					},
				}, rangeFlags()...),
				Action: computeAction,
			},
			{
				Name:  "serve",
				Usage: "Serve the session API and live notification stream",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "listen",
						Aliases: []string{"l"},
						Usage:   "HTTP listen address",
						Value:   ":8080",
					},
				},
				Action: serveAction,
			},
			{
				Name:  "verify",
				Usage: "Check that batch and live pipelines agree on a range",
				Flags: append([]cli.Flag{
					configFlag(),
					symbolFlag(),
					&cli.StringSliceFlag{
						Name:    "variant",
						Aliases: []string{"v"},
						Usage:   "Variant IDs to verify (defaults to all)",
					},
				}, rangeFlags()...),
				Action: verifyAction,
			},
			{
				Name:  "fetch",
				Usage: "Download historical trades into a parquet dataset",
				Flags: append([]cli.Flag{
					symbolFlag(),
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Data provider (binance or polygon)",
						Value:   "binance",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output parquet path",
						Value:   "data/ticks.parquet",
					},
				}, rangeFlags()...),
				Action: fetchAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for the engine config",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
