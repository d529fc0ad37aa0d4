package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/meshwise/internal/config"
	"github.com/banshee-data/meshwise/internal/mesh"
	"github.com/banshee-data/meshwise/internal/telemetry"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Run one analytics batch over a telemetry CSV and emit zone recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Telemetry CSV file (columns: zone_id, ap_id, timestamp, rssi_dbm, packet_error_rate, latency_ms, throughput_mbps, channel_utilization, bytes_transferred)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Analysis tuning JSON (optional; defaults apply for omitted fields)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file for the JSON run report (default: stdout)",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Clustering seed override for reproducible runs",
			},
			&cli.BoolFlag{
				Name:  "recommendations-only",
				Usage: "Emit only the zone recommendations, not the full run report",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Empty()
			if path := cmd.String("config"); path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			params := cfg.ToParams()
			if cmd.IsSet("seed") {
				params.Seed = int64(cmd.Int("seed"))
			}

			in, err := os.Open(cmd.String("input"))
			if err != nil {
				return fmt.Errorf("open telemetry input: %w", err)
			}
			defer in.Close()

			samples, skipped, err := telemetry.ReadSamples(in)
			if err != nil {
				return err
			}
			if skipped > 0 {
				log.Printf("skipped %d unparseable telemetry rows", skipped)
			}

			pipeline, err := mesh.NewPipeline(params)
			if err != nil {
				return err
			}
			runCtx, cancel := context.WithTimeout(ctx, cfg.GetRunTimeBudget())
			defer cancel()
			report, err := pipeline.Run(runCtx, samples)
			if err != nil {
				return err
			}

			out := os.Stdout
			if path := cmd.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if cmd.Bool("recommendations-only") {
				err = telemetry.WriteRecommendations(out, report.Recommendations)
			} else {
				err = telemetry.WriteReport(out, report)
			}
			if err != nil {
				return err
			}

			stats := report.Statistics()
			log.Printf("run %s: k=%d silhouette=%.3f zones=%d recommended=%d inconclusive=%d rejected=%d outliers=%.1f%%",
				report.RunID, report.K, report.Silhouette, stats.ZoneCount,
				stats.RecommendationCount, stats.InconclusiveCount, stats.RejectedCount,
				100*stats.OutlierRatio)
			return nil
		},
	}
}
