package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/meshwise/internal/telemetry"
)

func synthCmd() *cli.Command {
	return &cli.Command{
		Name:  "synth",
		Usage: "Generate seeded synthetic zone telemetry CSV for demos and testing",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "zones",
				Value: 4,
				Usage: "Number of zones to simulate",
			},
			&cli.IntFlag{
				Name:  "samples",
				Value: 30,
				Usage: "Samples per (zone, AP) link",
			},
			&cli.IntFlag{
				Name:  "seed",
				Value: 1,
				Usage: "Random seed; identical seeds reproduce identical batches",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output CSV file (default: stdout)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			gen := telemetry.NewGenerator(int64(cmd.Int("seed")), int(cmd.Int("zones")), int(cmd.Int("samples")))
			samples := gen.Generate()

			out := os.Stdout
			if path := cmd.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := telemetry.WriteSamplesCSV(out, samples); err != nil {
				return err
			}
			log.Printf("generated %d samples across %d zones", len(samples), int(cmd.Int("zones")))
			return nil
		},
	}
}
