// Package cli assembles the meshwise command tree.
package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/banshee-data/meshwise/internal/version"
)

// Run executes the meshwise CLI with the given arguments.
func Run(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:    "meshwise",
		Usage:   "Zone recommendation analytics for mesh Wi-Fi deployments",
		Version: version.Version,
		Description: `meshwise ingests per-zone link telemetry collected from mesh access
points and extenders, clusters the observations into performance tiers,
and recommends which access point each zone's clients should prefer.`,
		Commands: []*cli.Command{
			analyzeCmd(),
			synthCmd(),
		},
	}
	return cmd.Run(ctx, args)
}
