// Command dogbone evaluates part scripts and cuts dogbone reliefs into the
// internal corners they select.
package main

import (
	"fmt"
	"os"

	"github.com/chazu/dogbone/pkg/kernel/sdfx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli holds the state shared by subcommands of one invocation.
type cli struct {
	verbose bool
	logger  *zap.Logger
	meshRes int
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "dogbone",
		Short: "Cut dogbone reliefs into the internal corners of machined parts",
		Long: `dogbone evaluates a part script, replays its face and edge picks,
and subtracts a cutter-sized relief at every selected internal corner so a
round end mill can clear it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(c.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().IntVar(&c.meshRes, "mesh-cells", 0, "Marching cubes resolution for meshes (0 = kernel default)")

	root.AddCommand(c.runCmd())
	root.AddCommand(c.checkCmd())
	return root
}

// newLogger builds a development logger when verbose, else a production
// logger at Info.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	return zap.NewProductionConfig().Build()
}

func (c *cli) app() *App {
	return NewApp(sdfx.New(sdfx.WithMeshCells(c.meshRes)), c.logger)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
