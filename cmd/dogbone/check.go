package main

import (
	"errors"
	"fmt"

	"github.com/chazu/dogbone/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errInvalidConfig = errors.New("invalid parameter file")

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <config>",
		Short: "Validate a YAML parameter file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(args[0])
			if err != nil {
				return err
			}
			problems := p.Validate()
			out := cmd.OutOrStdout()
			for _, v := range problems {
				fmt.Fprintf(out, "%s: %s\n", args[0], v)
			}
			if len(problems) > 0 {
				c.logger.Debug("config rejected", zap.String("path", args[0]), zap.Int("problems", len(problems)))
				return errInvalidConfig
			}
			fmt.Fprintf(out, "%s: ok\n", args[0])
			return nil
		},
	}
}
