package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/dogbone/pkg/config"
	"github.com/spf13/cobra"
)

// errRunFailed is returned after the summary when any step reported an
// error.
var errRunFailed = errors.New("run finished with errors")

type runFlags struct {
	config  string
	out     string
	preview bool
	tools   bool

	toolDiameter float64
	style        string
	acute        bool
	obtuse       bool
}

func (c *cli) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Evaluate a script and cut its selected reliefs",
		Long: `Evaluates the script, replays its select-face / select-edge picks,
relieves every selected corner and prints a summary.

Parameters come from --config (or the defaults), then the script's own
tool, relief and detect forms, then the flags below. A flag given on the
command line always wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := f.base()
			if err != nil {
				return err
			}
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			res := c.app().Run(cmd.Context(), string(source), RunOptions{
				Base:     base,
				Override: f.override(cmd),
				Preview:  f.preview,
				Tools:    f.tools,
			})
			printSummary(cmd.OutOrStdout(), res)

			if f.out != "" {
				if err := writeJSON(f.out, res); err != nil {
					return err
				}
			}
			if res.ErrorCount > 0 {
				return errRunFailed
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "YAML parameter file")
	fl.StringVarP(&f.out, "out", "o", "", "Write meshes and the summary as JSON to this file")
	fl.BoolVar(&f.preview, "preview", false, "Build tool bodies without cutting")
	fl.BoolVar(&f.tools, "tools", false, "Include tool body meshes in --out")
	fl.Float64Var(&f.toolDiameter, "tool-diameter", 0, "Cutter diameter in mm")
	fl.StringVar(&f.style, "style", "", "Relief style: normal, minimal or mortise")
	fl.BoolVar(&f.acute, "acute", false, "Also relieve acute corners")
	fl.BoolVar(&f.obtuse, "obtuse", false, "Also relieve obtuse corners")
	return cmd
}

// base loads the parameter file, or the defaults when none was given.
func (f runFlags) base() (config.Params, error) {
	if f.config == "" {
		return config.Default(), nil
	}
	return config.Load(f.config)
}

// override returns a function setting the parameters the user gave as
// flags. Flags left at their defaults change nothing.
func (f runFlags) override(cmd *cobra.Command) func(*config.Params) {
	fl := cmd.Flags()
	return func(p *config.Params) {
		if fl.Changed("tool-diameter") {
			p.ToolDiameter = f.toolDiameter
		}
		if fl.Changed("style") {
			p.Style = f.style
		}
		if fl.Changed("acute") {
			p.Acute = f.acute
		}
		if fl.Changed("obtuse") {
			p.Obtuse = f.obtuse
		}
	}
}

func printSummary(w io.Writer, res EvalResult) {
	for _, e := range res.Errors {
		if e.Line > 0 {
			fmt.Fprintf(w, "error: line %d: %s\n", e.Line, e.Message)
		} else {
			fmt.Fprintf(w, "error: %s\n", e.Message)
		}
	}
	for _, wn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", wn.Message)
	}

	edges := 0
	for _, r := range res.Reliefs {
		state := "cut"
		if !r.Cut {
			state = "not cut"
		}
		fmt.Fprintf(w, "%s: %d reliefs, %s\n", r.Occurrence, r.Edges, state)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		edges += r.Edges
	}
	fmt.Fprintf(w, "%d occurrences, %d reliefs, %d meshes, %d errors\n",
		len(res.Reliefs), edges, len(res.Meshes), res.ErrorCount)
}

func writeJSON(path string, res EvalResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
