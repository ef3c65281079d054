package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasmpack"
	"github.com/wippyai/wasmpack/bundler"
)

var (
	graphOpts   buildFlags
	interactive bool
)

var graphCmd = &cobra.Command{
	Use:   "graph [entry...]",
	Short: "Show the module graph and why each async module is async",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := graphOpts.loadConfig(cmd, args)
		if err != nil {
			return err
		}
		cfg := wasmpack.FromFile(file)
		cfg.OutDir = ""

		res, err := runWithSpinner(cmd.Context(), "Analyzing", func(ctx context.Context) (*bundler.Result, error) {
			return wasmpack.Build(ctx, cfg)
		})
		if err != nil {
			return err
		}
		if interactive {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("interactive mode needs a terminal")
			}
			return runInteractive(res)
		}
		printGraph(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	graphOpts.register(graphCmd)
	graphCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse the graph in a terminal UI")
}

// displayName shortens a module id for output.
func displayName(root, id string) string {
	if strings.HasPrefix(id, "\x00") {
		return "<" + id[1:] + ">"
	}
	if rel, err := filepath.Rel(root, id); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return id
}

// asyncLine describes why id is async, or "sync".
func asyncLine(res *bundler.Result, id string) string {
	path := res.Suspension.Explain(id)
	if path == nil {
		return "sync"
	}
	names := make([]string, len(path))
	for i, p := range path {
		names[i] = displayName(res.Root, p)
	}
	return fmt.Sprintf("async (%s: %s)", res.Suspension.Reason(id), strings.Join(names, " -> "))
}

func printGraph(w io.Writer, res *bundler.Result) {
	for _, m := range res.Modules {
		n := m.Node
		fmt.Fprintf(w, "%s  %s  %s\n", displayName(res.Root, n.ID), n.Kind, asyncLine(res, n.ID))
		for _, e := range n.Imports {
			target := "external"
			if !e.External {
				target = displayName(res.Root, e.To)
			}
			fmt.Fprintf(w, "    %q %s -> %s\n", e.Specifier, e.Kind, target)
		}
	}
}
