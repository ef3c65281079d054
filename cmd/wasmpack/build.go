package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/wippyai/wasmpack"
	"github.com/wippyai/wasmpack/bundler"
)

var (
	buildOpts buildFlags
	outDir    string
)

var buildCmd = &cobra.Command{
	Use:   "build [entry...]",
	Short: "Build the module graph and write the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := buildOpts.loadConfig(cmd, args)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("out") {
			file.OutDir = outDir
		}
		if file.OutDir == "" {
			file.OutDir = "dist"
		}
		cfg := wasmpack.FromFile(file)
		out := cfg.OutDir
		cfg.OutDir = ""

		res, err := runWithSpinner(cmd.Context(), "Building", func(ctx context.Context) (*bundler.Result, error) {
			return wasmpack.Build(ctx, cfg)
		})
		if err != nil {
			return err
		}
		written, err := bundler.Emit(res, out)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%d modules, %d async\n", len(res.Modules), res.Suspension.Len())
		for _, name := range written {
			fmt.Fprintf(w, "  %s\n", name)
		}
		return nil
	},
}

func init() {
	buildOpts.register(buildCmd)
	buildCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: config outDir or dist)")
}

// formatError lists every error of a failed build on its own line.
func formatError(err error) string {
	errs := multierr.Errors(err)
	if len(errs) <= 1 {
		return err.Error()
	}
	s := errs[0].Error()
	for _, e := range errs[1:] {
		s += "\n  " + e.Error()
	}
	return s
}

type buildDoneMsg struct {
	res *bundler.Result
	err error
}

type spinnerModel struct {
	spinner spinner.Model
	label   string
	run     func() tea.Msg
	done    *buildDoneMsg
}

func (m *spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case buildDoneMsg:
		m.done = &msg
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done != nil {
		return ""
	}
	return m.spinner.View() + " " + m.label + "...\n"
}

// runWithSpinner runs fn, showing a spinner on an interactive terminal
// unless verbose logging is on.
func runWithSpinner(ctx context.Context, label string, fn func(context.Context) (*bundler.Result, error)) (*bundler.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if verbose || !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle.UnsetBackground().UnsetPadding()
	m := &spinnerModel{
		spinner: sp,
		label:   label,
		run: func() tea.Msg {
			res, err := fn(ctx)
			return buildDoneMsg{res: res, err: err}
		},
	}
	if _, err := tea.NewProgram(m, tea.WithOutput(os.Stderr)).Run(); err != nil {
		return nil, err
	}
	if m.done == nil {
		return nil, context.Canceled
	}
	return m.done.res, m.done.err
}
