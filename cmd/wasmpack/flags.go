package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasmpack/config"
)

// buildFlags override values of the configuration file.
type buildFlags struct {
	root        string
	entries     []string
	external    []string
	concurrency int
	strategy    string
	target      string
	verify      bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.root, "root", "", "Project root (default: config root or .)")
	fl.StringSliceVarP(&f.entries, "entry", "e", nil, "Entry module, relative to the root (repeatable)")
	fl.StringSliceVar(&f.external, "external", nil, "Bare specifier or package prefix left to the runtime (repeatable)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "Maximum concurrent module loads")
	fl.StringVar(&f.strategy, "strategy", "", "Binary asset strategy: fetch or inline")
	fl.StringVar(&f.target, "target", "", "Runtime target: browser or node")
	fl.BoolVar(&f.verify, "verify", false, "Compile every binary during load")
}

// loadConfig reads the configuration file and applies changed flags.
// Positional arguments are entries.
func (f *buildFlags) loadConfig(cmd *cobra.Command, args []string) (*config.File, error) {
	file := config.Default()
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.FileName); err == nil {
			path = config.FileName
		}
	}
	if path != "" {
		var err error
		if file, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	fl := cmd.Flags()
	if fl.Changed("root") {
		file.Root = f.root
	}
	if fl.Changed("entry") {
		file.Entries = f.entries
	}
	if len(args) > 0 {
		file.Entries = append(file.Entries, args...)
	}
	if fl.Changed("external") {
		file.External = append(file.External, f.external...)
	}
	if fl.Changed("concurrency") {
		file.Concurrency = f.concurrency
	}
	if fl.Changed("strategy") {
		file.Wasm.Strategy = f.strategy
	}
	if fl.Changed("target") {
		file.Wasm.Target = f.target
	}
	if fl.Changed("verify") {
		file.Wasm.Verify = f.verify
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}
