package wasmpack

import (
	"context"

	"go.uber.org/multierr"

	"github.com/wippyai/wasmpack/bundler"
	"github.com/wippyai/wasmpack/config"
	"github.com/wippyai/wasmpack/engine"
	"github.com/wippyai/wasmpack/plugins/toplevelawait"
	wasmplugin "github.com/wippyai/wasmpack/plugins/wasm"
	"github.com/wippyai/wasmpack/synth"
)

// Config describes a build.
type Config struct {
	Root    string
	Entries []string
	// OutDir is where Build emits output. Empty skips emission.
	OutDir      string
	Concurrency int
	External    []string

	Wasm          wasmplugin.Options
	TopLevelAwait toplevelawait.Options
	// Verify compiles every binary with the native engine during load.
	Verify bool

	// Plugins run alongside the built-in wasm and top-level-await plugins.
	Plugins []bundler.Plugin
}

// DefineConfig returns cfg with defaults applied. An empty wasm include
// list selects the default list with magic-number sniffing enabled.
func DefineConfig(cfg Config) Config {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = bundler.DefaultConcurrency
	}
	if len(cfg.Wasm.Include) == 0 {
		cfg.Wasm.Include = []string{"**/*.wasm"}
		cfg.Wasm.Sniff = true
	}
	if cfg.Wasm.Root == "" {
		cfg.Wasm.Root = cfg.Root
	}
	if cfg.Wasm.Strategy == "" {
		cfg.Wasm.Strategy = synth.StrategyFetch
	}
	if cfg.Wasm.Target == "" {
		cfg.Wasm.Target = synth.TargetBrowser
	}
	return cfg
}

// FromFile converts a configuration file into a Config.
func FromFile(f *config.File) Config {
	return DefineConfig(Config{
		Root:        f.Root,
		Entries:     f.Entries,
		OutDir:      f.OutDir,
		Concurrency: f.Concurrency,
		External:    f.External,
		Wasm: wasmplugin.Options{
			Root:      f.Root,
			Include:   f.Wasm.Include,
			Sniff:     f.Wasm.Sniff,
			Strategy:  synth.Strategy(f.Wasm.Strategy),
			Target:    synth.Target(f.Wasm.Target),
			CacheSize: f.Wasm.CacheSize,
		},
		TopLevelAwait: toplevelawait.Options{
			PromiseExportName: f.TopLevelAwait.PromiseExportName,
			PromiseImportName: f.TopLevelAwait.ImportNamer(),
		},
		Verify: f.Wasm.Verify,
	})
}

// Build runs a build with the wasm and top-level-await plugins and, when
// cfg.OutDir is set, emits the result.
func Build(ctx context.Context, cfg Config) (res *bundler.Result, err error) {
	cfg = DefineConfig(cfg)

	wasmOpts := cfg.Wasm
	if cfg.Verify && wasmOpts.Verifier == nil {
		eng, nerr := engine.New(ctx)
		if nerr != nil {
			return nil, nerr
		}
		defer func() { err = multierr.Append(err, eng.Close(ctx)) }()
		wasmOpts.Verifier = eng
	}

	wp, err := wasmplugin.New(wasmOpts)
	if err != nil {
		return nil, err
	}
	plugins := append([]bundler.Plugin{wp, toplevelawait.New(cfg.TopLevelAwait)}, cfg.Plugins...)

	b, err := bundler.New(bundler.Options{
		Root:        cfg.Root,
		Entries:     cfg.Entries,
		Concurrency: cfg.Concurrency,
		External:    cfg.External,
	}, plugins...)
	if err != nil {
		return nil, err
	}
	res, err = b.Build(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.OutDir != "" {
		if _, err := bundler.Emit(res, cfg.OutDir); err != nil {
			return nil, err
		}
	}
	return res, nil
}
