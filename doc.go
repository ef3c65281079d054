// Package wasmpack builds ES module graphs that import WebAssembly binaries.
//
// A build discovers every module reachable from the entries, turns each
// imported binary into a synthesized loader module that instantiates it, and
// rewrites every module that transitively depends on a suspending module so
// its importers wait for its initialization before they run.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	wasmpack/            Configuration surface: Config, DefineConfig, Build
//	├── bundler/         Plugin pipeline coordinator, discovery, emission
//	├── plugins/wasm/    Binary module plugin (classify + synthesize)
//	├── plugins/toplevelawait/  Rewrite plugin for async modules
//	├── classify/        Binary asset classification by glob and magic number
//	├── synth/           Loader module and runtime helper generation
//	├── analysis/        Suspension propagation over the static import graph
//	├── rewrite/         Async module rewriting and specifier rewriting
//	├── graph/           Module graph types
//	├── jsscan/          ECMAScript module scanner
//	├── wasm/            Binary interface decoding
//	├── engine/          Native host instantiation over wazero
//	├── config/          wasmpack.yaml loading
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
//	cfg := wasmpack.DefineConfig(wasmpack.Config{
//	    Root:    "web",
//	    Entries: []string{"src/main.js"},
//	    OutDir:  "dist",
//	})
//	res, err := wasmpack.Build(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, m := range res.Modules {
//	    fmt.Println(m.ID, m.Async)
//	}
//
// # Errors
//
// A build either succeeds with every module transformed or fails with no
// output written. Discovery failures are collected across sibling imports
// and returned together, joined with errors.ErrBuildAborted; use
// multierr.Errors to list them and errors.As to inspect one.
package wasmpack
