// Package errors provides structured error types for the wasmpack build pipeline.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the module it concerns, the import chain that led to it
// from the entry module, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindLoad).
//		Module("/src/mod.wasm").
//		Chain(chain...).
//		Detail("file is not a WebAssembly binary").
//		Build()
//
// Or use the convenience constructors for the build failure taxonomy:
//
//	err := errors.Resolution(chain, importer, specifier)
//	err := errors.Load(chain, module, cause)
//	err := errors.Instantiation(module, cause)
//	err := errors.Invariant(errors.PhaseAnalyze, "suspension map did not converge")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
