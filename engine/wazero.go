package engine

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/wasm"
)

// HostFunc implements one function import. params and results use wazero's
// uint64 stack encoding of the import's signature.
type HostFunc func(ctx context.Context, params []uint64) ([]uint64, error)

// ImportObject maps import module names to their functions by field name.
type ImportObject map[string]map[string]HostFunc

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Engine compiles and instantiates binary modules.
type Engine struct {
	cache   wazero.CompilationCache
	cfg     Config
	runtime wazero.Runtime
}

// New creates an engine with the default configuration
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates an engine with custom configuration
func NewWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	e := &Engine{cache: wazero.NewCompilationCache()}
	if cfg != nil {
		e.cfg = *cfg
	}
	e.runtime = wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	return e, nil
}

func (e *Engine) runtimeConfig() wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	if e.cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	return rc
}

// Close releases the engine's runtime and compilation cache. Instances
// created by the engine must be closed first.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if cerr := e.cache.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// Verify compiles data and reports whether it is a valid module.
func (e *Engine) Verify(ctx context.Context, data []byte) error {
	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("compile failed").
			Cause(err).
			Build()
	}
	debugf("verified module: %d imports, %d exports",
		len(compiled.ImportedFunctions()), len(compiled.ExportedFunctions()))
	return compiled.Close(ctx)
}

// Instantiate compiles data and instantiates it against imports. Every
// function import must be provided; memory, table and global imports are
// not supported by the native host.
func (e *Engine) Instantiate(ctx context.Context, data []byte, imports ImportObject) (*Instance, error) {
	iface, err := wasm.ReadInterface(data)
	if err != nil {
		return nil, errors.Instantiation("", err)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	inst, err := instantiate(ctx, rt, data, imports)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	inst.iface = iface
	return inst, nil
}

func instantiate(ctx context.Context, rt wazero.Runtime, data []byte, imports ImportObject) (*Instance, error) {
	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.Instantiation("", fmt.Errorf("compile: %w", err))
	}

	if n := len(compiled.ImportedMemories()); n > 0 {
		return nil, errors.Instantiation("", fmt.Errorf("%d memory imports are not supported", n))
	}

	// Group function imports by module so each host module is built once.
	byModule := make(map[string][]api.FunctionDefinition)
	for _, def := range compiled.ImportedFunctions() {
		mod, _, _ := def.Import()
		byModule[mod] = append(byModule[mod], def)
	}
	modules := make([]string, 0, len(byModule))
	for mod := range byModule {
		modules = append(modules, mod)
	}
	sort.Strings(modules)

	for _, mod := range modules {
		builder := rt.NewHostModuleBuilder(mod)
		for _, def := range byModule[mod] {
			_, name, _ := def.Import()
			fn, ok := imports[mod][name]
			if !ok {
				return nil, errors.Instantiation("", fmt.Errorf("missing import %s.%s", mod, name))
			}
			builder.NewFunctionBuilder().
				WithGoModuleFunction(hostHandler(mod, name, fn, len(def.ResultTypes())), def.ParamTypes(), def.ResultTypes()).
				Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return nil, errors.Instantiation("", fmt.Errorf("host module %s: %w", mod, err))
		}
		Logger().Debug("host module instantiated",
			zap.String("module", mod),
			zap.Int("functions", len(byModule[mod])))
	}

	module, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Instantiation("", err)
	}
	return &Instance{runtime: rt, module: module}, nil
}

// hostHandler adapts a HostFunc to wazero's stack calling convention.
// Errors abort the calling guest function.
func hostHandler(mod, name string, fn HostFunc, nResults int) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		params := append([]uint64(nil), stack...)
		results, err := fn(ctx, params)
		if err != nil {
			panic(fmt.Errorf("%s.%s: %w", mod, name, err))
		}
		if len(results) != nResults {
			panic(fmt.Errorf("%s.%s: returned %d results, want %d", mod, name, len(results), nResults))
		}
		copy(stack, results)
	}
}

// Instance is an instantiated module with its own runtime.
type Instance struct {
	runtime wazero.Runtime
	module  api.Module
	iface   *wasm.Interface
}

// Exports returns the module's export names sorted lexically.
func (i *Instance) Exports() []string {
	return i.iface.ExportNames()
}

// Call invokes an exported function.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.New(errors.PhaseInstantiate, errors.KindNotFound).
			Detail("no exported function %q", name).
			Build()
	}
	return fn.Call(ctx, params...)
}

// Global returns the current value of an exported global.
func (i *Instance) Global(name string) (uint64, bool) {
	g := i.module.ExportedGlobal(name)
	if g == nil {
		return 0, false
	}
	return g.Get(), true
}

// MemorySize returns the size in bytes of the exported memory, if any.
func (i *Instance) MemorySize() uint32 {
	if mem := i.module.Memory(); mem != nil {
		return mem.Size()
	}
	return 0
}

// Close releases the instance and its host modules.
func (i *Instance) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}

// ReadBytes reads a binary from the filesystem.
func ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := errors.KindLoad
		if os.IsNotExist(err) {
			kind = errors.KindNotFound
		}
		return nil, errors.New(errors.PhaseLoad, kind).
			Detail("read binary").
			Cause(err).
			Build()
	}
	return data, nil
}
