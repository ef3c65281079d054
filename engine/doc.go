// Package engine is the native-host environment for binary modules.
//
// It provides the two primitives a loader depends on, implemented over
// wazero: ReadBytes fetches a binary from the filesystem and
// Engine.Instantiate links it against an import object of Go host
// functions. Engine.Verify compiles a binary without running it, which the
// wasm plugin uses to reject invalid binaries at build time.
//
// Compilation results are shared across instances through a wazero
// compilation cache. Each Instance owns its own runtime so host modules of
// different instances never collide by name.
//
//	eng, _ := engine.New(ctx)
//	defer eng.Close(ctx)
//
//	inst, err := eng.Instantiate(ctx, data, engine.ImportObject{
//		"env": {"log": func(ctx context.Context, params []uint64) ([]uint64, error) {
//			fmt.Println(int32(params[0]))
//			return nil, nil
//		}},
//	})
//	results, err := inst.Call(ctx, "add", 1, 2)
//
// Instantiation failures are InstantiationErrors; they never panic.
package engine
