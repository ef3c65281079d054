// Package wasmtest builds small WebAssembly binaries for tests.
package wasmtest

import "github.com/wippyai/wasmpack/wasm"

// AddModule returns a module exporting:
//
//	add(i32, i32) -> i32
//	memory (1 page)
//	answer (immutable i32 global = 42)
func AddModule() []byte {
	return addModule(nil).Encode()
}

// ImportingModule returns AddModule extended with function imports. Each entry
// of imports maps an import module name to the field names it provides; all
// imported functions have signature (i32) -> ().
func ImportingModule(imports map[string][]string, order ...string) []byte {
	var imps []wasm.Import
	for _, mod := range order {
		for _, name := range imports[mod] {
			imps = append(imps, wasm.Import{Module: mod, Name: name, Kind: wasm.KindFunc, TypeIdx: 1})
		}
	}
	return addModule(imps).Encode()
}

func addModule(imports []wasm.Import) *wasm.Module {
	nImported := uint32(len(imports))
	return &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{Params: []wasm.ValType{wasm.ValI32}},
		},
		Imports:  imports,
		Funcs:    []uint32{0},
		Memories: []wasm.Limits{{Min: 1}},
		Globals: []wasm.Global{{
			Type: wasm.GlobalType{ValType: wasm.ValI32},
			Init: []byte{wasm.OpI32Const, 42, wasm.OpEnd},
		}},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: nImported},
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: "answer", Kind: wasm.KindGlobal, Idx: 0},
		},
		Code: []wasm.FuncBody{{
			Code: []byte{
				wasm.OpLocalGet, 0,
				wasm.OpLocalGet, 1,
				wasm.OpI32Add,
				wasm.OpEnd,
			},
		}},
	}
}
