// Package wasm reads the link surface of WebAssembly binary modules.
//
// The bundler only needs to know what a binary imports and exports, so this
// package decodes the type, import, function, memory and export sections and
// skips code and data. Function signatures are resolved through the function
// index space so every function export carries its parameter and result types.
//
// # Sniffing
//
//	wasm.IsModule(data)    // "\0asm" + version 1
//	wasm.IsComponent(data) // "\0asm" + component layer
//
// # Interface
//
//	iface, err := wasm.ReadInterface(data)
//	for _, e := range iface.Exports {
//	    fmt.Println(e.Name, wasm.KindName(e.Kind), e.Func)
//	}
//
// # Encoding
//
// Module.Encode writes the modeled sections back out. It exists so tests and
// tools can build small fixtures without checked-in binaries:
//
//	m := &wasm.Module{
//	    Types:   []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
//	    Funcs:   []uint32{0},
//	    Exports: []wasm.Export{{Name: "f", Kind: wasm.KindFunc}},
//	    Code:    []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
//	}
//	data := m.Encode()
package wasm
