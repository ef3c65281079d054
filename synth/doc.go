// Package synth generates loader modules for WebAssembly binaries.
//
// A loader is a virtual ECMAScript module that obtains the binary's bytes,
// instantiates it with an import object assembled from the modules the
// binary imports, and re-exports every export under its original name:
//
//	import { instantiate, readBytes } from "\0wasmpack:helper";
//	import * as __wasm_import_0 from "./env.js";
//
//	const __wasm_exports = await instantiate("mod.wasm",
//		readBytes(new URL("mod-1a2b3c4d.wasm", import.meta.url)),
//		{ "./env.js": __wasm_import_0 });
//
//	export function add(a0, a1) { return __wasm_exports["add"](a0, a1); }
//	export let memory;
//	memory = __wasm_exports["memory"];
//
// Function exports are static stubs so importers can link against them
// before instantiation completes. Every other export binds after.
//
// Every loader suspends at top level. A failed instantiation rejects the
// loader's initialization with a WasmInstantiationError from the helper module.
package synth
