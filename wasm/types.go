package wasm

import "strings"

// Module is the subset of a WebAssembly module relevant to linking:
// its signatures, imports, exports and enough of the remaining sections to
// encode runnable fixtures.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Memories []Limits
	Globals  []Global
	Exports  []Export
	Code     []FuncBody

	CustomSections []CustomSection
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// String renders the signature in text-format style: (i32, i32) -> (i32).
func (f FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> (")
	for i, r := range f.Results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.String())
	}
	b.WriteByte(')')
	return b.String()
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	case ValRefNull:
		return "ref null"
	case ValRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Import represents an imported function, table, memory, global, or tag.
type Import struct {
	Module  string
	Name    string
	Kind    byte
	TypeIdx uint32 // for KindFunc and KindTag
	Limits  *Limits
	Global  *GlobalType
}

// Export represents an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Limits describes table or memory bounds.
type Limits struct {
	Max    *uint64
	Min    uint64
	Shared bool
	Is64   bool
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a defined global with its constant initializer expression
// (including the trailing end opcode).
type Global struct {
	Init []byte
	Type GlobalType
}

// FuncBody holds locals and raw instruction bytes (including the trailing end).
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count uint32
	Type  ValType
}

// CustomSection is a named custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// KindName returns the text-format name of an import/export kind.
func KindName(kind byte) string {
	switch kind {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindTag:
		return "tag"
	default:
		return "unknown"
	}
}
