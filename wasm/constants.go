package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported core module binary format version.
	Version uint32 = 0x01

	// ComponentVersion is the version/layer word of Component Model binaries.
	ComponentVersion uint32 = 0x0001000D
)

// Section IDs define the binary identifiers for each module section.
// Sections must appear in increasing order by ID (except custom sections).
const (
	SectionCustom    byte = 0  // Custom section (can appear anywhere)
	SectionType      byte = 1  // Type section (function signatures)
	SectionImport    byte = 2  // Import section
	SectionFunction  byte = 3  // Function section (type indices)
	SectionTable     byte = 4  // Table section
	SectionMemory    byte = 5  // Memory section
	SectionGlobal    byte = 6  // Global section
	SectionExport    byte = 7  // Export section
	SectionStart     byte = 8  // Start section
	SectionElement   byte = 9  // Element section
	SectionCode      byte = 10 // Code section (function bodies)
	SectionData      byte = 11 // Data section
	SectionDataCount byte = 12 // Data count section (bulk memory)
	SectionTag       byte = 13 // Tag section (exception handling)
)

// Import/Export descriptor kinds identify the type of imported or exported item.
const (
	KindFunc   byte = 0 // Function import/export
	KindTable  byte = 1 // Table import/export
	KindMemory byte = 2 // Memory import/export
	KindGlobal byte = 3 // Global import/export
	KindTag    byte = 4 // Tag import/export (exception handling)
)

// Value type encodings as defined in the WebAssembly binary format.
const (
	ValI32     ValType = 0x7F // 32-bit integer
	ValI64     ValType = 0x7E // 64-bit integer
	ValF32     ValType = 0x7D // 32-bit float
	ValF64     ValType = 0x7C // 64-bit float
	ValV128    ValType = 0x7B // 128-bit vector (SIMD)
	ValFuncRef ValType = 0x70 // Function reference
	ValExtern  ValType = 0x6F // External reference

	ValRefNull ValType = 0x63 // (ref null ht)
	ValRef     ValType = 0x64 // (ref ht)
)

// Type section forms.
const (
	FuncTypeByte   byte = 0x60
	RecTypeByte    byte = 0x4E
	SubTypeByte    byte = 0x50
	SubFinalByte   byte = 0x4F
	StructTypeByte byte = 0x5F
	ArrayTypeByte  byte = 0x5E
)

// Opcodes used by the encoder for constant expressions and simple bodies.
const (
	OpEnd      byte = 0x0B
	OpLocalGet byte = 0x20
	OpI32Const byte = 0x41
	OpI32Add   byte = 0x6A
)
