package wasm

import (
	"github.com/wippyai/wasmpack/wasm/internal/binary"
)

// Encode serializes the module to the WebAssembly binary format. Only the
// sections modeled by Module are written.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		w.Section(SectionType, func(b *binary.Writer) {
			b.WriteU32(uint32(len(m.Types)))
			for _, ft := range m.Types {
				b.Byte(FuncTypeByte)
				writeValTypes(b, ft.Params)
				writeValTypes(b, ft.Results)
			}
		})
	}

	if len(m.Imports) > 0 {
		w.Section(SectionImport, func(b *binary.Writer) {
			b.WriteU32(uint32(len(m.Imports)))
			for _, imp := range m.Imports {
				b.WriteName(imp.Module)
				b.WriteName(imp.Name)
				b.Byte(imp.Kind)
				switch imp.Kind {
				case KindFunc:
					b.WriteU32(imp.TypeIdx)
				case KindTable:
					b.Byte(byte(ValFuncRef))
					writeLimits(b, limitsOrZero(imp.Limits))
				case KindMemory:
					writeLimits(b, limitsOrZero(imp.Limits))
				case KindGlobal:
					g := GlobalType{ValType: ValI32}
					if imp.Global != nil {
						g = *imp.Global
					}
					writeGlobalType(b, g)
				case KindTag:
					b.Byte(0)
					b.WriteU32(imp.TypeIdx)
				}
			}
		})
	}

	if len(m.Funcs) > 0 {
		w.Section(SectionFunction, func(b *binary.Writer) {
			b.WriteU32(uint32(len(m.Funcs)))
			for _, idx := range m.Funcs {
				b.WriteU32(idx)
			}
		})
	}

	if len(m.Memories) > 0 {
		w.Section(SectionMemory, func(b *binary.Writer) {
			b.WriteU32(uint32(len(m.Memories)))
			for _, l := range m.Memories {
				writeLimits(b, l)
			}
		})
	}

	if len(m.Globals) > 0 {
		w.Section(SectionGlobal, func(b *binary.Writer) {
			b.WriteU32(uint32(len(m.Globals)))
			for _, g := range m.Globals {
				writeGlobalType(b, g.Type)
				b.WriteBytes(g.Init)
			}
		})
	}

	if len(m.Exports) > 0 {
		w.Section(SectionExport, func(b *binary.Writer) {
			b.WriteU32(uint32(len(m.Exports)))
			for _, e := range m.Exports {
				b.WriteName(e.Name)
				b.Byte(e.Kind)
				b.WriteU32(e.Idx)
			}
		})
	}

	if len(m.Code) > 0 {
		w.Section(SectionCode, func(b *binary.Writer) {
			b.WriteU32(uint32(len(m.Code)))
			for _, body := range m.Code {
				fb := binary.NewWriter()
				fb.WriteU32(uint32(len(body.Locals)))
				for _, l := range body.Locals {
					fb.WriteU32(l.Count)
					fb.Byte(byte(l.Type))
				}
				fb.WriteBytes(body.Code)
				b.WriteU32(uint32(len(fb.Bytes())))
				b.WriteBytes(fb.Bytes())
			}
		})
	}

	for _, cs := range m.CustomSections {
		w.Section(SectionCustom, func(b *binary.Writer) {
			b.WriteName(cs.Name)
			b.WriteBytes(cs.Data)
		})
	}

	return w.Bytes()
}

func writeValTypes(b *binary.Writer, types []ValType) {
	b.WriteU32(uint32(len(types)))
	for _, t := range types {
		b.Byte(byte(t))
	}
}

func writeGlobalType(b *binary.Writer, g GlobalType) {
	b.Byte(byte(g.ValType))
	if g.Mutable {
		b.Byte(1)
	} else {
		b.Byte(0)
	}
}

func writeLimits(b *binary.Writer, l Limits) {
	if l.Max != nil {
		b.Byte(0x01)
		b.WriteU32(uint32(l.Min))
		b.WriteU32(uint32(*l.Max))
		return
	}
	b.Byte(0x00)
	b.WriteU32(uint32(l.Min))
}

func limitsOrZero(l *Limits) Limits {
	if l == nil {
		return Limits{}
	}
	return *l
}
