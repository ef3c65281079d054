package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasmpack/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
	ErrComponent      = errors.New("component model binaries are not core modules")
)

// ParseModule parses the linking-relevant sections of a WebAssembly binary
// module: types, imports, functions, memories, exports and custom sections.
// Code, data, element and global initializers are skipped.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data, 0)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version == ComponentVersion {
		return nil, ErrComponent
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}

	var lastSectionOrder int
	for r.Len() > 0 {
		sectionID, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}

		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
			}
			if order <= lastSectionOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSectionOrder = order
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}

		start := r.Position()
		sectionData, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(sectionData, start)

		switch sectionID {
		case SectionCustom:
			if err := parseCustomSection(sr, m); err != nil {
				return nil, fmt.Errorf("custom section: %w", err)
			}
		case SectionType:
			if err := parseTypeSection(sr, m); err != nil {
				return nil, fmt.Errorf("type section: %w", err)
			}
		case SectionImport:
			if err := parseImportSection(sr, m); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case SectionFunction:
			if err := parseFunctionSection(sr, m); err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
		case SectionMemory:
			if err := parseMemorySection(sr, m); err != nil {
				return nil, fmt.Errorf("memory section: %w", err)
			}
		case SectionExport:
			if err := parseExportSection(sr, m); err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
		}
	}

	return m, nil
}

// sectionOrder returns the canonical ordering for a section ID, or 0 if unknown.
// WASM spec requires sections in specific order, which differs from section IDs.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6 // Tag comes after Memory, before Global
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11 // DataCount must come before Code
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	rest, err := r.ReadBytes(r.Len())
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{
		Name: name,
		Data: rest,
	})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch form {
		case FuncTypeByte:
			ft, err := readFuncType(r)
			if err != nil {
				return err
			}
			m.Types = append(m.Types, ft)
		case RecTypeByte:
			n, err := r.ReadU32()
			if err != nil {
				return err
			}
			for j := uint32(0); j < n; j++ {
				ft, err := readSubType(r)
				if err != nil {
					return err
				}
				m.Types = append(m.Types, ft)
			}
		case SubTypeByte, SubFinalByte:
			ft, err := readSubTypeBody(r)
			if err != nil {
				return err
			}
			m.Types = append(m.Types, ft)
		default:
			return fmt.Errorf("unsupported type form 0x%02x", form)
		}
	}
	return nil
}

func readSubType(r *binary.Reader) (FuncType, error) {
	form, err := r.ReadByte()
	if err != nil {
		return FuncType{}, err
	}
	switch form {
	case FuncTypeByte:
		return readFuncType(r)
	case SubTypeByte, SubFinalByte:
		return readSubTypeBody(r)
	default:
		return FuncType{}, fmt.Errorf("unsupported composite type 0x%02x", form)
	}
}

func readSubTypeBody(r *binary.Reader) (FuncType, error) {
	parents, err := r.ReadU32()
	if err != nil {
		return FuncType{}, err
	}
	for i := uint32(0); i < parents; i++ {
		if _, err := r.ReadU32(); err != nil {
			return FuncType{}, err
		}
	}
	form, err := r.ReadByte()
	if err != nil {
		return FuncType{}, err
	}
	if form != FuncTypeByte {
		return FuncType{}, fmt.Errorf("unsupported composite type 0x%02x", form)
	}
	return readFuncType(r)
}

func readFuncType(r *binary.Reader) (FuncType, error) {
	params, err := readValTypes(r)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readValTypes(r)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	types := make([]ValType, 0, count)
	for i := uint32(0); i < count; i++ {
		vt, err := readValType(r)
		if err != nil {
			return nil, err
		}
		types = append(types, vt)
	}
	return types, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	if vt == ValRefNull || vt == ValRef {
		if _, err := r.ReadS33(); err != nil {
			return 0, err
		}
	}
	return vt, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}

		imp := Import{Module: module, Name: name, Kind: kind}

		switch kind {
		case KindFunc:
			imp.TypeIdx, err = r.ReadU32()
			if err != nil {
				return err
			}
		case KindTable:
			if _, err := readValType(r); err != nil {
				return err
			}
			limits, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Limits = &limits
		case KindMemory:
			limits, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Limits = &limits
		case KindGlobal:
			vt, err := readValType(r)
			if err != nil {
				return err
			}
			mut, err := r.ReadByte()
			if err != nil {
				return err
			}
			imp.Global = &GlobalType{ValType: vt, Mutable: mut == 1}
		case KindTag:
			if _, err := r.ReadByte(); err != nil {
				return err
			}
			imp.TypeIdx, err = r.ReadU32()
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown import kind: %d", kind)
		}

		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		m.Funcs[i], err = r.ReadU32()
		if err != nil {
			return err
		}
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Memories = make([]Limits, count)
	for i := uint32(0); i < count; i++ {
		m.Memories[i], err = readLimits(r)
		if err != nil {
			return err
		}
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Exports = make([]Export, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind > KindTag {
			return fmt.Errorf("invalid export kind: 0x%02x", kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports[i] = Export{Name: name, Kind: kind, Idx: idx}
	}
	return nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags > 0x07 {
		return Limits{}, fmt.Errorf("invalid limits flags: 0x%02x", flags)
	}
	l := Limits{Shared: flags&0x02 != 0, Is64: flags&0x04 != 0}
	readBound := func() (uint64, error) {
		if l.Is64 {
			return r.ReadU64()
		}
		v, err := r.ReadU32()
		return uint64(v), err
	}
	if l.Min, err = readBound(); err != nil {
		return Limits{}, err
	}
	if flags&0x01 != 0 {
		hi, err := readBound()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &hi
	}
	return l, nil
}
