package wasm

import (
	"fmt"
	"sort"
)

// ImportEntry is one import of a module with its resolved signature.
type ImportEntry struct {
	Func   *FuncType
	Module string
	Name   string
	Kind   byte
}

// ExportEntry is one export of a module with its resolved signature.
// Func is set for function exports only.
type ExportEntry struct {
	Func *FuncType
	Name string
	Kind byte
}

// Interface is the link surface of a module: what it imports and exports.
type Interface struct {
	Imports []ImportEntry
	Exports []ExportEntry
}

// ReadInterface parses data and resolves the signatures of its imports and exports.
func ReadInterface(data []byte) (*Interface, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	return m.Interface()
}

// Interface resolves import and export signatures against the function index space.
func (m *Module) Interface() (*Interface, error) {
	iface := &Interface{
		Imports: make([]ImportEntry, 0, len(m.Imports)),
		Exports: make([]ExportEntry, 0, len(m.Exports)),
	}

	// Function index space: imported functions first, then declared ones.
	var funcTypes []uint32
	for _, imp := range m.Imports {
		entry := ImportEntry{Module: imp.Module, Name: imp.Name, Kind: imp.Kind}
		if imp.Kind == KindFunc {
			ft, err := m.funcType(imp.TypeIdx)
			if err != nil {
				return nil, fmt.Errorf("import %s.%s: %w", imp.Module, imp.Name, err)
			}
			entry.Func = ft
			funcTypes = append(funcTypes, imp.TypeIdx)
		}
		iface.Imports = append(iface.Imports, entry)
	}
	funcTypes = append(funcTypes, m.Funcs...)

	seen := make(map[string]bool, len(m.Exports))
	for _, exp := range m.Exports {
		if seen[exp.Name] {
			return nil, fmt.Errorf("duplicate export name %q", exp.Name)
		}
		seen[exp.Name] = true

		entry := ExportEntry{Name: exp.Name, Kind: exp.Kind}
		if exp.Kind == KindFunc {
			if int(exp.Idx) >= len(funcTypes) {
				return nil, fmt.Errorf("export %q: function index %d out of range", exp.Name, exp.Idx)
			}
			ft, err := m.funcType(funcTypes[exp.Idx])
			if err != nil {
				return nil, fmt.Errorf("export %q: %w", exp.Name, err)
			}
			entry.Func = ft
		}
		iface.Exports = append(iface.Exports, entry)
	}
	return iface, nil
}

func (m *Module) funcType(idx uint32) (*FuncType, error) {
	if int(idx) >= len(m.Types) {
		return nil, fmt.Errorf("type index %d out of range", idx)
	}
	ft := m.Types[idx]
	return &ft, nil
}

// ImportModules returns the distinct import module names in first-appearance order.
func (i *Interface) ImportModules() []string {
	var out []string
	seen := make(map[string]bool)
	for _, imp := range i.Imports {
		if !seen[imp.Module] {
			seen[imp.Module] = true
			out = append(out, imp.Module)
		}
	}
	return out
}

// ExportNames returns the export names sorted lexically.
func (i *Interface) ExportNames() []string {
	names := make([]string, len(i.Exports))
	for j, e := range i.Exports {
		names[j] = e.Name
	}
	sort.Strings(names)
	return names
}
