// Package config loads wasmpack.yaml build configuration files.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasmpack/errors"
)

// FileName is the configuration file looked up by default.
const FileName = "wasmpack.yaml"

// IndexPlaceholder is replaced by the dependency index in
// TopLevelAwait.PromiseImportName.
const IndexPlaceholder = "{i}"

// Defaults.
const (
	DefaultConcurrency       = 16
	DefaultStrategy          = "fetch"
	DefaultTarget            = "browser"
	DefaultPromiseExportName = "__tla"
)

// File is a decoded configuration file.
type File struct {
	Root          string        `yaml:"root"`
	Entries       []string      `yaml:"entries"`
	OutDir        string        `yaml:"outDir"`
	Concurrency   int           `yaml:"concurrency"`
	External      []string      `yaml:"external"`
	Wasm          Wasm          `yaml:"wasm"`
	TopLevelAwait TopLevelAwait `yaml:"topLevelAwait"`
}

// Wasm configures the binary module plugin.
type Wasm struct {
	Include   []string `yaml:"include"`
	Sniff     bool     `yaml:"sniff"`
	Strategy  string   `yaml:"strategy"`
	Target    string   `yaml:"target"`
	Verify    bool     `yaml:"verify"`
	CacheSize int      `yaml:"cacheSize"`
}

// TopLevelAwait configures the rewrite plugin.
type TopLevelAwait struct {
	PromiseExportName string `yaml:"promiseExportName"`
	// PromiseImportName is a template containing IndexPlaceholder.
	PromiseImportName string `yaml:"promiseImportName"`
}

// Default returns the configuration used for absent fields.
func Default() *File {
	return &File{
		Root:        ".",
		Concurrency: DefaultConcurrency,
		Wasm: Wasm{
			Include:  []string{"**/*.wasm"},
			Sniff:    true,
			Strategy: DefaultStrategy,
			Target:   DefaultTarget,
		},
		TopLevelAwait: TopLevelAwait{
			PromiseExportName: DefaultPromiseExportName,
		},
	}
}

// Load reads and validates the file at path. A relative root is resolved
// against the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := errors.KindInvalidInput
		if os.IsNotExist(err) {
			kind = errors.KindNotFound
		}
		return nil, errors.New(errors.PhaseConfig, kind).
			Module(path).
			Detail("read config").
			Cause(err).
			Build()
	}
	f, err := Parse(data)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.Module = path
		}
		return nil, err
	}
	if !filepath.IsAbs(f.Root) {
		f.Root = filepath.Join(filepath.Dir(path), f.Root)
	}
	return f, nil
}

// Parse decodes data over Default and validates the result. Unknown keys
// are errors.
func Parse(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && err != io.EOF {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("decode config").
			Cause(err).
			Build()
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks field values. Zero values of optional fields are replaced
// by their defaults.
func (f *File) Validate() error {
	if f.Root == "" {
		f.Root = "."
	}
	if f.Concurrency < 0 {
		return invalid("concurrency must be positive, got %d", f.Concurrency)
	}
	if f.Concurrency == 0 {
		f.Concurrency = DefaultConcurrency
	}
	switch f.Wasm.Strategy {
	case "":
		f.Wasm.Strategy = DefaultStrategy
	case "fetch", "inline":
	default:
		return invalid("wasm.strategy must be fetch or inline, got %q", f.Wasm.Strategy)
	}
	switch f.Wasm.Target {
	case "":
		f.Wasm.Target = DefaultTarget
	case "browser", "node":
	default:
		return invalid("wasm.target must be browser or node, got %q", f.Wasm.Target)
	}
	if f.Wasm.CacheSize < 0 {
		return invalid("wasm.cacheSize must be positive, got %d", f.Wasm.CacheSize)
	}
	if f.TopLevelAwait.PromiseExportName == "" {
		f.TopLevelAwait.PromiseExportName = DefaultPromiseExportName
	}
	if tmpl := f.TopLevelAwait.PromiseImportName; tmpl != "" && !strings.Contains(tmpl, IndexPlaceholder) {
		return invalid("topLevelAwait.promiseImportName must contain %s", IndexPlaceholder)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail(format, args...).Build()
}

// ImportNamer returns the alias function described by the
// promiseImportName template, or nil for the default naming.
func (t TopLevelAwait) ImportNamer() func(int) string {
	tmpl := t.PromiseImportName
	if tmpl == "" {
		return nil
	}
	return func(i int) string {
		return strings.ReplaceAll(tmpl, IndexPlaceholder, strconv.Itoa(i))
	}
}
