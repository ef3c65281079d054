// Package classify decides whether an import path names a binary module
// asset or a source module.
//
// The decision is made from a configurable glob allow-list first. Paths whose
// extension is neither a known source extension nor matched by the
// allow-list are ambiguous; for those the first bytes of the file are sniffed
// for the WebAssembly magic number when sniffing is enabled.
package classify

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/wasm"
)

// Class is the classification of a module path.
type Class uint8

const (
	Source Class = iota
	BinaryAsset
)

func (c Class) String() string {
	if c == BinaryAsset {
		return "binary-asset"
	}
	return "source"
}

// DefaultInclude is the allow-list used when Options.Include is empty.
var DefaultInclude = []string{"**/*.wasm"}

// sourceExtensions are never sniffed.
var sourceExtensions = map[string]bool{
	".js": true, ".mjs": true, ".cjs": true, ".jsx": true, ".json": true,
}

// Options configures a Classifier.
type Options struct {
	// Root anchors relative glob matching. Paths outside Root are matched by
	// base name.
	Root string
	// Include lists doublestar patterns naming binary assets.
	Include []string
	// Sniff enables the magic-byte check for ambiguous extensions.
	Sniff bool
}

// Classifier is safe for concurrent use. It holds no mutable state, so the
// same path and file content always classify the same way.
type Classifier struct {
	root    string
	include []string
	sniff   bool
}

// New validates the allow-list and returns a Classifier.
func New(opts Options) (*Classifier, error) {
	include := opts.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("invalid include pattern %q", p).
				Build()
		}
	}
	root := opts.Root
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid root")
		}
		root = abs
	}
	return &Classifier{
		root:    root,
		include: append([]string(nil), include...),
		sniff:   opts.Sniff,
	}, nil
}

// Match classifies path by name alone. ok is false when the name is
// ambiguous and the file content decides.
func (c *Classifier) Match(path string) (class Class, ok bool) {
	for _, name := range c.candidates(path) {
		for _, p := range c.include {
			if matched, _ := doublestar.Match(p, name); matched {
				return BinaryAsset, true
			}
		}
	}
	if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
		return Source, true
	}
	if !c.sniff {
		return Source, true
	}
	return Source, false
}

// Classify classifies the file at path. A path that does not name an
// existing regular file is a resolution error.
func (c *Classifier) Classify(path string) (Class, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source, errors.New(errors.PhaseResolve, errors.KindResolution).
			Module(path).
			Detail("file does not exist").
			Cause(err).
			Build()
	}
	if info.IsDir() {
		return Source, errors.New(errors.PhaseResolve, errors.KindResolution).
			Module(path).
			Detail("path is a directory").
			Build()
	}
	if class, ok := c.Match(path); ok {
		return class, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Source, errors.Wrap(errors.PhaseLoad, errors.KindLoad, err, "sniff "+path)
	}
	defer f.Close()

	header := make([]byte, wasm.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Source, errors.Wrap(errors.PhaseLoad, errors.KindLoad, err, "sniff "+path)
	}
	return Sniff(header[:n]), nil
}

// Sniff classifies raw content by its magic number.
func Sniff(data []byte) Class {
	if wasm.HasMagic(data) {
		return BinaryAsset
	}
	return Source
}

// candidates returns the slash-separated names a pattern is matched against.
func (c *Classifier) candidates(path string) []string {
	base := filepath.Base(path)
	if c.root == "" || !filepath.IsAbs(path) {
		return []string{filepath.ToSlash(path), base}
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return []string{base}
	}
	return []string{filepath.ToSlash(rel), base}
}
