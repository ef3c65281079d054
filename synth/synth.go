package synth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"

	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/wasm"
)

// Strategy selects how a loader obtains the binary's bytes.
type Strategy string

const (
	// StrategyFetch emits the binary next to the loader and reads it at runtime.
	StrategyFetch Strategy = "fetch"
	// StrategyInline embeds the binary in the loader as a base64 data URL.
	StrategyInline Strategy = "inline"
)

// Target selects the runtime environment of the helper module.
type Target string

const (
	TargetBrowser Target = "browser" // network fetch
	TargetNode    Target = "node"    // filesystem read
)

// HelperID is the virtual module id of the runtime helper every loader imports.
const HelperID = "\x00wasmpack:helper"

// DefaultCacheSize bounds the decoded interface cache.
const DefaultCacheSize = 256

// Options configures a Synthesizer.
type Options struct {
	Strategy  Strategy
	Target    Target
	CacheSize int
}

// LoaderModule is the synthetic module generated for one binary asset.
type LoaderModule struct {
	// ID is the binary asset path the loader stands in for.
	ID string
	// AssetName is the emitted file name of the binary. Empty when inlined.
	AssetName string
	// Hash is the hex SHA-256 of the binary.
	Hash      string
	Source    string
	Interface *wasm.Interface
	// Imports lists the binary's import modules in first-appearance order.
	// Each one is a static import of the loader.
	Imports []string
	// Exports lists the binary's export names in declaration order.
	Exports []string
}

// Synthesizer generates loader modules. It is safe for concurrent use and
// keeps decoded interfaces across builds, keyed by content hash.
type Synthesizer struct {
	strategy Strategy
	target   Target
	cache    *lru.Cache[string, *wasm.Interface]
}

// New returns a Synthesizer with defaults applied to empty options.
func New(opts Options) (*Synthesizer, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyFetch
	}
	if opts.Target == "" {
		opts.Target = TargetBrowser
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	switch opts.Strategy {
	case StrategyFetch, StrategyInline:
	default:
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("unknown asset strategy %q", opts.Strategy).
			Build()
	}
	switch opts.Target {
	case TargetBrowser, TargetNode:
	default:
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("unknown target %q", opts.Target).
			Build()
	}
	cache, err := lru.New[string, *wasm.Interface](opts.CacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode cache")
	}
	return &Synthesizer{strategy: opts.Strategy, target: opts.Target, cache: cache}, nil
}

// Strategy returns the configured asset strategy.
func (s *Synthesizer) Strategy() Strategy { return s.strategy }

// Target returns the configured runtime target.
func (s *Synthesizer) Target() Target { return s.target }

// Synthesize decodes the binary at path and generates its loader module.
func (s *Synthesizer) Synthesize(path string, data []byte) (*LoaderModule, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	iface, err := s.decode(path, hash, data)
	if err != nil {
		return nil, err
	}

	lm := &LoaderModule{
		ID:        path,
		Hash:      hash,
		Interface: iface,
		Imports:   iface.ImportModules(),
		Exports:   make([]string, 0, len(iface.Exports)),
	}
	for _, e := range iface.Exports {
		lm.Exports = append(lm.Exports, e.Name)
	}

	var source string
	if s.strategy == StrategyInline {
		source = dataurl.New(data, "application/wasm").String()
	} else {
		lm.AssetName = AssetName(path, hash)
	}
	lm.Source = render(filepath.Base(path), lm, source)
	return lm, nil
}

func (s *Synthesizer) decode(path, hash string, data []byte) (*wasm.Interface, error) {
	if iface, ok := s.cache.Get(hash); ok {
		Logger().Debug("decode cache hit", zap.String("module", path))
		return iface, nil
	}
	if wasm.IsComponent(data) {
		e := errors.Unsupported(errors.PhaseLoad, "component model binaries; compile to a core module")
		e.Module = path
		return nil, e
	}
	iface, err := wasm.ReadInterface(data)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Module(path).
			Detail("decode binary").
			Cause(err).
			Build()
	}
	s.cache.Add(hash, iface)
	Logger().Debug("decoded binary interface",
		zap.String("module", path),
		zap.Int("imports", len(iface.Imports)),
		zap.Int("exports", len(iface.Exports)))
	return iface, nil
}

// AssetName returns the content-addressed output file name of a binary.
func AssetName(path, hash string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	return strings.TrimSuffix(base, ext) + "-" + short + ext
}

// render writes the loader body. inline is the data URL for the inline
// strategy and empty otherwise.
func render(display string, lm *LoaderModule, inline string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "import { instantiate, readBytes } from %s;\n", quote(HelperID))
	for i, mod := range lm.Imports {
		fmt.Fprintf(&b, "import * as __wasm_import_%d from %s;\n", i, quote(mod))
	}
	b.WriteByte('\n')

	b.WriteString("const __wasm_exports = await instantiate(")
	b.WriteString(quote(display))
	b.WriteString(", ")
	if inline != "" {
		fmt.Fprintf(&b, "readBytes(%s)", quote(inline))
	} else {
		fmt.Fprintf(&b, "readBytes(new URL(%s, import.meta.url))", quote(lm.AssetName))
	}
	b.WriteString(", {")
	for i, mod := range lm.Imports {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "\n  %s: __wasm_import_%d", quote(mod), i)
	}
	if len(lm.Imports) > 0 {
		b.WriteByte('\n')
	}
	b.WriteString("});\n")

	var aliases []string
	for i, e := range lm.Interface.Exports {
		local := e.Name
		if !isIdentifier(local) {
			local = fmt.Sprintf("__wasm_export_%d", i)
			aliases = append(aliases, fmt.Sprintf("%s as %s", local, quote(e.Name)))
		}
		b.WriteByte('\n')
		if e.Kind == wasm.KindFunc && e.Func != nil {
			params := make([]string, len(e.Func.Params))
			for j := range params {
				params[j] = fmt.Sprintf("a%d", j)
			}
			args := strings.Join(params, ", ")
			if local == e.Name {
				b.WriteString("export ")
			}
			fmt.Fprintf(&b, "function %s(%s) {\n  return __wasm_exports[%s](%s);\n}\n",
				local, args, quote(e.Name), args)
			continue
		}
		if local == e.Name {
			b.WriteString("export ")
		}
		fmt.Fprintf(&b, "let %s;\n%s = __wasm_exports[%s];\n", local, local, quote(e.Name))
	}
	if len(aliases) > 0 {
		fmt.Fprintf(&b, "\nexport { %s };\n", strings.Join(aliases, ", "))
	}
	return b.String()
}
