package bundler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasmpack/errors"
)

// externalPrefixes are specifiers that never name a file of the build.
var externalPrefixes = []string{"node:", "http://", "https://", "data:", "//"}

// isExternal reports whether specifier is left to the runtime.
func (b *Bundler) isExternal(specifier string) bool {
	for _, p := range externalPrefixes {
		if strings.HasPrefix(specifier, p) {
			return true
		}
	}
	for _, ext := range b.opts.External {
		if specifier == ext || strings.HasPrefix(specifier, strings.TrimSuffix(ext, "/")+"/") {
			return true
		}
	}
	return false
}

// resolve maps specifier imported by importer to a module id. An empty
// importer resolves an entry relative to the root.
func (b *Bundler) resolve(ctx context.Context, chain []errors.ChainLink, specifier, importer string) (*ResolveResult, error) {
	if b.isExternal(specifier) {
		return &ResolveResult{ID: specifier, External: true}, nil
	}
	for _, p := range b.plugins {
		if p.Resolve == nil {
			continue
		}
		res, err := p.Resolve(ctx, specifier, importer)
		if err != nil {
			return nil, errors.New(errors.PhaseResolve, errors.KindResolution).
				Chain(extend(chain, importer, specifier)...).
				Detail("plugin %s", p.Name).
				Cause(err).
				Build()
		}
		if res != nil {
			Logger().Debug("resolved by plugin",
				zap.String("plugin", p.Name),
				zap.String("specifier", specifier),
				zap.String("module", res.ID))
			return res, nil
		}
	}
	if id, ok := b.resolveFile(specifier, importer); ok {
		return &ResolveResult{ID: id}, nil
	}
	return nil, errors.Resolution(chain, importer, specifier)
}

// resolveFile is the built-in resolver for path specifiers. It probes the
// path itself, then the .js and .mjs extensions, then an index file.
func (b *Bundler) resolveFile(specifier, importer string) (string, bool) {
	var base string
	switch {
	case importer == "":
		base = b.root
	case isPathSpecifier(specifier) && !strings.HasPrefix(importer, "\x00"):
		base = filepath.Dir(importer)
	case isPathSpecifier(specifier):
		base = b.root
	default:
		return "", false
	}

	p := filepath.FromSlash(specifier)
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	for _, candidate := range []string{
		p,
		p + ".js",
		p + ".mjs",
		filepath.Join(p, "index.js"),
		filepath.Join(p, "index.mjs"),
	} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// isPathSpecifier reports whether specifier is relative or absolute rather
// than a bare package name.
func isPathSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/") ||
		specifier == "." || specifier == ".." ||
		filepath.IsAbs(specifier)
}

// ResolvePath is the path a relative or absolute specifier names from
// importer, without probing the filesystem. Plugins use it to claim files
// by name.
func ResolvePath(root, specifier, importer string) (string, bool) {
	if !isPathSpecifier(specifier) && importer != "" {
		return "", false
	}
	p := filepath.FromSlash(specifier)
	if filepath.IsAbs(p) {
		return filepath.Clean(p), true
	}
	base := root
	if importer != "" && !strings.HasPrefix(importer, "\x00") {
		base = filepath.Dir(importer)
	}
	return filepath.Join(base, p), true
}
