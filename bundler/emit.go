package bundler

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
	"github.com/wippyai/wasmpack/rewrite"
)

// OutputNames maps every module id of res to its slash-separated output path
// relative to the output directory.
func OutputNames(res *Result) (map[string]string, error) {
	names := make(map[string]string, len(res.Modules))
	owner := make(map[string]string, len(res.Modules))
	for _, m := range res.Modules {
		name := outputName(res.Root, m.Node)
		if prev, ok := owner[name]; ok {
			return nil, errors.Conflict("%s and %s both emit %s", prev, m.ID, name)
		}
		owner[name] = m.ID
		names[m.ID] = name
	}
	return names, nil
}

func outputName(root string, n *graph.Node) string {
	if n.FileName != "" {
		return filepath.ToSlash(n.FileName)
	}
	rel, err := filepath.Rel(root, n.ID)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Join("_external", sanitize(filepath.Base(n.ID)))
	}
	rel = filepath.ToSlash(rel)
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".js", ".mjs":
		return rel
	}
	return rel + ".js"
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0:
			return -1
		case r == ':' || r == '/' || r == '\\':
			return '_'
		}
		return r
	}, name)
}

// relativeSpecifier returns the import specifier that reaches to from from,
// both slash-separated output paths.
func relativeSpecifier(from, to string) string {
	rel, err := filepath.Rel(filepath.Dir(filepath.FromSlash(from)), filepath.FromSlash(to))
	if err != nil {
		return "/" + to
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

// Emit writes the modules and assets of res to outDir and returns the
// written paths relative to it. Output is staged in a sibling temporary
// directory and moved into place only when every file was written.
func Emit(res *Result, outDir string) ([]string, error) {
	names, err := OutputNames(res)
	if err != nil {
		return nil, err
	}
	out, err := filepath.Abs(outDir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "output directory")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "output directory")
	}
	stage, err := os.MkdirTemp(filepath.Dir(out), ".wasmpack-*")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "staging directory")
	}
	if err := os.Chmod(stage, 0o755); err != nil {
		os.RemoveAll(stage)
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "staging directory")
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(stage)
		}
	}()

	var written []string
	write := func(rel string, data []byte) error {
		p := filepath.Join(stage, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		written = append(written, rel)
		return os.WriteFile(p, data, 0o644)
	}

	for _, m := range res.Modules {
		name := names[m.ID]
		code, err := rewrite.Specifiers(m.Code, func(spec string) string {
			e := m.Node.Edge(spec, graph.Static)
			if e == nil {
				e = m.Node.Edge(spec, graph.Dynamic)
			}
			if e == nil || e.External || e.To == "" {
				return spec
			}
			target, ok := names[e.To]
			if !ok {
				return spec
			}
			return relativeSpecifier(name, target)
		})
		if err != nil {
			return nil, errors.New(errors.PhaseEmit, errors.KindInvalidData).Module(m.ID).Cause(err).Build()
		}
		if err := write(name, []byte(code)); err != nil {
			return nil, errors.New(errors.PhaseEmit, errors.KindInvalidInput).Module(m.ID).Cause(err).Build()
		}
		if a := m.Node.Asset; a != nil {
			rel := filepath.ToSlash(filepath.Join(filepath.Dir(filepath.FromSlash(name)), a.Name))
			if err := write(rel, a.Data); err != nil {
				return nil, errors.New(errors.PhaseEmit, errors.KindInvalidInput).Module(m.ID).Cause(err).Build()
			}
		}
	}

	if err := swap(stage, out); err != nil {
		return nil, errors.Wrap(errors.PhaseEmit, errors.KindInvalidInput, err, "commit output")
	}
	committed = true
	sort.Strings(written)
	Logger().Info("output written", zap.String("dir", out), zap.Int("files", len(written)))
	return written, nil
}

// swap replaces dst with src, restoring dst if the final rename fails.
func swap(src, dst string) error {
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return os.Rename(src, dst)
	}
	backup := src + "-previous"
	if err := os.Rename(dst, backup); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		_ = os.Rename(backup, dst)
		return err
	}
	return os.RemoveAll(backup)
}
