package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasmpack/errors"
)

func TestParseDefaults(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), f)
	assert.Equal(t, 16, f.Concurrency)
	assert.Equal(t, []string{"**/*.wasm"}, f.Wasm.Include)
	assert.True(t, f.Wasm.Sniff)
	assert.Equal(t, "fetch", f.Wasm.Strategy)
	assert.Equal(t, "browser", f.Wasm.Target)
	assert.Equal(t, "__tla", f.TopLevelAwait.PromiseExportName)
	assert.Nil(t, f.TopLevelAwait.ImportNamer())
}

func TestParse(t *testing.T) {
	src := `
entries: [src/main.js, src/worker.js]
outDir: dist
concurrency: 4
external: [lodash]
wasm:
  include: ["assets/**/*.bin"]
  sniff: false
  strategy: inline
  target: node
  verify: true
  cacheSize: 32
topLevelAwait:
  promiseExportName: ready
  promiseImportName: "dep_{i}"
`
	f, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, ".", f.Root)
	assert.Equal(t, []string{"src/main.js", "src/worker.js"}, f.Entries)
	assert.Equal(t, "dist", f.OutDir)
	assert.Equal(t, 4, f.Concurrency)
	assert.Equal(t, []string{"lodash"}, f.External)
	assert.Equal(t, Wasm{
		Include:   []string{"assets/**/*.bin"},
		Sniff:     false,
		Strategy:  "inline",
		Target:    "node",
		Verify:    true,
		CacheSize: 32,
	}, f.Wasm)
	assert.Equal(t, "ready", f.TopLevelAwait.PromiseExportName)

	namer := f.TopLevelAwait.ImportNamer()
	require.NotNil(t, namer)
	assert.Equal(t, "dep_3", namer(3))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "entrys: [main.js]"},
		{"bad strategy", "wasm: {strategy: stream}"},
		{"bad target", "wasm: {target: deno}"},
		{"negative concurrency", "concurrency: -1"},
		{"negative cache", "wasm: {cacheSize: -5}"},
		{"import name without index", "topLevelAwait: {promiseImportName: dep}"},
		{"malformed", "entries: [main.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindInvalidInput), err.Error())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("root: web\nentries: [main.js]\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "web"), f.Root)
	assert.Equal(t, []string{"main.js"}, f.Entries)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	require.NoError(t, os.WriteFile(path, []byte("wasm: {target: deno}\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
