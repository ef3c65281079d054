package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasmpack/wasm/wasmtest"
)

func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.js"),
		[]byte("import { add } from \"./mod.wasm\";\nexport const v = add(1, 2);\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mod.wasm"), wasmtest.AddModule(), 0o644))
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	root := project(t)
	out := filepath.Join(root, "dist")

	stdout, err := execute(t, "build", "--root", root, "--out", out, "main.js")
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 modules, 2 async")
	assert.Contains(t, stdout, "mod.wasm.js")

	_, err = os.Stat(filepath.Join(out, "main.js"))
	assert.NoError(t, err)
}

func TestGraphCommand(t *testing.T) {
	root := project(t)

	stdout, err := execute(t, "graph", "--root", root, "-e", "main.js")
	require.NoError(t, err)
	assert.Contains(t, stdout, "main.js  source  async (")
	assert.Contains(t, stdout, "main.js -> mod.wasm)")
	assert.Contains(t, stdout, `"./mod.wasm" static -> mod.wasm`)
	assert.Contains(t, stdout, "<wasmpack:helper>  source  sync")
}

func TestInspectCommand(t *testing.T) {
	root := project(t)

	stdout, err := execute(t, "inspect", filepath.Join(root, "mod.wasm"), "--call", "add", "--args", "40,2")
	require.NoError(t, err)
	assert.Contains(t, stdout, `func "add" (i32, i32) -> (i32)`)
	assert.Contains(t, stdout, "verified")
	assert.Contains(t, stdout, "add[40 2] = [42]")
	assert.Contains(t, stdout, "global answer = 42")
	assert.Contains(t, stdout, "memory 65536 bytes")
}

func TestFormatError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.js"), []byte("import \"./a.js\";\nimport \"./b.js\";\n"), 0o644))

	_, err := execute(t, "graph", "--root", root, "-e", "main.js")
	require.Error(t, err)
	msg := formatError(err)
	assert.Contains(t, msg, "build aborted\n  ")
	assert.Contains(t, msg, `"./a.js"`)
	assert.Contains(t, msg, `"./b.js"`)
}
