package analysis_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasmpack/analysis"
	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
)

type spec struct {
	tla     bool
	loader  bool
	static  []string
	dynamic []string
}

func build(t *testing.T, nodes map[string]spec) *graph.Graph {
	t.Helper()
	g := graph.New()
	for id, s := range nodes {
		n := &graph.Node{ID: id, HasTopLevelAwait: s.tla}
		if s.loader {
			n.Kind = graph.KindSyntheticLoader
		}
		for _, to := range s.static {
			n.Imports = append(n.Imports, &graph.Edge{From: id, To: to, Specifier: "./" + to, Kind: graph.Static})
		}
		for _, to := range s.dynamic {
			n.Imports = append(n.Imports, &graph.Edge{From: id, To: to, Specifier: "./" + to, Kind: graph.Dynamic})
		}
		require.True(t, g.Add(n))
	}
	return g
}

func TestCycleWithAsyncMember(t *testing.T) {
	g := build(t, map[string]spec{
		"A": {static: []string{"B"}},
		"B": {tla: true, static: []string{"A"}},
	})
	sm, err := analysis.ComputeSuspensionMap(g)
	require.NoError(t, err)
	assert.True(t, sm.IsAsync("A"))
	assert.True(t, sm.IsAsync("B"))
	assert.Equal(t, []string{"A", "B"}, sm.Explain("A"))
}

func TestSyncCycle(t *testing.T) {
	g := build(t, map[string]spec{
		"A": {static: []string{"B"}},
		"B": {static: []string{"C"}},
		"C": {static: []string{"A"}},
	})
	sm, err := analysis.ComputeSuspensionMap(g)
	require.NoError(t, err)
	assert.Zero(t, sm.Len())
	assert.Nil(t, sm.Explain("A"))
}

func TestDynamicEdgesDoNotPropagate(t *testing.T) {
	g := build(t, map[string]spec{
		"main": {dynamic: []string{"lazy"}, static: []string{"util"}},
		"lazy": {tla: true},
		"util": {},
	})
	sm, err := analysis.ComputeSuspensionMap(g)
	require.NoError(t, err)
	assert.False(t, sm.IsAsync("main"))
	assert.True(t, sm.IsAsync("lazy"))
	assert.False(t, sm.IsAsync("util"))
}

func TestLoaderIsAlwaysAsync(t *testing.T) {
	g := build(t, map[string]spec{
		"consumer": {static: []string{"main"}},
		"main":     {static: []string{"mod.wasm"}},
		"mod.wasm": {loader: true},
	})
	sm, err := analysis.ComputeSuspensionMap(g)
	require.NoError(t, err)
	for _, id := range []string{"consumer", "main", "mod.wasm"} {
		assert.True(t, sm.IsAsync(id), id)
	}
	assert.Equal(t, []string{"consumer", "main", "mod.wasm"}, sm.Explain("consumer"))
	assert.Equal(t, analysis.ReasonLoader, sm.Reason("consumer"))
	assert.Equal(t, analysis.Reason(""), sm.Reason("nope"))
}

func TestExplainPrefersShortestPath(t *testing.T) {
	g := build(t, map[string]spec{
		"top":  {static: []string{"long", "seed"}},
		"long": {static: []string{"mid"}},
		"mid":  {static: []string{"seed"}},
		"seed": {tla: true},
	})
	sm, err := analysis.ComputeSuspensionMap(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "seed"}, sm.Explain("top"))
	assert.Equal(t, []string{"seed"}, sm.Explain("seed"))
	assert.Equal(t, analysis.ReasonTopLevelAwait, sm.Reason("long"))
}

func TestDanglingEdgeIsInvariantViolation(t *testing.T) {
	g := build(t, map[string]spec{"a": {static: []string{"ghost"}}})
	_, err := analysis.ComputeSuspensionMap(g)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvariant))
}

// reachesSeed is the reference definition: a static path from id to a seed,
// id itself included.
func reachesSeed(nodes map[string]spec, id string) bool {
	seen := map[string]bool{}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if nodes[cur].tla || nodes[cur].loader {
			return true
		}
		stack = append(stack, nodes[cur].static...)
	}
	return false
}

func TestAsyncIffReachable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		size := 1 + rng.Intn(12)
		nodes := make(map[string]spec, size)
		for i := 0; i < size; i++ {
			var s spec
			s.tla = rng.Intn(6) == 0
			s.loader = rng.Intn(10) == 0
			for j := 0; j < size; j++ {
				switch rng.Intn(5) {
				case 0:
					s.static = append(s.static, fmt.Sprintf("m%d", j))
				case 1:
					s.dynamic = append(s.dynamic, fmt.Sprintf("m%d", j))
				}
			}
			nodes[fmt.Sprintf("m%d", i)] = s
		}

		sm, err := analysis.ComputeSuspensionMap(build(t, nodes))
		require.NoError(t, err)
		again, err := analysis.ComputeSuspensionMap(build(t, nodes))
		require.NoError(t, err)

		for id := range nodes {
			want := reachesSeed(nodes, id)
			require.Equal(t, want, sm.IsAsync(id), "round %d module %s", round, id)
			require.Equal(t, sm.Explain(id), again.Explain(id), "round %d module %s", round, id)

			path := sm.Explain(id)
			if want {
				last := nodes[path[len(path)-1]]
				require.True(t, last.tla || last.loader)
			}
		}
	}
}
