package bundler

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/wasmpack/analysis"
	"github.com/wippyai/wasmpack/classify"
	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
	"github.com/wippyai/wasmpack/jsscan"
)

// DefaultConcurrency bounds concurrent module loads.
const DefaultConcurrency = 16

// Options configures a Bundler.
type Options struct {
	// Root is the project directory. Entries and output names are relative to it.
	Root string
	// Entries are entry module paths relative to Root.
	Entries []string
	// Concurrency bounds concurrent loads. Defaults to DefaultConcurrency.
	Concurrency int
	// External lists bare specifiers, or package prefixes, left to the runtime.
	External []string
}

// Bundler runs builds. A Bundler may run several builds; each build owns a
// fresh module graph.
type Bundler struct {
	opts    Options
	root    string
	plugins []Plugin
}

// New validates options and plugins.
func New(opts Options, plugins ...Plugin) (*Bundler, error) {
	if len(opts.Entries) == 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "no entry modules")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid root")
	}
	sorted, err := sortPlugins(plugins)
	if err != nil {
		return nil, err
	}
	return &Bundler{opts: opts, root: root, plugins: sorted}, nil
}

// Root returns the absolute project root.
func (b *Bundler) Root() string { return b.root }

// Plugins returns the plugins in hook order.
func (b *Bundler) Plugins() []Plugin { return append([]Plugin(nil), b.plugins...) }

// build is the per-build arena shared by concurrent discovery tasks.
type build struct {
	b     *Bundler
	graph *graph.Graph
	sem   *semaphore.Weighted
	group singleflight.Group
	wg    sync.WaitGroup

	mu     sync.Mutex
	errs   []error
	failed map[string]bool
}

// Build discovers, analyzes and transforms the module graph.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	s := &build{
		b:      b,
		graph:  graph.New(),
		sem:    semaphore.NewWeighted(int64(b.opts.Concurrency)),
		failed: make(map[string]bool),
	}

	for _, entry := range b.opts.Entries {
		res, err := b.resolve(ctx, nil, entry, "")
		if err != nil {
			s.fail("", err)
			continue
		}
		if res.External {
			s.fail("", errors.InvalidInput(errors.PhaseResolve, "entry "+entry+" is external"))
			continue
		}
		s.discover(ctx, res.ID, nil)
	}
	s.wg.Wait()

	if len(s.errs) > 0 {
		sort.Slice(s.errs, func(i, j int) bool { return s.errs[i].Error() < s.errs[j].Error() })
		Logger().Warn("build aborted", zap.Int("errors", len(s.errs)))
		return nil, multierr.Combine(append([]error{errors.ErrBuildAborted}, s.errs...)...)
	}
	Logger().Debug("graph discovered", zap.Int("modules", s.graph.Len()))

	sm, err := analysis.ComputeSuspensionMap(s.graph)
	if err != nil {
		return nil, err
	}

	res, err := b.transform(ctx, s.graph, sm)
	if err != nil {
		return nil, err
	}
	Logger().Info("build complete",
		zap.Int("modules", s.graph.Len()),
		zap.Int("async", sm.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (s *build) fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		s.failed[id] = true
	}
	s.errs = append(s.errs, err)
}

func (s *build) hasFailed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed[id]
}

// discover loads id and, recursively, everything it imports.
func (s *build) discover(ctx context.Context, id string, chain []errors.ChainLink) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _, _ = s.group.Do(id, func() (any, error) {
			if _, ok := s.graph.Node(id); ok || s.hasFailed(id) {
				return nil, nil
			}
			n, err := s.load(ctx, id, chain)
			if err != nil {
				s.fail(id, err)
				return nil, nil
			}
			s.graph.Add(n)
			s.link(ctx, n)
			return nil, nil
		})
	}()
}

// load runs the load hooks for id and scans the result.
func (s *build) load(ctx context.Context, id string, chain []errors.ChainLink) (*graph.Node, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Load(chain, id, err)
	}
	res, err := s.b.runLoad(ctx, id)
	s.sem.Release(1)
	if err != nil {
		return nil, errors.Load(chain, id, err)
	}

	n := &graph.Node{
		ID:       id,
		Kind:     res.Kind,
		Source:   res.Code,
		Asset:    res.Asset,
		FileName: res.FileName,
		Chain:    chain,
		Entry:    len(chain) == 0,
	}
	if n.Kind == graph.KindBinaryAsset {
		return nil, errors.New(errors.PhaseLoad, errors.KindLoad).
			Module(id).
			Chain(chain...).
			Detail("binary asset has no loader; register a plugin that loads it").
			Build()
	}
	mod, err := jsscan.Parse(res.Code)
	if err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidData).
			Module(id).
			Chain(chain...).
			Cause(err).
			Build()
	}
	n.Scan = mod
	n.HasTopLevelAwait = mod.HasTopLevelAwait()
	for _, imp := range mod.Imports {
		kind := graph.Static
		if imp.Kind == jsscan.ImportDynamic {
			kind = graph.Dynamic
		}
		if n.Edge(imp.Specifier, kind) != nil {
			continue
		}
		n.Imports = append(n.Imports, &graph.Edge{
			From:      id,
			Specifier: imp.Specifier,
			Kind:      kind,
			ReExport:  imp.ReExport,
		})
	}
	Logger().Debug("loaded module",
		zap.String("module", id),
		zap.Stringer("kind", n.Kind),
		zap.Int("imports", len(n.Imports)),
		zap.Bool("tla", n.HasTopLevelAwait))
	return n, nil
}

// link resolves the imports of n and discovers their targets.
func (s *build) link(ctx context.Context, n *graph.Node) {
	for _, e := range n.Imports {
		res, err := s.b.resolve(ctx, n.Chain, e.Specifier, n.ID)
		if err != nil {
			s.fail("", err)
			continue
		}
		e.To = ""
		e.External = res.External
		if res.External {
			continue
		}
		e.To = res.ID
		if _, ok := s.graph.Node(res.ID); !ok {
			s.discover(ctx, res.ID, extend(n.Chain, n.ID, e.Specifier))
		}
	}
}

// runLoad asks plugins for id, falling back to reading the file.
func (b *Bundler) runLoad(ctx context.Context, id string) (*LoadResult, error) {
	for _, p := range b.plugins {
		if p.Load == nil {
			continue
		}
		res, err := p.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	data, err := os.ReadFile(id)
	if err != nil {
		return nil, err
	}
	if classify.Sniff(data) == classify.BinaryAsset {
		return &LoadResult{Kind: graph.KindBinaryAsset}, nil
	}
	return &LoadResult{Code: string(data), Kind: graph.KindSource}, nil
}

// transform checks the ordering invariant and runs the transform chain over
// every module once.
func (b *Bundler) transform(ctx context.Context, g *graph.Graph, sm analysis.SuspensionMap) (*Result, error) {
	nodes := g.Nodes()
	for _, n := range nodes {
		for _, e := range n.Imports {
			if e.Kind == graph.Static && !e.External && e.To == "" {
				return nil, errors.Invariant(errors.PhaseTransform,
					"%s reached transform with unresolved import %q", n.ID, e.Specifier)
			}
		}
	}

	modules := make([]*Module, len(nodes))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.opts.Concurrency)
	for i, n := range nodes {
		eg.Go(func() error {
			code, err := b.runTransform(ctx, &TransformContext{Graph: g, Suspension: sm, Node: n}, n.Source)
			if err != nil {
				return err
			}
			modules[i] = &Module{ID: n.ID, Code: code, Async: sm.IsAsync(n.ID), Node: n}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &Result{Root: b.root, Graph: g, Suspension: sm, Modules: modules}, nil
}

func (b *Bundler) runTransform(ctx context.Context, tc *TransformContext, code string) (string, error) {
	for _, p := range b.plugins {
		if p.Transform == nil {
			continue
		}
		res, err := p.Transform(ctx, tc, code)
		if err != nil {
			return "", errors.New(errors.PhaseTransform, errors.KindInvalidData).
				Module(tc.Node.ID).
				Detail("plugin %s", p.Name).
				Cause(err).
				Build()
		}
		if res != nil {
			code = res.Code
		}
	}
	return code, nil
}

// extend returns a copy of chain with one more link.
func extend(chain []errors.ChainLink, importer, specifier string) []errors.ChainLink {
	out := make([]errors.ChainLink, len(chain), len(chain)+1)
	copy(out, chain)
	return append(out, errors.ChainLink{Importer: importer, Specifier: specifier})
}
