// Package wasm provides the plugin that turns binary module imports into
// synthesized loader modules.
//
// Resolution claims paths the classifier names as binary assets, by name
// alone, so a missing binary surfaces as a load failure of that binary
// rather than an unresolvable import. Loading reads the bytes, optionally
// verifies them by compiling, and synthesizes the loader.
package wasm

import (
	"context"

	"github.com/wippyai/wasmpack/bundler"
	"github.com/wippyai/wasmpack/classify"
	"github.com/wippyai/wasmpack/engine"
	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
	"github.com/wippyai/wasmpack/synth"
)

// Name is the registered plugin name.
const Name = "wasm"

// Verifier checks that a binary compiles. *engine.Engine implements it.
type Verifier interface {
	Verify(ctx context.Context, data []byte) error
}

// Options configures the plugin.
type Options struct {
	Root      string
	Include   []string
	Sniff     bool
	Strategy  synth.Strategy
	Target    synth.Target
	CacheSize int
	// Verifier compiles every binary at load time when set.
	Verifier Verifier
}

type plugin struct {
	root       string
	classifier *classify.Classifier
	synth      *synth.Synthesizer
	verifier   Verifier
}

// New returns the wasm plugin.
func New(opts Options) (bundler.Plugin, error) {
	c, err := classify.New(classify.Options{Root: opts.Root, Include: opts.Include, Sniff: opts.Sniff})
	if err != nil {
		return bundler.Plugin{}, err
	}
	s, err := synth.New(synth.Options{Strategy: opts.Strategy, Target: opts.Target, CacheSize: opts.CacheSize})
	if err != nil {
		return bundler.Plugin{}, err
	}
	p := &plugin{root: opts.Root, classifier: c, synth: s, verifier: opts.Verifier}
	return bundler.Plugin{
		Name:    Name,
		Resolve: p.resolve,
		Load:    p.load,
	}, nil
}

func (p *plugin) resolve(_ context.Context, specifier, importer string) (*bundler.ResolveResult, error) {
	if specifier == synth.HelperID {
		return &bundler.ResolveResult{ID: synth.HelperID}, nil
	}
	path, ok := bundler.ResolvePath(p.root, specifier, importer)
	if !ok {
		return nil, nil
	}
	if class, ok := p.classifier.Match(path); ok {
		if class != classify.BinaryAsset {
			return nil, nil
		}
		return &bundler.ResolveResult{ID: path}, nil
	}
	// Ambiguous names are claimed only when the file exists and sniffs as
	// binary; anything else is left to the default resolver.
	class, err := p.classifier.Classify(path)
	if err != nil || class != classify.BinaryAsset {
		return nil, nil
	}
	return &bundler.ResolveResult{ID: path}, nil
}

func (p *plugin) isBinary(id string) bool {
	if class, ok := p.classifier.Match(id); ok {
		return class == classify.BinaryAsset
	}
	class, err := p.classifier.Classify(id)
	return err == nil && class == classify.BinaryAsset
}

func (p *plugin) load(ctx context.Context, id string) (*bundler.LoadResult, error) {
	if id == synth.HelperID {
		return &bundler.LoadResult{
			Code:     synth.HelperSource(p.synth.Target()),
			Kind:     graph.KindSource,
			FileName: synth.HelperFileName,
		}, nil
	}
	if !p.isBinary(id) {
		return nil, nil
	}

	data, err := engine.ReadBytes(id)
	if err != nil {
		return nil, err
	}
	if p.verifier != nil {
		if err := p.verifier.Verify(ctx, data); err != nil {
			e := errors.InvalidData(errors.PhaseLoad, id, "binary failed verification")
			e.Cause = err
			return nil, e
		}
	}

	lm, err := p.synth.Synthesize(id, data)
	if err != nil {
		return nil, err
	}
	res := &bundler.LoadResult{Code: lm.Source, Kind: graph.KindSyntheticLoader}
	if lm.AssetName != "" {
		res.Asset = &graph.Asset{Name: lm.AssetName, Data: data}
	}
	return res, nil
}
