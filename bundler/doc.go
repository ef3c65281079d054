// Package bundler coordinates plugins over a module graph.
//
// A build runs in three phases:
//
//  1. Discovery. Entries are resolved and loaded; every loaded module is
//     scanned and its imports are resolved and loaded in turn. Loads of
//     independent modules run concurrently, bounded by Options.Concurrency,
//     and a module requested by several importers at once is loaded once.
//  2. Analysis. After the whole graph is known, the suspension map is
//     computed. Any discovery error aborts the build here, after all
//     in-flight loads have finished so every failure is reported together.
//  3. Transform. Each module runs through the transform chain exactly once.
//
// Hooks follow registration order within an Order class: the first non-nil
// Resolve or Load result wins, Transform results chain.
package bundler
