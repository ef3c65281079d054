// Package jsscan is a lightweight scanner for ECMAScript modules.
//
// It tokenizes module source (strings, templates, regular expressions and
// comments included) and recovers exactly the structure a bundler needs
// without building a full AST:
//
//   - static imports and re-exports with the byte span of each specifier
//   - dynamic import() calls with a string literal specifier
//   - top-level await: any await outside a function body, including ones
//     nested in top-level blocks and conditional branches
//   - the list of top-level statements with their kind and byte span
//
// The scanner is conservative. An await it cannot prove to be inside a
// function counts as top-level.
package jsscan
