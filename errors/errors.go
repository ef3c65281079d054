package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the build the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // plugin registration, config files
	PhaseResolve     Phase = "resolve"     // specifier resolution
	PhaseLoad        Phase = "load"        // module loading
	PhaseParse       Phase = "parse"       // module scanning
	PhaseAnalyze     Phase = "analyze"     // suspension analysis
	PhaseTransform   Phase = "transform"   // module rewriting
	PhaseEmit        Phase = "emit"        // output writing
	PhaseInstantiate Phase = "instantiate" // binary instantiation
)

// Kind categorizes the error
type Kind string

const (
	KindResolution    Kind = "resolution"
	KindLoad          Kind = "load"
	KindInstantiation Kind = "instantiation"
	KindInvariant     Kind = "invariant_violation"
	KindInvalidData   Kind = "invalid_data"
	KindInvalidInput  Kind = "invalid_input"
	KindUnsupported   Kind = "unsupported"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
)

// ErrBuildAborted is joined into the error returned by a build that stopped
// before the transform phase.
var ErrBuildAborted = stderrors.New("build aborted")

// ChainLink is one step of an import chain: Importer imported Specifier.
type ChainLink struct {
	Importer  string
	Specifier string
}

// Error is the structured error type used throughout wasmpack
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Module string
	Detail string
	Chain  []ChainLink
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" ")
		b.WriteString(e.Module)
	}

	if n := len(e.Chain); n > 0 {
		last := e.Chain[n-1]
		if last.Importer != "" {
			b.WriteString(" imported by ")
			b.WriteString(last.Importer)
		}
		if last.Specifier != "" {
			fmt.Fprintf(&b, " as %q", last.Specifier)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	if len(e.Chain) > 1 {
		b.WriteString("\n  import chain: ")
		b.WriteString(FormatChain(e.Chain))
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// FormatChain renders an import chain as `a.js -> "./b.js" -> b.js -> "./c.wasm"`.
func FormatChain(chain []ChainLink) string {
	var b strings.Builder
	for i, link := range chain {
		if i > 0 {
			b.WriteString(" -> ")
		}
		b.WriteString(link.Importer)
		fmt.Fprintf(&b, " -> %q", link.Specifier)
	}
	return b.String()
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Module sets the module identity the error concerns
func (b *Builder) Module(id string) *Builder {
	b.err.Module = id
	return b
}

// Chain sets the import chain from the entry module
func (b *Builder) Chain(chain ...ChainLink) *Builder {
	b.err.Chain = append([]ChainLink(nil), chain...)
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is matching on phase and kind.
var (
	ErrResolution    = &Error{Phase: PhaseResolve, Kind: KindResolution}
	ErrLoad          = &Error{Phase: PhaseLoad, Kind: KindLoad}
	ErrInstantiation = &Error{Phase: PhaseInstantiate, Kind: KindInstantiation}
	ErrInvariant     = &Error{Phase: PhaseAnalyze, Kind: KindInvariant}
)

// Resolution creates a ResolutionError: specifier could not be mapped to a module.
// The chain must end with the failing (importer, specifier) link.
func Resolution(chain []ChainLink, importer, specifier string) *Error {
	if n := len(chain); n == 0 || chain[n-1].Importer != importer || chain[n-1].Specifier != specifier {
		chain = append(append([]ChainLink(nil), chain...), ChainLink{Importer: importer, Specifier: specifier})
	}
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindResolution,
		Chain:  chain,
		Detail: "cannot resolve module",
	}
}

// Load creates a LoadError: module unreadable or its binary undecodable.
func Load(chain []ChainLink, module string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoad,
		Module: module,
		Chain:  append([]ChainLink(nil), chain...),
		Cause:  cause,
	}
}

// Instantiation creates an InstantiationError for a binary module.
func Instantiation(module string, cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Module: module,
		Cause:  cause,
	}
}

// Invariant creates an AnalysisInvariantViolation. These indicate a pipeline bug.
func Invariant(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, module, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Module: module,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Conflict creates a configuration conflict error
func Conflict(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindConflict,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsKind reports whether any *Error in err's tree has the given kind.
// Joined errors (multierr, errors.Join) are searched entirely.
func IsKind(err error, kind Kind) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *Error:
		if x.Kind == kind {
			return true
		}
		return IsKind(x.Cause, kind)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if IsKind(e, kind) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsKind(x.Unwrap(), kind)
	}
	return false
}
