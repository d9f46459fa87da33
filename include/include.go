package include

// Type is the syntactic form of an inclusion directive.
type Type uint8

const (
	// TypeRelative is a quoted include: #include "name".
	TypeRelative Type = iota
	// TypeStandard is an angled include: #include <name>.
	TypeStandard
)

// String returns the directive form.
func (t Type) String() string {
	switch t {
	case TypeRelative:
		return "relative"
	case TypeStandard:
		return "standard"
	default:
		return "unknown"
	}
}

// Request describes a single inclusion directive met by the engine.
// It lives only for the duration of one Resolve call.
type Request struct {
	// Name is the header name as written in the directive.
	Name string

	// Requester is the identity of the source containing the directive:
	// the compiled file's identity at the top level, or the Name of the
	// Result that produced the including header.
	Requester string

	Type Type

	// Depth is the nesting level, 1 for directives in the top-level source.
	Depth int
}

// Result is a resolved header handed to the engine.
//
// The engine may keep referencing Name and Content until it passes the
// Result to the Releaser, so resolvers must not reuse the backing arrays.
type Result struct {
	// Name identifies the resolved header. Engines report it in
	// diagnostics and use it as the Requester of nested directives.
	Name string

	Content []byte
}

// Resolver resolves inclusion directives.
//
// Resolve is called synchronously on the goroutine running the compile,
// possibly several times for nested headers. Implementations should keep
// no per-call state.
type Resolver interface {
	Resolve(req Request) (*Result, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(req Request) (*Result, error)

// Resolve calls f(req).
func (f ResolverFunc) Resolve(req Request) (*Result, error) { return f(req) }

// Releaser is told when the engine is done with a Result.
type Releaser interface {
	Release(res *Result)
}

// ReleaserFunc adapts a function to the Releaser interface.
type ReleaserFunc func(res *Result)

// Release calls f(res).
func (f ReleaserFunc) Release(res *Result) { f(res) }

// NopReleaser is a Releaser that does nothing. Result memory is owned by
// the engine binding, which frees it on its own.
var NopReleaser Releaser = ReleaserFunc(func(*Result) {})
