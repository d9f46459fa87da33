// Package include implements source-level file inclusion for shader
// compilation.
//
// A compiler engine that meets an inclusion directive calls back into a
// [Resolver] with an [Request]: the requested header name, the identity
// of the source that asked for it, the include type and the nesting depth.
// The resolver answers with a [Result] holding the header's locator and
// bytes. Once the engine has consumed the result it hands it back to the
// paired [Releaser]. Engines refuse a resolver without a releaser, so
// [NopReleaser] exists for the common case where nothing needs freeing.
//
// [FileResolver] resolves headers relative to the directory of the
// immediate requester, so nested includes work:
//
//	a.glsl:      #include "sub/b.glsl"   -> <dir of a>/sub/b.glsl
//	sub/b.glsl:  #include "c.glsl"       -> <dir of a>/sub/c.glsl
//
// # Locators
//
// Source identities are either plain file-system paths or file URIs
// ("file:/abs/path", "file:///abs/path"). [ParseLocator] validates the
// scheme instead of stripping a fixed number of characters, and
// [Locator] renders a resolved path back in the requester's form so that
// nested requests see a well-formed requester.
package include
