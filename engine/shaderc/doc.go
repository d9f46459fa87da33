// Package shaderc binds the native shaderc library as a spirvc engine.
//
// libshaderc_shared is opened at runtime with github.com/ebitengine/purego,
// so the package builds without cgo and without shaderc headers; the
// library only has to be present when a compiler is created. Set
// Engine.Library to load a specific file.
//
// # Include callbacks
//
// shaderc calls a C function pointer for every #include and a second one
// when it is done with the answer. Both are created once per process with
// purego.NewCallback and dispatch on the user-data token to the owning
// option set. Include results are built in Go memory pinned with
// runtime.Pinner; the arena stays pinned until shaderc invokes the release
// callback, so the engine never sees a moved or collected buffer.
//
// A resolver error is reported to shaderc the way shaderc expects: a
// result with an empty source name and the error text as content. The Go
// error is kept and exposed through engine.IncludeErrorer on the result.
package shaderc
