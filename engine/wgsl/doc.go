// Package wgsl is a pure Go compiler engine for WGSL sources, built on
// github.com/gogpu/naga.
//
// WGSL has no inclusion directive of its own, so the engine runs a line
// preprocessor first: every
//
//	#include "name"
//	#include <name>
//
// line is replaced by the header returned from the registered
// [include.Resolver], recursively, and each header is handed to the
// [include.Releaser] once spliced. The expanded source then goes through
// naga's parse, lower, validate and SPIR-V stages.
//
// The engine needs no native libraries and is what the spirvc tests run
// against.
package wgsl
