// Package engine defines the boundary between spirvc and a shader compiler
// engine.
//
// The interfaces mirror the native shaderc contract: a long-lived
// [Compiler] handle, an [Options] set configured once, a single-shot
// compile call and a [Result] handle that owns the produced binary until
// it is released. Two implementations exist:
//
//   - engine/shaderc binds libshaderc_shared at runtime (GLSL/HLSL input).
//   - engine/wgsl is a pure Go engine built on github.com/gogpu/naga
//     (WGSL input).
//
// Engines call back into an [include.Resolver] while compiling and hand
// every result back to the paired [include.Releaser].
package engine
