// Package spirvc compiles shader sources into SPIR-V.
//
// spirvc owns a compiler context, a handle to an external compiler engine
// plus one option set configured once, and resolves #include directives
// relative to the file that contains them. Engines live in sub-packages:
//
//   - engine/shaderc: GLSL through the native libshaderc, loaded at runtime
//   - engine/wgsl: WGSL through github.com/gogpu/naga, pure Go
//
// Example usage:
//
//	c, err := spirvc.New(shaderc.New(), spirvc.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	res, err := c.CompileFromLocation("file:///srv/shaders/blit.frag", spirvc.StageFragment)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer res.Release()
//
//	code, _ := res.Bytes()
//
// # Process-wide context
//
// Renderers usually want a single context created at startup. Initialize
// creates it, Compile and CompileFromLocation use it, and Shutdown tears it
// down (after which Initialize may run again with new settings).
//
// # Concurrency
//
// A Compiler serializes its compile calls with a mutex; include callbacks
// run nested inside the call on the same goroutine. Results are
// independent of each other and of the Compiler.
package spirvc

import (
	"sync"

	"github.com/gogpu/spirvc/engine"
)

var (
	defaultMu       sync.RWMutex
	defaultCompiler *Compiler
)

// Initialize creates the process-wide compiler context. It fails with
// ErrAlreadyInitialized if one exists.
func Initialize(e engine.Engine, cfg Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCompiler != nil {
		return ErrAlreadyInitialized
	}
	c, err := New(e, cfg)
	if err != nil {
		return err
	}
	defaultCompiler = c
	return nil
}

// Default returns the process-wide compiler context.
func Default() (*Compiler, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultCompiler == nil {
		return nil, ErrNotInitialized
	}
	return defaultCompiler, nil
}

// Shutdown closes the process-wide context. It is a no-op when none
// exists.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCompiler == nil {
		return nil
	}
	err := defaultCompiler.Close()
	defaultCompiler = nil
	return err
}

// Compile compiles with the process-wide context.
func Compile(identity, source string, stage Stage) (*Result, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return c.Compile(identity, source, stage)
}

// CompileFromLocation reads and compiles a source with the process-wide
// context.
func CompileFromLocation(locator string, stage Stage) (*Result, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return c.CompileFromLocation(locator, stage)
}
