//go:build !(linux || darwin || freebsd)

package shaderc

import (
	"fmt"
	"runtime"

	"github.com/gogpu/spirvc/engine"
)

// NewCompiler implements engine.Engine.
func (e *Engine) NewCompiler() (engine.Compiler, error) {
	return nil, fmt.Errorf("%w on %s", ErrUnavailable, runtime.GOOS)
}

// Available reports whether the library can be loaded.
func (e *Engine) Available() error {
	return fmt.Errorf("%w on %s", ErrUnavailable, runtime.GOOS)
}
