//go:build linux || darwin || freebsd

package shaderc

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/spirvc/engine"
	"github.com/gogpu/spirvc/include"
)

var errNilHandle = errors.New("shaderc: initialization returned a null handle")

// NewCompiler implements engine.Engine.
func (e *Engine) NewCompiler() (engine.Compiler, error) {
	lib, err := openLibrary(e.Library)
	if err != nil {
		return nil, err
	}
	h := lib.compilerInitialize()
	if h == 0 {
		return nil, fmt.Errorf("shaderc_compiler_initialize: %w", errNilHandle)
	}
	return &compiler{lib: lib, handle: h}, nil
}

type compiler struct {
	lib    *library
	handle uintptr
}

func (c *compiler) NewOptions() (engine.Options, error) {
	h := c.lib.optionsInitialize()
	if h == 0 {
		return nil, fmt.Errorf("shaderc_compile_options_initialize: %w", errNilHandle)
	}
	return &options{lib: c.lib, handle: h}, nil
}

func (c *compiler) Release() {
	if c.handle != 0 {
		c.lib.compilerRelease(c.handle)
		c.handle = 0
	}
}

// Compile implements engine.Compiler.
func (c *compiler) Compile(req engine.Request, o engine.Options) (engine.Result, error) {
	opts, ok := o.(*options)
	if !ok {
		return nil, fmt.Errorf("shaderc: foreign options type %T", o)
	}
	kind, ok := shaderKind(req.Stage)
	if !ok {
		return nil, fmt.Errorf("shaderc: unsupported stage %s", req.Stage)
	}

	opts.beginCompile()
	h := c.lib.compileIntoSPV(c.handle, req.Source, uintptr(len(req.Source)), kind, req.Identity, req.EntryPoint, opts.handle)
	includeErr := opts.endCompile()

	if h == 0 {
		return nil, nil
	}
	return &result{lib: c.lib, handle: h, includeErr: includeErr}, nil
}

type options struct {
	lib    *library
	handle uintptr
	token  uintptr

	resolver include.Resolver
	releaser include.Releaser

	mu          sync.Mutex
	includeErrs []error
}

func (o *options) SetOptimizationLevel(level engine.OptimizationLevel) {
	o.lib.setOptimizationLevel(o.handle, int32(level))
}

func (o *options) SetGenerateDebugInfo() {
	o.lib.setGenerateDebugInfo(o.handle)
}

func (o *options) SetTargetEnv(env engine.TargetEnv, version engine.EnvVersion) {
	o.lib.setTargetEnv(o.handle, targetEnv(env), uint32(version))
}

func (o *options) SetIncludeCallbacks(resolver include.Resolver, releaser include.Releaser) error {
	if resolver == nil || releaser == nil {
		return engine.ErrReleaserRequired
	}
	o.resolver, o.releaser = resolver, releaser
	if o.token == 0 {
		o.token = register(o)
	}
	resolve, release := callbacks()
	o.lib.setIncludeCallbacks(o.handle, resolve, release, o.token)
	return nil
}

func (o *options) Release() {
	if o.token != 0 {
		unregister(o.token)
		o.token = 0
	}
	if o.handle != 0 {
		o.lib.optionsRelease(o.handle)
		o.handle = 0
	}
}

func (o *options) beginCompile() {
	o.mu.Lock()
	o.includeErrs = nil
	o.mu.Unlock()
}

func (o *options) recordIncludeError(err error) {
	o.mu.Lock()
	o.includeErrs = append(o.includeErrs, err)
	o.mu.Unlock()
}

func (o *options) endCompile() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := errors.Join(o.includeErrs...)
	o.includeErrs = nil
	return err
}

type result struct {
	lib        *library
	handle     uintptr
	includeErr error
}

func (r *result) Status() engine.Status {
	return engine.Status(r.lib.resultGetCompilationStatus(r.handle))
}

func (r *result) Length() int {
	return int(r.lib.resultGetLength(r.handle))
}

// Bytes returns a view of shaderc-owned memory.
func (r *result) Bytes() []byte {
	if r.handle == 0 {
		panic("shaderc: result used after release")
	}
	n := r.Length()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(r.lib.resultGetBytes(r.handle)), n)
}

func (r *result) ErrorMessage() string {
	return r.lib.resultGetErrorMessage(r.handle)
}

func (r *result) IncludeError() error { return r.includeErr }

func (r *result) Release() {
	if r.handle != 0 {
		r.lib.resultRelease(r.handle)
		r.handle = 0
	}
}
