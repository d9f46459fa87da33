package spirvc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/spirvc/engine"
	"github.com/gogpu/spirvc/include"
)

// stubEngine records every call crossing the engine boundary.
type stubEngine struct {
	mu    sync.Mutex
	calls []string

	compilerErr error
	nilOptions  bool
	optionsErr  error
	callbackErr error

	// compile overrides the default successful compile.
	compile func(req engine.Request) (engine.Result, error)

	inflight    atomic.Int32
	maxInflight atomic.Int32
	delay       time.Duration

	compilerReleased int
	optionsReleased  int
	resultsReleased  atomic.Int32
}

func (s *stubEngine) record(format string, args ...any) {
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) NewCompiler() (engine.Compiler, error) {
	if s.compilerErr != nil {
		return nil, s.compilerErr
	}
	return &stubCompiler{e: s}, nil
}

type stubCompiler struct{ e *stubEngine }

func (c *stubCompiler) NewOptions() (engine.Options, error) {
	if c.e.optionsErr != nil {
		return nil, c.e.optionsErr
	}
	if c.e.nilOptions {
		return nil, nil
	}
	return &stubOptions{e: c.e}, nil
}

func (c *stubCompiler) Compile(req engine.Request, _ engine.Options) (engine.Result, error) {
	n := c.e.inflight.Add(1)
	defer c.e.inflight.Add(-1)
	for {
		m := c.e.maxInflight.Load()
		if n <= m || c.e.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}
	if c.e.delay > 0 {
		time.Sleep(c.e.delay)
	}

	c.e.record("compile %s %s %s", req.Identity, req.Stage, req.EntryPoint)
	if c.e.compile != nil {
		return c.e.compile(req)
	}
	return &stubResult{e: c.e, status: engine.StatusSuccess, code: []byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0}}, nil
}

func (c *stubCompiler) Release() { c.e.compilerReleased++ }

type stubOptions struct{ e *stubEngine }

func (o *stubOptions) SetOptimizationLevel(level engine.OptimizationLevel) {
	o.e.record("optimization %s", level)
}

func (o *stubOptions) SetGenerateDebugInfo() { o.e.record("debug") }

func (o *stubOptions) SetTargetEnv(env engine.TargetEnv, version engine.EnvVersion) {
	o.e.record("target %s %d", env, version)
}

func (o *stubOptions) SetIncludeCallbacks(resolver include.Resolver, releaser include.Releaser) error {
	if resolver == nil || releaser == nil {
		return engine.ErrReleaserRequired
	}
	o.e.record("include")
	return o.e.callbackErr
}

func (o *stubOptions) Release() { o.e.optionsReleased++ }

type stubResult struct {
	e        *stubEngine
	status   engine.Status
	code     []byte
	message  string
	incErr   error
	released bool
}

func (r *stubResult) Status() engine.Status { return r.status }
func (r *stubResult) Length() int           { return len(r.code) }
func (r *stubResult) ErrorMessage() string  { return r.message }
func (r *stubResult) IncludeError() error   { return r.incErr }

func (r *stubResult) Bytes() []byte {
	if r.released {
		panic("stub: bytes after release")
	}
	return r.code
}

func (r *stubResult) Release() {
	if r.released {
		panic("stub: double release")
	}
	r.released = true
	r.e.resultsReleased.Add(1)
}

var errStub = errors.New("stub failure")
