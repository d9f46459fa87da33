package wgsl

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	nagawgsl "github.com/gogpu/naga/wgsl"

	"github.com/gogpu/spirvc/engine"
	"github.com/gogpu/spirvc/include"
)

// Engine compiles WGSL with naga.
type Engine struct {
	// SkipValidation disables naga's IR validation pass.
	SkipValidation bool
}

// New returns a WGSL engine with validation enabled.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "naga-wgsl" }

// NewCompiler implements engine.Engine.
func (e *Engine) NewCompiler() (engine.Compiler, error) {
	return &compiler{validate: !e.SkipValidation}, nil
}

type compiler struct {
	validate bool
}

func (c *compiler) NewOptions() (engine.Options, error) {
	return &options{env: engine.TargetVulkan, version: engine.Vulkan1_0}, nil
}

func (c *compiler) Release() {}

// Compile implements engine.Compiler. Failures are reported through the
// result status, as the native engine does.
func (c *compiler) Compile(req engine.Request, o engine.Options) (engine.Result, error) {
	opts, ok := o.(*options)
	if !ok {
		return nil, fmt.Errorf("wgsl: foreign options type %T", o)
	}

	stage, ok := irStage(req.Stage)
	if !ok {
		return failure(engine.StatusInvalidStage, "%s: error: %s shaders are not supported by WGSL", req.Identity, req.Stage), nil
	}

	source, lines, err := preprocess(req.Identity, req.Source, opts.resolver, opts.releaser)
	if err != nil {
		res := failure(engine.StatusCompilationError, "%v", err)
		res.includeErr = err
		return res, nil
	}

	module, err := lower(source)
	if err != nil {
		return failure(engine.StatusCompilationError, "%s", describe(lines, req.Identity, err)), nil
	}

	if err := checkEntryPoint(module, req.EntryPoint, stage); err != nil {
		return failure(engine.StatusInvalidStage, "%s: error: %v", req.Identity, err), nil
	}

	if c.validate {
		verrs, err := naga.Validate(module)
		if err != nil {
			return failure(engine.StatusValidationError, "%s: error: %v", req.Identity, err), nil
		}
		if len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for i := range verrs {
				msgs[i] = verrs[i].Error()
			}
			return failure(engine.StatusValidationError, "%s: error: %s", req.Identity, strings.Join(msgs, "; ")), nil
		}
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{
		Version: opts.spirvVersion(),
		Debug:   opts.debug,
	})
	if err != nil {
		return failure(engine.StatusInternalError, "%s: error: %v", req.Identity, err), nil
	}
	return &result{status: engine.StatusSuccess, code: code}, nil
}

func lower(source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	return naga.LowerWithSource(ast, source)
}

// describe renders a naga front-end error with its position mapped back
// through the include splices.
func describe(lines lineMap, identity string, err error) string {
	var (
		errs *nagawgsl.SourceErrors
		serr *nagawgsl.SourceError
		perr nagawgsl.ParseError
	)
	switch {
	case errors.As(err, &errs) && len(*errs) > 0:
		first := (*errs)[0]
		msg := lines.at(identity, first.Span.Start.Line, first.Span.Start.Column, first.Message)
		if n := len(*errs) - 1; n > 0 {
			msg += fmt.Sprintf(" (and %d more errors)", n)
		}
		return msg
	case errors.As(err, &serr):
		return lines.at(identity, serr.Span.Start.Line, serr.Span.Start.Column, serr.Message)
	case errors.As(err, &perr):
		return lines.at(identity, perr.Line, perr.Column, perr.Message)
	}
	return fmt.Sprintf("%s: error: %v", identity, err)
}

func irStage(s engine.Stage) (ir.ShaderStage, bool) {
	switch s {
	case engine.StageVertex:
		return ir.StageVertex, true
	case engine.StageFragment:
		return ir.StageFragment, true
	case engine.StageCompute:
		return ir.StageCompute, true
	default:
		return 0, false
	}
}

func checkEntryPoint(module *ir.Module, name string, stage ir.ShaderStage) error {
	var stages []string
	for _, ep := range module.EntryPoints {
		if ep.Name != name {
			continue
		}
		if ep.Stage == stage {
			return nil
		}
		stages = append(stages, stageName(ep.Stage))
	}
	if len(stages) > 0 {
		return fmt.Errorf("entry point %q is a %s entry point, not %s", name, strings.Join(stages, "/"), stageName(stage))
	}
	return fmt.Errorf("entry point %q not found", name)
}

func stageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage %d", s)
	}
}

type options struct {
	optimization engine.OptimizationLevel
	debug        bool
	env          engine.TargetEnv
	version      engine.EnvVersion
	resolver     include.Resolver
	releaser     include.Releaser
}

// SetOptimizationLevel is recorded but has no effect; naga has no
// optimizer.
func (o *options) SetOptimizationLevel(level engine.OptimizationLevel) { o.optimization = level }

func (o *options) SetGenerateDebugInfo() { o.debug = true }

func (o *options) SetTargetEnv(env engine.TargetEnv, version engine.EnvVersion) {
	o.env, o.version = env, version
}

func (o *options) SetIncludeCallbacks(resolver include.Resolver, releaser include.Releaser) error {
	if resolver == nil || releaser == nil {
		return engine.ErrReleaserRequired
	}
	o.resolver, o.releaser = resolver, releaser
	return nil
}

func (o *options) Release() {}

// spirvVersion picks the newest SPIR-V version the target environment
// guarantees.
func (o *options) spirvVersion() spirv.Version {
	if o.env != engine.TargetVulkan {
		return spirv.Version1_0
	}
	switch {
	case o.version >= engine.Vulkan1_3:
		return spirv.Version1_6
	case o.version >= engine.Vulkan1_2:
		return spirv.Version1_5
	case o.version >= engine.Vulkan1_1:
		return spirv.Version1_3
	default:
		return spirv.Version1_0
	}
}

var errReleased = errors.New("wgsl: result used after release")

type result struct {
	mu         sync.Mutex
	status     engine.Status
	code       []byte
	message    string
	includeErr error
	released   bool
}

func failure(status engine.Status, format string, args ...any) *result {
	return &result{status: status, message: fmt.Sprintf(format, args...)}
}

func (r *result) Status() engine.Status { return r.status }

func (r *result) Length() int { return len(r.code) }

func (r *result) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		panic(errReleased)
	}
	return r.code
}

func (r *result) ErrorMessage() string { return r.message }

func (r *result) IncludeError() error { return r.includeErr }

func (r *result) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	r.code = nil
}
