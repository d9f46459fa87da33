package spirvc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gogpu/spirvc/engine"
	"github.com/gogpu/spirvc/include"
)

// EntryPoint is the entry point name every compilation uses.
const EntryPoint = "main"

// Config is the compiler configuration. It is applied once by New and
// cannot change afterwards; build a new Compiler for different settings.
type Config struct {
	// DebugInfo makes the engine emit debug information.
	DebugInfo bool

	// Optimization is applied only when it is not OptimizationNone.
	Optimization engine.OptimizationLevel

	// TargetEnv and TargetVersion select the client API. A zero
	// TargetVersion means Vulkan 1.2 for Vulkan and 4.5 for OpenGL.
	TargetEnv     engine.TargetEnv
	TargetVersion engine.EnvVersion

	// Resolver and Releaser handle include directives. A nil Resolver
	// installs an include.FileResolver built from Files, IncludeDirs,
	// MaxIncludeDepth and IncludeRoot. A nil Releaser installs
	// include.NopReleaser.
	Resolver include.Resolver
	Releaser include.Releaser

	// Files reads top-level sources in CompileFromLocation and headers in
	// the default resolver. Nil means include.OSFiles.
	Files include.FileReader

	IncludeDirs     []string
	MaxIncludeDepth int

	// IncludeRoot confines headers read by the default resolver to one
	// directory tree. Empty allows any path.
	IncludeRoot string
}

// DefaultConfig returns debug info on, no optimization, Vulkan 1.2.
func DefaultConfig() Config {
	return Config{
		DebugInfo:     true,
		Optimization:  engine.OptimizationNone,
		TargetEnv:     engine.TargetVulkan,
		TargetVersion: engine.Vulkan1_2,
	}
}

// Compiler is a compiler context: one engine compiler handle and one
// option set, configured once. Compile calls are serialized.
type Compiler struct {
	mu      sync.Mutex
	name    string
	handle  engine.Compiler
	options engine.Options
	cfg     Config
	files   include.FileReader
	closed  bool
}

// New creates the engine handles and applies cfg in a fixed order:
// optimization level, debug info, target environment, include callbacks.
// Any failure is wrapped in ErrEngineInit.
func New(e engine.Engine, cfg Config) (*Compiler, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: no engine", ErrEngineInit)
	}
	cfg = cfg.withDefaults()

	handle, err := e.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEngineInit, e.Name(), err)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: %s: null compiler handle", ErrEngineInit, e.Name())
	}

	opts, err := handle.NewOptions()
	if err == nil && opts == nil {
		err = errors.New("null options handle")
	}
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("%w: %s: %w", ErrEngineInit, e.Name(), err)
	}

	if cfg.Optimization != engine.OptimizationNone {
		opts.SetOptimizationLevel(cfg.Optimization)
	}
	if cfg.DebugInfo {
		opts.SetGenerateDebugInfo()
	}
	opts.SetTargetEnv(cfg.TargetEnv, cfg.TargetVersion)
	if err := opts.SetIncludeCallbacks(cfg.Resolver, cfg.Releaser); err != nil {
		opts.Release()
		handle.Release()
		return nil, fmt.Errorf("%w: %s: %w", ErrEngineInit, e.Name(), err)
	}

	Logger().Info("shader compiler initialized",
		zap.String("engine", e.Name()),
		zap.Bool("debug_info", cfg.DebugInfo),
		zap.Stringer("optimization", cfg.Optimization),
		zap.Stringer("target_env", cfg.TargetEnv),
		zap.Uint32("target_version", uint32(cfg.TargetVersion)))

	return &Compiler{
		name:    e.Name(),
		handle:  handle,
		options: opts,
		cfg:     cfg,
		files:   cfg.Files,
	}, nil
}

func (cfg Config) withDefaults() Config {
	if cfg.TargetVersion == 0 {
		cfg.TargetVersion = engine.Vulkan1_2
		if cfg.TargetEnv == engine.TargetOpenGL {
			cfg.TargetVersion = engine.OpenGL4_5
		}
	}
	if cfg.Files == nil {
		cfg.Files = include.OSFiles
	}
	if cfg.Resolver == nil {
		cfg.Resolver = cfg.FileResolver()
	}
	if cfg.Releaser == nil {
		cfg.Releaser = include.NopReleaser
	}
	return cfg
}

// FileResolver returns the resolver New installs when cfg.Resolver is
// nil. Wrap it to observe or filter include resolution.
func (cfg Config) FileResolver() *include.FileResolver {
	return &include.FileResolver{
		Files:      cfg.Files,
		SearchDirs: cfg.IncludeDirs,
		MaxDepth:   cfg.MaxIncludeDepth,
		Root:       cfg.IncludeRoot,
		Logger:     Logger(),
	}
}

// Engine returns the engine name.
func (c *Compiler) Engine() string { return c.name }

// Config returns the configuration in effect, defaults filled in.
func (c *Compiler) Config() Config {
	cfg := c.cfg
	cfg.IncludeDirs = append([]string(nil), c.cfg.IncludeDirs...)
	return cfg
}

// Compile compiles source for stage into SPIR-V.
//
// identity names the source in diagnostics and is the base against which
// its relative includes resolve, so pass the file's path or file URI.
// Failures are returned as *CompileError; no Result is produced.
func (c *Compiler) Compile(identity, source string, stage Stage) (*Result, error) {
	es, ok := stage.engineStage()
	if !ok {
		return nil, &CompileError{Identity: identity, Stage: stage, Err: ErrUnknownStage}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	res, err := c.handle.Compile(engine.Request{
		Source:     source,
		Stage:      es,
		Identity:   identity,
		EntryPoint: EntryPoint,
	}, c.options)
	if err != nil {
		return nil, c.fail(&CompileError{Identity: identity, Stage: stage, Err: err})
	}
	if res == nil {
		return nil, c.fail(&CompileError{Identity: identity, Stage: stage, Status: engine.StatusNullResultObject, Err: ErrNullResult})
	}

	if status := res.Status(); status != engine.StatusSuccess {
		cerr := &CompileError{Identity: identity, Stage: stage, Status: status, Message: res.ErrorMessage()}
		if ie, ok := res.(engine.IncludeErrorer); ok {
			cerr.Err = ie.IncludeError()
		}
		res.Release()
		return nil, c.fail(cerr)
	}

	r := newResult(res)
	Logger().Debug("compiled shader",
		zap.String("identity", identity),
		zap.Stringer("stage", stage),
		zap.Int("bytes", r.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return r, nil
}

func (c *Compiler) fail(err *CompileError) error {
	Logger().Warn("shader compilation failed",
		zap.String("engine", c.name),
		zap.String("identity", err.Identity),
		zap.Stringer("stage", err.Stage),
		zap.Stringer("status", err.Status),
		zap.Error(err))
	return err
}

// CompileFromLocation reads the source named by locator (a path or file
// URI) and compiles it with the locator as identity. A source that cannot
// be read is an error matching ErrSourceLoad.
func (c *Compiler) CompileFromLocation(locator string, stage Stage) (*Result, error) {
	source, err := include.ReadLocation(c.files, locator)
	if err != nil {
		Logger().Warn("failed to load shader source", zap.String("locator", locator), zap.Error(err))
		return nil, &SourceError{Locator: locator, Err: err}
	}
	return c.Compile(locator, string(source), stage)
}

// Close releases the option set and the compiler handle. Results already
// returned stay valid until released.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.options.Release()
	c.handle.Release()
	Logger().Info("shader compiler closed", zap.String("engine", c.name))
	return nil
}
