package spirvc

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gogpu/spirvc/engine"
	"github.com/gogpu/spirvc/engine/wgsl"
	"github.com/gogpu/spirvc/include"
)

const vertexShader = `
@vertex
fn main() -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

// recordingResolver wraps a resolver and records its requests.
type recordingResolver struct {
	next     include.Resolver
	requests []include.Request
}

func (r *recordingResolver) Resolve(req include.Request) (*include.Result, error) {
	r.requests = append(r.requests, req)
	return r.next.Resolve(req)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newWGSL(t *testing.T, cfg Config) *Compiler {
	t.Helper()
	c, err := New(wgsl.New(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCompileSingleFile(t *testing.T) {
	c := newWGSL(t, DefaultConfig())

	res, err := c.Compile("triangle.vert.wgsl", vertexShader, StageVertex)
	require.NoError(t, err)
	defer res.Release()

	code, err := res.Bytes()
	require.NoError(t, err)
	assert.Greater(t, res.Len(), 0)
	assert.Len(t, code, res.Len())
	assert.Equal(t, uint32(0x07230203), binary.LittleEndian.Uint32(code))

	words, err := res.Words()
	require.NoError(t, err)
	assert.Len(t, words, res.Len()/4)
	assert.Equal(t, uint32(0x07230203), words[0])
}

func TestCompileNestedIncludesResolveAgainstImmediateIncluder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.wgsl"), "#include \"sub/b.wgsl\"\n@fragment\nfn main() -> @location(0) vec4<f32> {\n    return tint();\n}\n")
	writeFile(t, filepath.Join(dir, "sub", "b.wgsl"), "#include \"c.wgsl\"\nfn tint() -> vec4<f32> {\n    return base();\n}\n")
	writeFile(t, filepath.Join(dir, "sub", "c.wgsl"), "fn base() -> vec4<f32> {\n    return vec4<f32>(0.5, 0.5, 0.5, 1.0);\n}\n")
	// A c.wgsl next to a.wgsl must not be picked up.
	writeFile(t, filepath.Join(dir, "c.wgsl"), "this is not wgsl\n")

	rec := &recordingResolver{next: &include.FileResolver{}}
	c := newWGSL(t, Config{Resolver: rec})

	top := include.Locator(filepath.Join(dir, "a.wgsl"), "file:/")
	res, err := c.CompileFromLocation(top, StageFragment)
	require.NoError(t, err)
	require.NoError(t, res.Release())

	require.Len(t, rec.requests, 2)
	assert.Equal(t, top, rec.requests[0].Requester)
	assert.Equal(t, "sub/b.wgsl", rec.requests[0].Name)
	assert.Equal(t, 1, rec.requests[0].Depth)

	requester, err := include.ParseLocator(rec.requests[1].Requester)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "b.wgsl"), requester)
	assert.Equal(t, "c.wgsl", rec.requests[1].Name)
	assert.Equal(t, 2, rec.requests[1].Depth)
}

func TestCompileMissingInclude(t *testing.T) {
	dir := t.TempDir()
	c := newWGSL(t, DefaultConfig())

	src := "#include \"missing.wgsl\"\n" + vertexShader
	res, err := c.Compile(filepath.Join(dir, "test.vert.wgsl"), src, StageVertex)
	require.Error(t, err)
	assert.Nil(t, res)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, engine.StatusCompilationError, cerr.Status)
	assert.Contains(t, err.Error(), "missing.wgsl")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestCompileSyntaxErrorCarriesIdentityAndEngineText(t *testing.T) {
	c := newWGSL(t, DefaultConfig())

	src := "@vertex\nfn main( -> @builtin(position) vec4<f32> {\n    return vec4<f32>(0.0, 0.0, 0.0, 1.0);\n}\n"
	_, err := c.Compile("broken.vert.wgsl", src, StageVertex)
	require.Error(t, err)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.NotEmpty(t, cerr.Message)
	assert.Contains(t, err.Error(), "broken.vert.wgsl")
	assert.Contains(t, err.Error(), cerr.Message)
}

func TestResultUseAfterRelease(t *testing.T) {
	s := &stubEngine{}
	c, err := New(s, DefaultConfig())
	require.NoError(t, err)

	res, err := c.Compile("a.frag", "src", StageFragment)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Len())

	require.NoError(t, res.Release())
	assert.ErrorIs(t, res.Release(), ErrResultReleased)
	assert.ErrorIs(t, res.Close(), ErrResultReleased)
	assert.Equal(t, int32(1), s.resultsReleased.Load())

	_, err = res.Bytes()
	assert.ErrorIs(t, err, ErrResultReleased)
	_, err = res.Words()
	assert.ErrorIs(t, err, ErrResultReleased)
}

func TestResultWordsMisaligned(t *testing.T) {
	s := &stubEngine{compile: nil}
	s.compile = func(engine.Request) (engine.Result, error) {
		return &stubResult{e: s, status: engine.StatusSuccess, code: []byte{1, 2, 3}}, nil
	}
	c, err := New(s, DefaultConfig())
	require.NoError(t, err)

	res, err := c.Compile("a.frag", "src", StageFragment)
	require.NoError(t, err)
	defer res.Release()

	_, err = res.Words()
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestNewAppliesConfigInOrder(t *testing.T) {
	s := &stubEngine{}
	_, err := New(s, Config{
		DebugInfo:     true,
		Optimization:  engine.OptimizationPerformance,
		TargetEnv:     engine.TargetVulkan,
		TargetVersion: engine.Vulkan1_3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"optimization performance",
		"debug",
		"target vulkan 4206592",
		"include",
	}, s.calls)
}

func TestNewSkipsOptionalSettings(t *testing.T) {
	s := &stubEngine{}
	c, err := New(s, Config{TargetEnv: engine.TargetOpenGL})
	require.NoError(t, err)
	assert.Equal(t, []string{"target opengl 450", "include"}, s.calls)

	cfg := c.Config()
	assert.Equal(t, engine.OpenGL4_5, cfg.TargetVersion)
	assert.NotNil(t, cfg.Resolver)
	assert.NotNil(t, cfg.Releaser)
}

func TestNewEngineInitFailures(t *testing.T) {
	t.Run("compiler", func(t *testing.T) {
		_, err := New(&stubEngine{compilerErr: errStub}, DefaultConfig())
		assert.ErrorIs(t, err, ErrEngineInit)
		assert.ErrorIs(t, err, errStub)
	})

	t.Run("options", func(t *testing.T) {
		s := &stubEngine{optionsErr: errStub}
		_, err := New(s, DefaultConfig())
		assert.ErrorIs(t, err, ErrEngineInit)
		assert.Equal(t, 1, s.compilerReleased)
	})

	t.Run("null options", func(t *testing.T) {
		s := &stubEngine{nilOptions: true}
		_, err := New(s, DefaultConfig())
		assert.ErrorIs(t, err, ErrEngineInit)
		assert.Equal(t, 1, s.compilerReleased)
	})

	t.Run("callbacks", func(t *testing.T) {
		s := &stubEngine{callbackErr: engine.ErrReleaserRequired}
		_, err := New(s, DefaultConfig())
		assert.ErrorIs(t, err, ErrEngineInit)
		assert.ErrorIs(t, err, engine.ErrReleaserRequired)
		assert.Equal(t, 1, s.optionsReleased)
		assert.Equal(t, 1, s.compilerReleased)
	})

	t.Run("nil engine", func(t *testing.T) {
		_, err := New(nil, DefaultConfig())
		assert.ErrorIs(t, err, ErrEngineInit)
	})
}

func TestCompileNullResult(t *testing.T) {
	s := &stubEngine{compile: func(engine.Request) (engine.Result, error) { return nil, nil }}
	c, err := New(s, DefaultConfig())
	require.NoError(t, err)

	res, err := c.Compile("a.comp", "src", StageCompute)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNullResult)
	assert.Contains(t, err.Error(), "a.comp")
}

func TestCompileFailureReleasesEngineResult(t *testing.T) {
	s := &stubEngine{}
	s.compile = func(engine.Request) (engine.Result, error) {
		return &stubResult{e: s, status: engine.StatusCompilationError, message: "a.geom:2: error: 'x' : undeclared identifier\n"}, nil
	}
	c, err := New(s, DefaultConfig())
	require.NoError(t, err)

	_, err = c.Compile("a.geom", "src", StageGeometry)
	require.Error(t, err)
	assert.Equal(t, int32(1), s.resultsReleased.Load())
	assert.Equal(t, "failed to compile shader a.geom (geometry) into SPIR-V: compilation error:\na.geom:2: error: 'x' : undeclared identifier", err.Error())
}

func TestCompilePassesEntryPointAndStage(t *testing.T) {
	s := &stubEngine{}
	c, err := New(s, DefaultConfig())
	require.NoError(t, err)

	for _, stage := range []Stage{StageVertex, StageGeometry, StageFragment, StageCompute} {
		res, err := c.Compile("x", "src", stage)
		require.NoError(t, err)
		require.NoError(t, res.Release())
	}
	assert.Equal(t, []string{
		"compile x vertex main",
		"compile x geometry main",
		"compile x fragment main",
		"compile x compute main",
	}, s.calls[len(s.calls)-4:])

	_, err = c.Compile("x", "src", Stage(42))
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestCompileIsSerialized(t *testing.T) {
	s := &stubEngine{delay: 2 * time.Millisecond}
	c, err := New(s, DefaultConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Compile("x", "src", StageCompute)
			if assert.NoError(t, err) {
				_ = res.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), s.maxInflight.Load())
}

func TestCompilerClose(t *testing.T) {
	s := &stubEngine{}
	c, err := New(s, DefaultConfig())
	require.NoError(t, err)

	res, err := c.Compile("x", "src", StageVertex)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Close(), ErrClosed)
	assert.Equal(t, 1, s.optionsReleased)
	assert.Equal(t, 1, s.compilerReleased)

	_, err = c.Compile("x", "src", StageVertex)
	assert.ErrorIs(t, err, ErrClosed)

	// Results outlive the context.
	_, err = res.Bytes()
	assert.NoError(t, err)
	assert.NoError(t, res.Release())
}

func TestCompileFromLocation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tri.vert.wgsl")
	writeFile(t, path, vertexShader)
	c := newWGSL(t, DefaultConfig())

	for _, loc := range []string{path, include.Locator(path, "file:/")} {
		res, err := c.CompileFromLocation(loc, StageVertex)
		require.NoError(t, err, loc)
		assert.Greater(t, res.Len(), 0)
		require.NoError(t, res.Release())
	}

	_, err := c.CompileFromLocation(filepath.Join(dir, "absent.wgsl"), StageVertex)
	assert.ErrorIs(t, err, ErrSourceLoad)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = c.CompileFromLocation("https://example.com/tri.wgsl", StageVertex)
	assert.ErrorIs(t, err, ErrSourceLoad)
	assert.ErrorIs(t, err, include.ErrUnsupportedLocator)
}

func TestCompileLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	c := newWGSL(t, DefaultConfig())
	res, err := c.Compile("ok.wgsl", vertexShader, StageVertex)
	require.NoError(t, err)
	require.NoError(t, res.Release())
	_, err = c.Compile("bad.wgsl", vertexShader, StageCompute)
	require.Error(t, err)

	assert.Equal(t, 1, logs.FilterMessage("shader compiler initialized").Len())
	assert.Equal(t, 1, logs.FilterMessage("compiled shader").Len())
	failed := logs.FilterMessage("shader compilation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad.wgsl", failed[0].ContextMap()["identity"])
}

func TestLoggerDefaultsToNop(t *testing.T) {
	SetLogger(nil)
	assert.NotNil(t, Logger())
	assert.False(t, Logger().Core().Enabled(zap.ErrorLevel))
}
