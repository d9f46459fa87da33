package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/spirvc/engine"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("engine", "", "")
	fs.Bool("debug", true, "")
	fs.String("optimization", "", "")
	fs.String("env", "", "")
	fs.String("target", "", "")
	fs.StringSliceP("include-dir", "I", nil, "")
	fs.Int("max-include-depth", 0, "")
	fs.String("format", "", "")
	fs.Duration("debounce", 0, "")
	fs.String("include-root", "", "")
	return fs
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, EngineAuto, cfg.Engine)
	assert.True(t, cfg.DebugInfo)
	assert.Equal(t, "none", cfg.Optimization)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, int64(DefaultMaxSource), cfg.MaxSourceBytes)
	assert.Equal(t, DefaultDebounce, cfg.Debounce)

	cc, err := cfg.CompilerConfig()
	require.NoError(t, err)
	assert.True(t, cc.DebugInfo)
	assert.Equal(t, engine.OptimizationNone, cc.Optimization)
	assert.Equal(t, engine.TargetVulkan, cc.TargetEnv)
	assert.Equal(t, engine.Vulkan1_2, cc.TargetVersion)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spirvc.yaml"), []byte(`
engine: naga
optimization: size
target_version: "1.1"
include_dirs:
  - shaders/common
max_include_depth: 8
debounce: 250ms
`), 0o644))

	t.Setenv("SPIRVC_OPTIMIZATION", "performance")
	t.Setenv("SPIRVC_TARGET_VERSION", "1.3")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--target", "1.0", "--debug=false"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "spirvc.yaml", cfg.File)

	// file
	assert.Equal(t, EngineNaga, cfg.Engine)
	assert.Equal(t, []string{"shaders/common"}, cfg.IncludeDirs)
	assert.Equal(t, 8, cfg.MaxIncludeDepth)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	// env over file
	assert.Equal(t, "performance", cfg.Optimization)
	// flags over env
	assert.Equal(t, "1.0", cfg.TargetVersion)
	assert.False(t, cfg.DebugInfo)

	cc, err := cfg.CompilerConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.OptimizationPerformance, cc.Optimization)
	assert.Equal(t, engine.Vulkan1_0, cc.TargetVersion)
	assert.Equal(t, 8, cc.MaxIncludeDepth)
}

func TestLoadUnchangedFlagsDoNotOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SPIRVC_ENGINE", "shaderc")

	flags := testFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, EngineShaderc, cfg.Engine)
	assert.True(t, cfg.DebugInfo)
}

func TestLoadIncludeDirs(t *testing.T) {
	chdir(t, t.TempDir())

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"-I", "a", "-I", "b"}))
	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.IncludeDirs)

	t.Setenv("SPIRVC_INCLUDE_DIRS", "x"+string(os.PathListSeparator)+"y")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, cfg.IncludeDirs)

	t.Setenv("SPIRVC_INCLUDE_DIRS", "p,q")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "q"}, cfg.IncludeDirs)
}

func TestLoadIncludeRoot(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("SPIRVC_INCLUDE_ROOT", "/srv/env")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cc, err := cfg.CompilerConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/env", cc.IncludeRoot)

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--include-root", "/srv/flag"}))
	cfg, err = Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "/srv/flag", cfg.IncludeRoot)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, t.TempDir())
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_env: opengl\ntarget_version: \"4.5\"\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)

	cc, err := cfg.CompilerConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.TargetOpenGL, cc.TargetEnv)
	assert.Equal(t, engine.OpenGL4_5, cc.TargetVersion)

	_, err = Load(filepath.Join(dir, "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown engine", func(c *Config) { c.Engine = "dxc" }, "unknown engine"},
		{"unknown output", func(c *Config) { c.Output = "xml" }, "unknown output format"},
		{"negative depth", func(c *Config) { c.MaxIncludeDepth = -1 }, "max_include_depth"},
		{"zero source limit", func(c *Config) { c.MaxSourceBytes = 0 }, "max_source_bytes"},
		{"bad optimization", func(c *Config) { c.Optimization = "fast" }, "optimization level"},
		{"bad target env", func(c *Config) { c.TargetEnv = "metal" }, "unknown target environment"},
		{"vulkan 2.0", func(c *Config) { c.TargetVersion = "2.0" }, "unsupported Vulkan"},
		{"vulkan garbage", func(c *Config) { c.TargetVersion = "latest" }, "invalid Vulkan"},
		{"opengl 4.6", func(c *Config) { c.TargetEnv = "opengl"; c.TargetVersion = "4.6" }, "unsupported OpenGL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestParseTargetVersion(t *testing.T) {
	v, err := ParseTargetVersion(engine.TargetVulkan, "1.3")
	require.NoError(t, err)
	assert.Equal(t, engine.Vulkan1_3, v)

	v, err = ParseTargetVersion(engine.TargetOpenGL, "450")
	require.NoError(t, err)
	assert.Equal(t, engine.OpenGL4_5, v)

	v, err = ParseTargetVersion(engine.TargetVulkan, "")
	require.NoError(t, err)
	assert.Zero(t, v)
}
