// Package config provides configuration management for the spirvc CLI.
//
// Values are layered, lowest precedence first: built-in defaults, the
// spirvc.yaml file, SPIRVC_ environment variables, then command-line
// flags that were explicitly set.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gogpu/spirvc"
	"github.com/gogpu/spirvc/engine"
)

// Engine names.
const (
	EngineAuto    = "auto"
	EngineShaderc = "shaderc"
	EngineNaga    = "naga"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Defaults.
const (
	DefaultEngine        = EngineAuto
	DefaultOptimization  = "none"
	DefaultTargetEnv     = "vulkan"
	DefaultTargetVersion = "1.2"
	DefaultOutput        = OutputText
	DefaultListen        = "127.0.0.1:8740"
	DefaultMaxSource     = 1 << 20
	DefaultDebounce      = 100 * time.Millisecond
)

// Config holds all CLI configuration options.
type Config struct {
	Engine          string        `koanf:"engine"`
	ShadercLibrary  string        `koanf:"shaderc_library"`
	DebugInfo       bool          `koanf:"debug_info"`
	Optimization    string        `koanf:"optimization"`
	TargetEnv       string        `koanf:"target_env"`
	TargetVersion   string        `koanf:"target_version"`
	IncludeDirs     []string      `koanf:"include_dirs"`
	MaxIncludeDepth int           `koanf:"max_include_depth"`
	IncludeRoot     string        `koanf:"include_root"`
	Verbose         bool          `koanf:"verbose"`
	Output          string        `koanf:"output"`
	Listen          string        `koanf:"listen"`
	MaxSourceBytes  int64         `koanf:"max_source_bytes"`
	Debounce        time.Duration `koanf:"debounce"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Engine:         DefaultEngine,
		DebugInfo:      true,
		Optimization:   DefaultOptimization,
		TargetEnv:      DefaultTargetEnv,
		TargetVersion:  DefaultTargetVersion,
		Output:         DefaultOutput,
		Listen:         DefaultListen,
		MaxSourceBytes: DefaultMaxSource,
		Debounce:       DefaultDebounce,
	}
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineAuto, EngineShaderc, EngineNaga:
	default:
		return fmt.Errorf("unknown engine %q (want %s, %s or %s)", c.Engine, EngineAuto, EngineShaderc, EngineNaga)
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unknown output format %q (want %s, %s or %s)", c.Output, OutputText, OutputJSON, OutputYAML)
	}
	if c.MaxIncludeDepth < 0 {
		return fmt.Errorf("max_include_depth must not be negative, got %d", c.MaxIncludeDepth)
	}
	if c.MaxSourceBytes <= 0 {
		return fmt.Errorf("max_source_bytes must be positive, got %d", c.MaxSourceBytes)
	}
	_, err := c.CompilerConfig()
	return err
}

// CompilerConfig converts the CLI settings into a library configuration.
func (c *Config) CompilerConfig() (spirvc.Config, error) {
	cfg := spirvc.Config{
		DebugInfo:       c.DebugInfo,
		IncludeDirs:     c.IncludeDirs,
		MaxIncludeDepth: c.MaxIncludeDepth,
		IncludeRoot:     c.IncludeRoot,
	}

	level, err := engine.ParseOptimizationLevel(strings.ToLower(c.Optimization))
	if err != nil {
		return cfg, err
	}
	cfg.Optimization = level

	switch strings.ToLower(c.TargetEnv) {
	case "vulkan", "vk":
		cfg.TargetEnv = engine.TargetVulkan
	case "opengl", "gl":
		cfg.TargetEnv = engine.TargetOpenGL
	default:
		return cfg, fmt.Errorf("unknown target environment %q (want vulkan or opengl)", c.TargetEnv)
	}

	cfg.TargetVersion, err = ParseTargetVersion(cfg.TargetEnv, c.TargetVersion)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseTargetVersion parses "1.2" style Vulkan versions and "4.5" or
// "450" for OpenGL. An empty string selects the environment default.
func ParseTargetVersion(env engine.TargetEnv, s string) (engine.EnvVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if env == engine.TargetOpenGL {
		if s == "4.5" || s == "450" {
			return engine.OpenGL4_5, nil
		}
		return 0, fmt.Errorf("unsupported OpenGL target version %q (want 4.5)", s)
	}

	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return 0, fmt.Errorf("invalid Vulkan target version %q (want major.minor)", s)
	}
	maj, err := strconv.ParseUint(major, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid Vulkan target version %q: %w", s, err)
	}
	mnr, err := strconv.ParseUint(minor, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid Vulkan target version %q: %w", s, err)
	}
	if maj != 1 || mnr > 3 {
		return 0, fmt.Errorf("unsupported Vulkan target version %q (want 1.0 to 1.3)", s)
	}
	return engine.VulkanVersion(uint32(maj), uint32(mnr)), nil
}

// splitIncludeDirs expands list-separated entries, which is how include
// directories arrive from the environment.
func splitIncludeDirs(dirs []string) []string {
	var out []string
	for _, d := range dirs {
		for _, p := range filepath.SplitList(d) {
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
