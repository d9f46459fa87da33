package shaderc

import (
	"errors"

	"github.com/gogpu/spirvc/engine"
)

// ErrUnavailable is returned when libshaderc cannot be loaded.
var ErrUnavailable = errors.New("shaderc: library unavailable")

// shaderc_shader_kind
const (
	kindVertex   int32 = 0
	kindFragment int32 = 1
	kindCompute  int32 = 2
	kindGeometry int32 = 3
)

// shaderc_target_env
const (
	envVulkan int32 = 0
	envOpenGL int32 = 1
)

// Engine is the shaderc engine.
type Engine struct {
	// Library is the shared library to open. Empty tries the platform's
	// usual libshaderc_shared names.
	Library string
}

// New returns an engine that loads libshaderc from the default locations.
func New() *Engine {
	return &Engine{}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "shaderc" }

func shaderKind(s engine.Stage) (int32, bool) {
	switch s {
	case engine.StageVertex:
		return kindVertex, true
	case engine.StageFragment:
		return kindFragment, true
	case engine.StageCompute:
		return kindCompute, true
	case engine.StageGeometry:
		return kindGeometry, true
	default:
		return 0, false
	}
}

func targetEnv(e engine.TargetEnv) int32 {
	if e == engine.TargetOpenGL {
		return envOpenGL
	}
	return envVulkan
}
