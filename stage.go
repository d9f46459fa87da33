package spirvc

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gogpu/spirvc/engine"
)

// Stage is the shader pipeline stage a source is compiled for.
type Stage uint8

const (
	StageVertex Stage = iota
	StageGeometry
	StageFragment
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}

func (s Stage) engineStage() (engine.Stage, bool) {
	switch s {
	case StageVertex:
		return engine.StageVertex, true
	case StageGeometry:
		return engine.StageGeometry, true
	case StageFragment:
		return engine.StageFragment, true
	case StageCompute:
		return engine.StageCompute, true
	default:
		return 0, false
	}
}

// ParseStage parses a stage name: the String form or the usual short
// forms (vert, geom, frag, comp, vs, gs, fs, cs).
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vertex", "vert", "vs":
		return StageVertex, nil
	case "geometry", "geom", "gs":
		return StageGeometry, nil
	case "fragment", "frag", "fs", "pixel":
		return StageFragment, nil
	case "compute", "comp", "cs":
		return StageCompute, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

var stageExtensions = map[string]Stage{
	".vert": StageVertex,
	".vsh":  StageVertex,
	".geom": StageGeometry,
	".gsh":  StageGeometry,
	".frag": StageFragment,
	".fsh":  StageFragment,
	".comp": StageCompute,
	".csh":  StageCompute,
}

// StageFromPath infers the stage from a file name: "blit.frag",
// "mesh.vsh", or a language suffix on top ("blit.frag.glsl",
// "tri.vert.wgsl").
func StageFromPath(path string) (Stage, error) {
	base := strings.ToLower(filepath.Base(path))
	for i := 0; i < 2; i++ {
		ext := filepath.Ext(base)
		if ext == "" {
			break
		}
		if s, ok := stageExtensions[ext]; ok {
			return s, nil
		}
		base = strings.TrimSuffix(base, ext)
	}
	return 0, fmt.Errorf("%w: cannot infer stage from %q", ErrUnknownStage, path)
}
