package engine

import (
	"errors"
	"fmt"

	"github.com/gogpu/spirvc/include"
)

// ErrReleaserRequired is returned by Options.SetIncludeCallbacks when the
// resolver or releaser is missing. Engines only accept the pair.
var ErrReleaserRequired = errors.New("engine: include resolver requires a paired releaser")

// Engine creates compiler handles.
type Engine interface {
	// Name identifies the engine in logs and errors.
	Name() string

	NewCompiler() (Compiler, error)
}

// Compiler is a long-lived engine handle.
type Compiler interface {
	NewOptions() (Options, error)

	// Compile runs a single-shot compilation into SPIR-V. A nil Result with
	// a nil error is the engine's "null result object" case.
	Compile(req Request, opts Options) (Result, error)

	Release()
}

// Options is an engine option set.
type Options interface {
	SetOptimizationLevel(level OptimizationLevel)
	SetGenerateDebugInfo()
	SetTargetEnv(env TargetEnv, version EnvVersion)
	SetIncludeCallbacks(resolver include.Resolver, releaser include.Releaser) error
	Release()
}

// Result is an engine-owned compilation result.
type Result interface {
	Status() Status
	Length() int

	// Bytes returns a view of the binary. It is valid until Release.
	Bytes() []byte

	ErrorMessage() string
	Release()
}

// IncludeErrorer is implemented by results that can report the resolver
// error that aborted their compilation.
type IncludeErrorer interface {
	IncludeError() error
}

// Request is one compile call.
type Request struct {
	Source     string
	Stage      Stage
	Identity   string
	EntryPoint string
}

// Stage is the pipeline stage a source is compiled for.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
	StageGeometry
)

var stageNames = [...]string{
	StageVertex:   "vertex",
	StageFragment: "fragment",
	StageCompute:  "compute",
	StageGeometry: "geometry",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// OptimizationLevel selects the engine's optimizer.
type OptimizationLevel uint8

const (
	OptimizationNone OptimizationLevel = iota
	OptimizationSize
	OptimizationPerformance
)

func (l OptimizationLevel) String() string {
	switch l {
	case OptimizationNone:
		return "none"
	case OptimizationSize:
		return "size"
	case OptimizationPerformance:
		return "performance"
	default:
		return fmt.Sprintf("OptimizationLevel(%d)", l)
	}
}

// ParseOptimizationLevel parses the String form.
func ParseOptimizationLevel(s string) (OptimizationLevel, error) {
	switch s {
	case "", "none", "zero":
		return OptimizationNone, nil
	case "size":
		return OptimizationSize, nil
	case "performance", "perf":
		return OptimizationPerformance, nil
	}
	return 0, fmt.Errorf("engine: unknown optimization level %q", s)
}

// TargetEnv is the client API the binary is produced for.
type TargetEnv uint8

const (
	TargetVulkan TargetEnv = iota
	TargetOpenGL
)

func (e TargetEnv) String() string {
	switch e {
	case TargetVulkan:
		return "vulkan"
	case TargetOpenGL:
		return "opengl"
	default:
		return fmt.Sprintf("TargetEnv(%d)", e)
	}
}

// EnvVersion is a target environment version. Vulkan versions use the
// VK_MAKE_API_VERSION encoding; OpenGL uses 450.
type EnvVersion uint32

// Target environment versions.
const (
	Vulkan1_0 = EnvVersion(1<<22 | 0<<12)
	Vulkan1_1 = EnvVersion(1<<22 | 1<<12)
	Vulkan1_2 = EnvVersion(1<<22 | 2<<12)
	Vulkan1_3 = EnvVersion(1<<22 | 3<<12)
	OpenGL4_5 = EnvVersion(450)
)

// VulkanVersion encodes a Vulkan major.minor version.
func VulkanVersion(major, minor uint32) EnvVersion {
	return EnvVersion(major<<22 | minor<<12)
}

// Major returns the Vulkan major version.
func (v EnvVersion) Major() uint32 { return uint32(v) >> 22 }

// Minor returns the Vulkan minor version.
func (v EnvVersion) Minor() uint32 { return uint32(v) >> 12 & 0x3FF }

// Status is the outcome of a compile call.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusInvalidStage
	StatusCompilationError
	StatusInternalError
	StatusNullResultObject
	StatusInvalidAssembly
	StatusValidationError
	StatusTransformationError
	StatusConfigurationError
)

var statusNames = [...]string{
	StatusSuccess:             "success",
	StatusInvalidStage:        "invalid stage",
	StatusCompilationError:    "compilation error",
	StatusInternalError:       "internal error",
	StatusNullResultObject:    "null result object",
	StatusInvalidAssembly:     "invalid assembly",
	StatusValidationError:     "validation error",
	StatusTransformationError: "transformation error",
	StatusConfigurationError:  "configuration error",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", s)
}
