package spirvc

import (
	"errors"
	"strings"

	"github.com/gogpu/spirvc/engine"
)

var (
	// ErrEngineInit wraps failures to create the engine's compiler or
	// option-set handles. The context is unusable.
	ErrEngineInit = errors.New("spirvc: failed to initialize shader compiler")

	// ErrNullResult reports an engine that returned no result object.
	ErrNullResult = errors.New("spirvc: engine returned a null result")

	// ErrResultReleased is returned when a Result is used after Release.
	ErrResultReleased = errors.New("spirvc: result already released")

	// ErrClosed is returned by a Compiler after Close.
	ErrClosed = errors.New("spirvc: compiler closed")

	// ErrNotInitialized is returned by Default before Initialize.
	ErrNotInitialized = errors.New("spirvc: default compiler not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("spirvc: default compiler already initialized")

	// ErrSourceLoad marks failures to read a top-level source.
	ErrSourceLoad = errors.New("spirvc: failed to load shader source")

	// ErrUnknownStage is returned for unrecognized stage names or paths.
	ErrUnknownStage = errors.New("spirvc: unknown shader stage")

	// ErrMisaligned is returned by Result.Words for binaries whose length
	// is not a multiple of four.
	ErrMisaligned = errors.New("spirvc: SPIR-V length is not a multiple of 4")
)

// CompileError reports a failed compilation. Message carries the engine's
// diagnostic text; Err the underlying Go error when one exists (an include
// resolution failure, ErrNullResult, an engine call error).
type CompileError struct {
	Identity string
	Stage    Stage
	Status   engine.Status
	Message  string
	Err      error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("failed to compile shader ")
	b.WriteString(e.Identity)
	b.WriteString(" (")
	b.WriteString(e.Stage.String())
	b.WriteString(") into SPIR-V")

	if e.Status != engine.StatusSuccess {
		b.WriteString(": ")
		b.WriteString(e.Status.String())
	}
	switch {
	case e.Message != "":
		b.WriteString(":\n")
		b.WriteString(strings.TrimRight(e.Message, "\n"))
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// SourceError reports a top-level source that could not be read.
type SourceError struct {
	Locator string
	Err     error
}

func (e *SourceError) Error() string {
	return "failed to load shader source " + e.Locator + ": " + e.Err.Error()
}

// Unwrap matches both ErrSourceLoad and the underlying cause.
func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceLoad, e.Err}
}
