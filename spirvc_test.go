package spirvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLifecycle(t *testing.T) {
	t.Cleanup(func() { _ = Shutdown() })
	require.NoError(t, Shutdown())

	_, err := Default()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = Compile("x", "src", StageVertex)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = CompileFromLocation("x.vert", StageVertex)
	assert.ErrorIs(t, err, ErrNotInitialized)

	first := &stubEngine{}
	require.NoError(t, Initialize(first, DefaultConfig()))
	assert.ErrorIs(t, Initialize(&stubEngine{}, DefaultConfig()), ErrAlreadyInitialized)

	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "stub", c.Engine())

	res, err := Compile("x", "src", StageVertex)
	require.NoError(t, err)
	require.NoError(t, res.Release())

	require.NoError(t, Shutdown())
	assert.Equal(t, 1, first.compilerReleased)
	_, err = Default()
	assert.ErrorIs(t, err, ErrNotInitialized)

	// Reinitialization after Shutdown picks up new settings.
	second := &stubEngine{}
	cfg := DefaultConfig()
	cfg.DebugInfo = false
	require.NoError(t, Initialize(second, cfg))
	assert.NotContains(t, second.calls, "debug")
}

func TestInitializeFailureLeavesNoDefault(t *testing.T) {
	t.Cleanup(func() { _ = Shutdown() })
	require.NoError(t, Shutdown())

	err := Initialize(&stubEngine{compilerErr: errStub}, DefaultConfig())
	assert.ErrorIs(t, err, ErrEngineInit)
	_, err = Default()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in   string
		want Stage
	}{
		{"vertex", StageVertex},
		{"VERT", StageVertex},
		{"gs", StageGeometry},
		{"fragment", StageFragment},
		{" pixel ", StageFragment},
		{"comp", StageCompute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStage("tessellation")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestStageFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Stage
	}{
		{"shaders/blit.frag", StageFragment},
		{"mesh.vsh", StageVertex},
		{"/abs/explode.GEOM", StageGeometry},
		{"cull.comp.glsl", StageCompute},
		{"tri.vert.wgsl", StageVertex},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := StageFromPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, path := range []string{"shader.wgsl", "noext", "a.glsl.wgsl"} {
		_, err := StageFromPath(path)
		assert.ErrorIs(t, err, ErrUnknownStage, path)
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "geometry", StageGeometry.String())
	assert.Equal(t, "Stage(9)", Stage(9).String())
}

func TestCompileErrorMessage(t *testing.T) {
	err := &CompileError{Identity: "a.frag", Stage: StageFragment, Err: ErrNullResult}
	assert.Equal(t, "failed to compile shader a.frag (fragment) into SPIR-V: "+ErrNullResult.Error(), err.Error())

	serr := &SourceError{Locator: "file:/x.frag", Err: errStub}
	assert.ErrorIs(t, serr, ErrSourceLoad)
	assert.ErrorIs(t, serr, errStub)
}
