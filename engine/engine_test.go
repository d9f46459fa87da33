package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVulkanVersionEncoding(t *testing.T) {
	// VK_API_VERSION_1_2
	assert.Equal(t, EnvVersion(4202496), Vulkan1_2)
	assert.Equal(t, Vulkan1_3, VulkanVersion(1, 3))
	assert.Equal(t, uint32(1), Vulkan1_1.Major())
	assert.Equal(t, uint32(1), Vulkan1_1.Minor())
	assert.Equal(t, uint32(0), Vulkan1_0.Minor())
}

func TestParseOptimizationLevel(t *testing.T) {
	for in, want := range map[string]OptimizationLevel{
		"":            OptimizationNone,
		"none":        OptimizationNone,
		"size":        OptimizationSize,
		"performance": OptimizationPerformance,
		"perf":        OptimizationPerformance,
	} {
		got, err := ParseOptimizationLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOptimizationLevel("O3")
	assert.Error(t, err)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "geometry", StageGeometry.String())
	assert.Equal(t, "Stage(9)", Stage(9).String())
	assert.Equal(t, "compilation error", StatusCompilationError.String())
	assert.Equal(t, "Status(42)", Status(42).String())
	assert.Equal(t, "performance", OptimizationPerformance.String())
	assert.Equal(t, "vulkan", TargetVulkan.String())
}
