package spirvc

import (
	"io/fs"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gogpu/spirvc/engine"
	"github.com/gogpu/spirvc/engine/wgsl"
	"github.com/gogpu/spirvc/include"
	"github.com/gogpu/spirvc/internal/spvinfo"
)

// ---------------------------------------------------------------------------
// Shader corpus: a textured quad split into per-stage files sharing a
// header, plus a compute kernel.
// ---------------------------------------------------------------------------

var corpus = map[string]string{
	"common/quad.wgsl": `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}
`,
	"quad.vert.wgsl": `#include "common/quad.wgsl"

@vertex
fn main(@builtin(vertex_index) vertexIndex: u32) -> VertexOutput {
    var positions = array<vec2<f32>, 6>(
        vec2<f32>(-1.0,  1.0),
        vec2<f32>(-1.0, -1.0),
        vec2<f32>( 1.0, -1.0),
        vec2<f32>(-1.0,  1.0),
        vec2<f32>( 1.0, -1.0),
        vec2<f32>( 1.0,  1.0)
    );
    var uvs = array<vec2<f32>, 6>(
        vec2<f32>(0.0, 0.0),
        vec2<f32>(0.0, 1.0),
        vec2<f32>(1.0, 1.0),
        vec2<f32>(0.0, 0.0),
        vec2<f32>(1.0, 1.0),
        vec2<f32>(1.0, 0.0)
    );

    var output: VertexOutput;
    output.position = vec4<f32>(positions[vertexIndex], 0.0, 1.0);
    output.uv = uvs[vertexIndex];
    return output;
}
`,
	"quad.frag.wgsl": `#include "common/quad.wgsl"

@group(0) @binding(0) var texSampler: sampler;
@group(0) @binding(1) var tex: texture_2d<f32>;

@fragment
fn main(input: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(tex, texSampler, input.uv);
}
`,
	"scale.comp.wgsl": `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(32, 1, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    data[gid.x] = data[gid.x] * 2.0;
}
`,
}

var corpusModels = map[Stage]string{
	StageVertex:   "Vertex",
	StageFragment: "Fragment",
	StageCompute:  "GLCompute",
}

// corpusFiles serves the corpus from memory under root.
func corpusFiles(root string) include.FileReader {
	return include.FileReaderFunc(func(name string) ([]byte, error) {
		rel, err := filepath.Rel(root, name)
		if err == nil {
			if src, ok := corpus[filepath.ToSlash(rel)]; ok {
				return []byte(src), nil
			}
		}
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	})
}

func corpusInputs() []string {
	var names []string
	for name := range corpus {
		if _, err := StageFromPath(name); err == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Test Runner
// ---------------------------------------------------------------------------

func TestShaderCorpus(t *testing.T) {
	targets := []struct {
		name    string
		env     engine.TargetEnv
		version engine.EnvVersion
		spirv   spvinfo.Version
	}{
		{"vulkan1.0", engine.TargetVulkan, engine.Vulkan1_0, spvinfo.Version{Major: 1, Minor: 0}},
		{"vulkan1.1", engine.TargetVulkan, engine.Vulkan1_1, spvinfo.Version{Major: 1, Minor: 3}},
		{"vulkan1.2", engine.TargetVulkan, engine.Vulkan1_2, spvinfo.Version{Major: 1, Minor: 5}},
		{"vulkan1.3", engine.TargetVulkan, engine.Vulkan1_3, spvinfo.Version{Major: 1, Minor: 6}},
		{"opengl4.5", engine.TargetOpenGL, engine.OpenGL4_5, spvinfo.Version{Major: 1, Minor: 0}},
	}

	root := filepath.Join(string(filepath.Separator), "corpus")
	for _, tt := range targets {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(wgsl.New(), Config{
				TargetEnv:     tt.env,
				TargetVersion: tt.version,
				Files:         corpusFiles(root),
			})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer c.Close()

			for _, name := range corpusInputs() {
				t.Run(name, func(t *testing.T) {
					stage, _ := StageFromPath(name)
					res, err := c.CompileFromLocation(filepath.Join(root, name), stage)
					if err != nil {
						t.Fatalf("compile failed: %v", err)
					}
					defer res.Release()

					code, err := res.Bytes()
					if err != nil {
						t.Fatalf("Bytes failed: %v", err)
					}
					m, err := spvinfo.Parse(code)
					if err != nil {
						t.Fatalf("generated SPIR-V does not parse: %v", err)
					}
					if m.Version != tt.spirv {
						t.Errorf("SPIR-V version = %s, want %s", m.Version, tt.spirv)
					}
					ep, ok := m.EntryPoint(EntryPoint)
					if !ok {
						t.Fatalf("no %q entry point in %d entry points", EntryPoint, len(m.EntryPoints))
					}
					if ep.Model != corpusModels[stage] {
						t.Errorf("execution model = %s, want %s", ep.Model, corpusModels[stage])
					}
					if stage == StageCompute && ep.LocalSize != [3]uint32{32, 1, 1} {
						t.Errorf("local size = %v, want [32 1 1]", ep.LocalSize)
					}
					t.Logf("Generated %d bytes", len(code))
				})
			}
		})
	}
}
