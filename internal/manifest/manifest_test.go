package manifest

import (
	"testing"

	"github.com/shaderconv/converter/internal/layout"
	"github.com/shaderconv/converter/internal/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func ptr(f float64) *float64 { return &f }

func sample(t *testing.T) Source {
	t.Helper()
	p := &shader.Parsed{
		Format: shader.FormatISF,
		Metadata: shader.Metadata{
			Name:        "Demo",
			Description: "A demo",
			Credit:      "someone",
			Categories:  []string{"Generator", "Color"},
			Vsn:         "1.0",
		},
		Inputs: []shader.InputDeclaration{
			{Name: "brightness", Kind: shader.KindFloat, Default: cty.NumberFloatVal(0.5), Min: ptr(0), Max: ptr(2)},
			{Name: "tint", Kind: shader.KindColor, Default: cty.ListVal([]cty.Value{
				cty.NumberIntVal(1), cty.NumberIntVal(0), cty.NumberIntVal(0), cty.NumberIntVal(1),
			})},
			{Name: "mode", Kind: shader.KindLong, Values: []int64{0, 1}, Labels: []string{"Off", "On"}, Label: "Mode"},
			{Name: "inputImage", Kind: shader.KindImage},
		},
		Passes: []shader.Pass{{Target: "buffer", Persistent: true, Width: "$WIDTH/2"}, {}},
	}
	lay, diags := layout.Build(p)
	require.Empty(t, diags)
	return Source{Name: "Demo", Parsed: p, Layout: lay, Stage: shader.StageFragment, EntryPoints: []string{"main"}}
}

func TestBytes(t *testing.T) {
	out := string(New(sample(t)).Bytes())

	assert.Contains(t, out, `shader "Demo" {`)
	assert.Contains(t, out, `format`)
	assert.Contains(t, out, `"fragment"`)
	assert.Contains(t, out, `input "brightness" {`)
	assert.Contains(t, out, `input "inputImage" {`)
	assert.Contains(t, out, `builtin "renderSize" {`)
	assert.Contains(t, out, `texture "buffer" {`)
	assert.Contains(t, out, `"$WIDTH/2"`)
	assert.NotContains(t, out, "workgroup_size")
}

func TestRoundTrip(t *testing.T) {
	src := sample(t)
	m, err := Decode("demo.hcl", New(src).Bytes())
	require.NoError(t, err)

	s := m.Shader
	assert.Equal(t, "Demo", s.Name)
	assert.Equal(t, "A demo", s.Description)
	assert.Equal(t, []string{"Generator", "Color"}, s.Categories)
	assert.Equal(t, "1.0", s.Version)
	assert.Equal(t, "isf", s.Format)
	assert.Equal(t, "fragment", s.Stage)
	assert.Equal(t, []string{"main"}, s.EntryPoints)
	assert.Equal(t, src.Layout.Size, s.UniformSize)

	require.Len(t, s.Inputs, 4)
	bright := s.Inputs[0]
	assert.Equal(t, "float", bright.Kind)
	assert.Equal(t, "brightness", bright.Field)
	assert.Equal(t, "f32", bright.Type)
	require.NotNil(t, bright.Offset)
	assert.Equal(t, 0, *bright.Offset)
	assert.Equal(t, 0.5, shader.GoValue(bright.Default))
	assert.Equal(t, ptr(0), bright.Min)
	assert.Equal(t, ptr(2), bright.Max)

	assert.Equal(t, []any{1.0, 0.0, 0.0, 1.0}, shader.GoValue(s.Inputs[1].Default))
	assert.Equal(t, []int64{0, 1}, s.Inputs[2].Values)
	assert.Equal(t, []string{"Off", "On"}, s.Inputs[2].Labels)
	assert.Equal(t, "Mode", s.Inputs[2].Label)
	assert.True(t, s.Inputs[2].Default.IsNull())

	img := s.Inputs[3]
	assert.Equal(t, "inputImage", img.Field)
	assert.Equal(t, "texture_2d<f32>", img.Type)
	assert.Nil(t, img.Offset)

	assert.Len(t, s.Builtins, len(layout.Builtins))
	require.Len(t, s.Textures, 2)
	assert.Equal(t, Texture{
		Name: "inputImage", Source: "inputImage", Origin: "input", Type: "texture_2d<f32>",
		Binding: 1, Sampler: "inputImageSampler", SamplerBinding: 2,
	}, s.Textures[0])
	assert.Equal(t, "pass", s.Textures[1].Origin)

	require.Len(t, s.Passes, 2)
	assert.Equal(t, Pass{Target: "buffer", Persistent: true, Width: "$WIDTH/2"}, s.Passes[0])
	assert.Equal(t, Pass{}, s.Passes[1])
}

func TestPreservedUniforms(t *testing.T) {
	p := &shader.Parsed{
		Format:    shader.FormatGLSL,
		Inputs:    []shader.InputDeclaration{{Name: "speed", Kind: shader.KindFloat}},
		Preserved: []shader.Uniform{{Name: "mvp", Type: "mat4x4<f32>"}},
	}
	lay, diags := layout.Build(p)
	require.Empty(t, diags)
	src := Source{Name: "mesh", Parsed: p, Layout: lay, Stage: shader.StageVertex}

	out := string(New(src).Bytes())
	assert.Contains(t, out, `uniform "mvp" {`)

	m, err := Decode("mesh.hcl", []byte(out))
	require.NoError(t, err)
	require.Len(t, m.Shader.Inputs, 1)
	assert.Equal(t, []Uniform{{Name: "mvp", Source: "mvp", Type: "mat4x4<f32>", Offset: 16}}, m.Shader.Uniforms)
}

func TestComputeWorkgroup(t *testing.T) {
	src := Source{
		Name:      "blur",
		Parsed:    &shader.Parsed{Format: shader.FormatHLSL},
		Stage:     shader.StageCompute,
		Workgroup: [3]int{8, 8, 1},
	}
	m, err := Decode("blur.hcl", New(src).Bytes())
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8, 1}, m.Shader.WorkgroupSize)
	assert.Equal(t, "compute", m.Shader.Stage)
	assert.Equal(t, "hlsl", m.Shader.Format)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("bad.hcl", []byte(`shader "x" { stage = }`))
	assert.Error(t, err)
}
