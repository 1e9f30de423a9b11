package frontend

import (
	"strings"
	"testing"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/registry"
	"github.com/shaderconv/converter/internal/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, f shader.Format, src string) (*shader.Parsed, []diagnostics.Diagnostic, error) {
	t.Helper()
	fe, ok := registry.Default.Get(f)
	require.True(t, ok, "front end for %s registered", f)
	return fe.Parse(src)
}

func codesOf(ds []diagnostics.Diagnostic) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

const basicColor = `/*{"NAME":"Basic Color","INPUTS":[{"NAME":"brightness","TYPE":"float","DEFAULT":1.0,"MIN":0.0,"MAX":2.0}]}*/
void main(){ vec3 c = vec3(1.0,1.0,1.0) * brightness; gl_FragColor = vec4(c,1.0); }`

func TestISFHeader(t *testing.T) {
	p, diags, err := parse(t, shader.FormatISF, basicColor)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "Basic Color", p.Metadata.Name)
	require.Len(t, p.Inputs, 1)
	in := p.Inputs[0]
	assert.Equal(t, "brightness", in.Name)
	assert.Equal(t, shader.KindFloat, in.Kind)
	require.NotNil(t, in.Min)
	require.NotNil(t, in.Max)
	assert.Equal(t, 0.0, *in.Min)
	assert.Equal(t, 2.0, *in.Max)
	assert.Equal(t, 1.0, shader.GoValue(in.Default))
	require.NotNil(t, in.Location)
	assert.Equal(t, 1, in.Location.Line)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(p.Body), "void main()"))
	assert.Equal(t, 1, p.BodyLine)
}

func TestISFMalformedHeader(t *testing.T) {
	p, diags, err := parse(t, shader.FormatISF, `/*{"NAME": }*/`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeader)
	assert.Nil(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.Error, diags[0].Severity)
	assert.Equal(t, diagnostics.CodeHeaderJSON, diags[0].Code)
}

func TestISFMissingHeader(t *testing.T) {
	src := "void main(){ gl_FragColor = vec4(1.0); }"
	p, diags, err := parse(t, shader.FormatISF, src)
	require.NoError(t, err)
	assert.Equal(t, []string{diagnostics.CodeHeaderMissing}, codesOf(diags))
	assert.Equal(t, diagnostics.Info, diags[0].Severity)
	assert.Empty(t, p.Inputs)
	assert.Empty(t, p.Metadata.Name)
	assert.Equal(t, src, p.Body)
}

func TestISFAmbiguousDelimiters(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"close before open", "// }*/\n/*{\"NAME\":\"x\"}*/\nvoid main(){}"},
		{"second header", "/*{\"NAME\":\"x\"}*/\n/*{\"NAME\":\"y\"}*/\nvoid main(){}"},
		{"junk before close", "/*{\"NAME\":\"x\"} trailing */\nvoid main(){}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, diags, err := parse(t, shader.FormatISF, tt.src)
			require.NoError(t, err)
			assert.Equal(t, "x", p.Metadata.Name)
			assert.Contains(t, codesOf(diags), diagnostics.CodeHeaderAmbiguous)
		})
	}
}

func TestISFNeverPanicsOnBrokenDelimiters(t *testing.T) {
	for _, src := range []string{"/*{", "/*{ {{ }", "}*/", "/*{\"a\":\"}*/\"", "/*{}*/", "/*   {  } */"} {
		assert.NotPanics(t, func() { _, _, _ = parse(t, shader.FormatISF, src) }, src)
	}
}

func TestISFInputs(t *testing.T) {
	src := `/*{
  "DESCRIPTION": "demo",
  "CREDIT": "someone",
  "CATEGORIES": ["Color", "Demo"],
  "ISFVSN": "2",
  "INPUTS": [
    {"NAME": "inputImage", "TYPE": "image"},
    {"NAME": "tint", "TYPE": "color", "DEFAULT": [1.0, 0.5, 0.0, 1.0]},
    {"NAME": "center", "TYPE": "point2D", "DEFAULT": [0, 0], "MIN": [0, 0], "MAX": [1, 1]},
    {"NAME": "mode", "TYPE": "long", "VALUES": [0, 1, 2], "LABELS": ["a", "b", "c"], "DEFAULT": 1},
    {"NAME": "invert", "TYPE": "bool", "DEFAULT": 0},
    {"NAME": "strange", "TYPE": "matrix"},
    {"TYPE": "float"}
  ],
  "PASSES": [{"TARGET": "bufferA", "PERSISTENT": true}, {}],
  "IMPORTED": {"noise": {"PATH": "noise.png"}}
}*/
void main() {}`
	p, diags, err := parse(t, shader.FormatISF, src)
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Metadata.Description)
	assert.Equal(t, []string{"Color", "Demo"}, p.Metadata.Categories)
	assert.Equal(t, "2", p.Metadata.DeclaredVersion)

	names := make([]string, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"inputImage", "tint", "center", "mode", "invert", "strange"}, names)
	assert.Equal(t, shader.KindFloat, p.Inputs[5].Kind)
	assert.Equal(t, []int64{0, 1, 2}, p.Inputs[3].Values)
	assert.False(t, p.Inputs[4].Default.True())
	assert.Nil(t, p.Inputs[2].Min)

	codes := codesOf(diags)
	assert.Contains(t, codes, diagnostics.CodeUnknownInputType)
	assert.Contains(t, codes, diagnostics.CodeInputInvalid)
	assert.Contains(t, codes, diagnostics.CodeBoundIgnored)
	assert.Contains(t, codes, diagnostics.CodeMultipass)

	require.Len(t, p.Passes, 2)
	assert.Equal(t, "bufferA", p.Passes[0].Target)
	assert.True(t, p.Passes[0].Persistent)
	assert.Equal(t, []shader.ImportedImage{{Name: "noise", Path: "noise.png"}}, p.Imported)
	assert.Equal(t, 17, p.BodyLine)
}

func TestISFWrongFieldType(t *testing.T) {
	p, diags, err := parse(t, shader.FormatISF, `/*{"NAME": 5, "CATEGORIES": "x", "INPUTS": {}}*/ void main(){}`)
	require.NoError(t, err)
	assert.Equal(t, "5", p.Metadata.Name)
	assert.Equal(t, []string{diagnostics.CodeHeaderField, diagnostics.CodeHeaderField}, codesOf(diags))
}

func TestGLSLUniforms(t *testing.T) {
	src := `#version 330 core
precision mediump float;
uniform float speed = 2.0;
uniform vec2 center, offset;
layout(std140) uniform Params { vec4 tint; bool invert; };
uniform sampler2D tex;
uniform float iTime;
uniform vec3 iResolution;
uniform mat4 transform;
out vec4 fragColor;
void main() { fragColor = texture(tex, gl_FragCoord.xy / iResolution.xy) * speed; }
`
	p, diags, err := parse(t, shader.FormatGLSL, src)
	require.NoError(t, err)
	assert.Equal(t, "330 core", p.Metadata.DeclaredVersion)

	var names []string
	for _, in := range p.Inputs {
		names = append(names, in.Name)
		assert.True(t, in.Inferred)
	}
	assert.Equal(t, []string{"speed", "center", "offset", "tint", "invert", "tex"}, names)
	assert.Equal(t, 2.0, shader.GoValue(p.Inputs[0].Default))
	assert.Equal(t, shader.KindImage, p.Inputs[5].Kind)
	assert.Equal(t, map[string]string{"iTime": "time", "iResolution": "renderSize"}, p.Aliases)

	codes := codesOf(diags)
	inferred := 0
	for _, c := range codes {
		if c == diagnostics.CodeInputInferred {
			inferred++
		}
	}
	assert.Equal(t, 6, inferred)
	assert.Contains(t, codes, diagnostics.CodeBuiltinAlias)
	assert.Contains(t, codes, diagnostics.CodePreservedUniform)
	assert.NotContains(t, codes, diagnostics.CodeUnsupportedDecl)
	require.Len(t, p.Preserved, 1)
	assert.Equal(t, "transform", p.Preserved[0].Name)
	assert.Equal(t, "mat4x4<f32>", p.Preserved[0].Type)
	assert.Equal(t, 9, p.Preserved[0].Location.Line)

	assert.NotContains(t, p.Body, "uniform")
	assert.Contains(t, p.Body, "out vec4 fragColor;")
	assert.Equal(t, strings.Count(src, "\n"), strings.Count(p.Body, "\n"))
}

func TestHLSLDeclarations(t *testing.T) {
	src := `cbuffer Params : register(b0)
{
    float amount;
    float4 tint;
    float time;
};
Texture2D<float4> source : register(t0);
TextureCube env;
SamplerState linearSampler : register(s0);
static const float PI = 3.14159;

float4 main(float4 pos : SV_Position, float2 uv : TEXCOORD0) : SV_Target
{
    return source.Sample(linearSampler, uv) * tint * amount;
}
`
	p, diags, err := parse(t, shader.FormatHLSL, src)
	require.NoError(t, err)
	var names []string
	for _, in := range p.Inputs {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"amount", "tint", "source", "env"}, names)
	assert.Equal(t, shader.KindColor, p.Inputs[1].Kind)
	assert.Equal(t, shader.KindCube, p.Inputs[3].Kind)
	assert.Equal(t, "time", p.Aliases["time"])
	assert.Contains(t, codesOf(diags), diagnostics.CodeUnsupportedDecl)
	assert.NotContains(t, p.Body, "cbuffer")
	assert.NotContains(t, p.Body, "SamplerState")
	assert.Contains(t, p.Body, "static const float PI")
}

func TestGLSLUnreadableUniformsAreErrors(t *testing.T) {
	src := `uniform float weights[4];
uniform Light { vec4 color; } light;
uniform sampler3D volume;
void main() { gl_FragColor = light.color * weights[0]; }
`
	p, diags, err := parse(t, shader.FormatGLSL, src)
	require.NoError(t, err)

	var errs []diagnostics.Diagnostic
	for _, d := range diags {
		if d.Severity == diagnostics.Error {
			errs = append(errs, d)
		}
	}
	require.Len(t, errs, 3)
	for _, d := range errs {
		assert.Equal(t, diagnostics.CodeUnsupportedDecl, d.Code)
	}
	assert.Equal(t, 1, errs[0].Location.Line)
	require.Len(t, p.Inputs, 1)
	assert.Equal(t, "color", p.Inputs[0].Name)
	assert.Empty(t, p.Preserved)
}

func TestHLSLImplicitGlobals(t *testing.T) {
	src := `float gain;
extern float2 offset = float2(0.5, 0.5);
float time;
float4x4 world;
static float scratch;
const float limit = 1.0;
groupshared float cache[64];
float helper(float x);

float4 main(float2 uv : TEXCOORD0) : SV_Target
{
    return float4(uv + offset, gain * time, limit);
}
`
	p, diags, err := parse(t, shader.FormatHLSL, src)
	require.NoError(t, err)

	var names []string
	for _, in := range p.Inputs {
		names = append(names, in.Name)
		assert.True(t, in.Inferred)
	}
	assert.Equal(t, []string{"gain", "offset"}, names)
	assert.Equal(t, shader.KindPoint2D, p.Inputs[1].Kind)
	assert.Equal(t, []any{0.5, 0.5}, shader.GoValue(p.Inputs[1].Default))
	assert.Equal(t, map[string]string{"time": "time"}, p.Aliases)
	require.Len(t, p.Preserved, 1)
	assert.Equal(t, "mat4x4<f32>", p.Preserved[0].Type)

	codes := codesOf(diags)
	assert.Contains(t, codes, diagnostics.CodeInputInferred)
	assert.Contains(t, codes, diagnostics.CodeBuiltinAlias)
	assert.NotContains(t, codes, diagnostics.CodeUnsupportedDecl)

	assert.NotContains(t, p.Body, "float gain;")
	assert.NotContains(t, p.Body, "float4x4 world;")
	assert.Contains(t, p.Body, "static float scratch;")
	assert.Contains(t, p.Body, "const float limit = 1.0;")
	assert.Contains(t, p.Body, "groupshared float cache[64];")
	assert.Contains(t, p.Body, "float helper(float x);")
	assert.Equal(t, strings.Count(src, "\n"), strings.Count(p.Body, "\n"))
}
