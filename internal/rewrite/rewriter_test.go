package rewrite

import (
	"strings"
	"sync"
	"testing"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/layout"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewrite(t *testing.T, format shader.Format, inputs []shader.InputDeclaration, body string) Output {
	t.Helper()
	lay, diags := layout.MapTypes(inputs)
	require.Empty(t, diags)
	return New(Config{Format: format, Layout: lay}).Rewrite(body)
}

func codes(ds []diagnostics.Diagnostic) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

func hasIdent(src, name string) bool {
	for _, tok := range lexer.Tokenize(src) {
		if tok.Kind == lexer.Ident && tok.Text == name {
			return true
		}
	}
	return false
}

func TestBasicColor(t *testing.T) {
	out := rewrite(t, shader.FormatISF,
		[]shader.InputDeclaration{{Name: "brightness", Kind: shader.KindFloat}},
		"\nvoid main(){ vec3 c = vec3(1.0,1.0,1.0) * brightness; gl_FragColor = vec4(c,1.0); }")

	assert.Empty(t, out.Diagnostics)
	assert.Equal(t, shader.StageFragment, out.Stage)
	assert.Equal(t, []string{"main"}, out.EntryPoints)
	assert.Contains(t, out.Source, "@fragment\nfn main(@builtin(position) _fragCoord: vec4<f32>) -> @location(0) vec4<f32> {")
	assert.Contains(t, out.Source, "var c: vec3<f32> = vec3<f32>(1.0, 1.0, 1.0) * uniforms.brightness;")
	assert.Contains(t, out.Source, "fragColor = vec4<f32>(c, 1.0);")
	assert.Contains(t, out.Source, "return fragColor;")
	assert.Contains(t, out.Source, "var<private> fragColor: vec4<f32>;")
	assert.NotContains(t, out.Source, "gl_FragColor")
	assert.NotContains(t, out.Source, "vec3(")
}

func TestBuiltinSubstitutionsRoundTrip(t *testing.T) {
	for name, sub := range identifiers {
		for _, format := range []shader.Format{shader.FormatISF, shader.FormatGLSL} {
			if !sub.formats.has(format) {
				continue
			}
			out := rewrite(t, format, nil, "void main() { float x = 0.0; x = "+name+"; }")
			assert.Contains(t, out.Source, sub.target, "%s in %s", name, format)
			assert.False(t, hasIdent(out.Source, name), "%s survives in %s", name, format)
		}
	}
}

func TestBuiltinsOnlyMatchWholeTokens(t *testing.T) {
	out := rewrite(t, shader.FormatISF, nil,
		"void main(){ float frameCount = 1.0; float TIMEx = TIME; gl_FragColor = vec4(frameCount + TIMEx); }")
	assert.Contains(t, out.Source, "var frameCount: f32 = 1.0;")
	assert.Contains(t, out.Source, "var TIMEx: f32 = uniforms.time;")
	assert.Contains(t, out.Source, "vec4<f32>(frameCount + TIMEx)")
}

func TestISFFormatOnlyBuiltins(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, "void main(){ float TIME = 1.0; gl_FragColor = vec4(TIME); }")
	assert.Contains(t, out.Source, "var TIME: f32 = 1.0;")
	assert.NotContains(t, out.Source, "uniforms.time")
}

func TestAliasesAndStageOutputs(t *testing.T) {
	lay, _ := layout.MapTypes(nil)
	rw := New(Config{
		Format:  shader.FormatGLSL,
		Layout:  lay,
		Aliases: map[string]string{"iTime": "time", "iResolution": "renderSize"},
	})
	out := rw.Rewrite("out vec4 color;\nvoid main() { color = vec4(iTime / iResolution.x); }\n")
	assert.Contains(t, out.Source, "color = vec4<f32>(uniforms.time / uniforms.renderSize.x);")
	assert.Contains(t, out.Source, "-> @location(0) vec4<f32> {")
	assert.Contains(t, out.Source, "return color;")
	assert.Contains(t, out.Source, "var<private> color: vec4<f32>;")
	assert.NotContains(t, out.Source, "out vec4")
}

func TestFragCoordIsFlipped(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil,
		"void main() { vec2 uv = gl_FragCoord.xy; gl_FragColor = vec4(uv, isf_FragNormCoord); }")
	assert.Contains(t, out.Source, "fragCoord = vec4<f32>(_fragCoord.x, uniforms.renderSize.y - _fragCoord.y, _fragCoord.z, _fragCoord.w);")
	assert.Contains(t, out.Source, "normCoord = fragCoord.xy / uniforms.renderSize;")
	assert.Contains(t, out.Source, "var<private> fragCoord: vec4<f32>;")
	assert.Contains(t, out.Source, "var<private> normCoord: vec2<f32>;")
}

func TestTernaryBecomesSelect(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `float pick(float a, float b) { return a > b ? a : b; }
void main() { float m; m = pick(1.0, 2.0) > 1.5 ? 1.0 : 0.0; gl_FragColor = vec4(m); }`)
	assert.Contains(t, out.Source, "fn pick(a: f32, b: f32) -> f32 {")
	assert.Contains(t, out.Source, "return select(b, a, a > b);")
	assert.Contains(t, out.Source, "m = select(0.0, 1.0, pick(1.0, 2.0) > 1.5);")
}

func TestEventInputIsBoolean(t *testing.T) {
	inputs := []shader.InputDeclaration{
		{Name: "bang", Kind: shader.KindEvent},
		{Name: "invert", Kind: shader.KindBool},
	}
	out := rewrite(t, shader.FormatISF, inputs,
		"void main() { gl_FragColor = vec4(0.0); if (bang) { gl_FragColor = vec4(1.0); } if (invert) { gl_FragColor = vec4(0.5); } }")
	assert.Contains(t, out.Source, "(uniforms.bang != 0)")
	assert.Contains(t, out.Source, "(uniforms.invert != 0u)")
	assert.NotContains(t, out.Source, "if (uniforms.bang)")
	assert.Empty(t, out.Diagnostics)
}

func TestAssignedParametersAreCopied(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil,
		"float twice(float x) { x = x * 2.0; return x; }\nvoid main() { gl_FragColor = vec4(twice(1.0)); }")
	assert.Contains(t, out.Source, "fn twice(x_in: f32) -> f32 {\n    var x = x_in;")
}

func TestOutParametersArePointers(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `void fill(out vec4 c) { c = vec4(1.0); }
void bump(inout float v) { v += 1.0; }
void main() { vec4 c; float k = 0.0; fill(c); bump(k); gl_FragColor = c * k; }`)
	src := out.Source
	assert.Contains(t, src, "fn fill(c: ptr<function, vec4<f32>>) {")
	assert.Contains(t, src, "(*c) = vec4<f32>(1.0);")
	assert.Contains(t, src, "fn bump(v: ptr<function, f32>) {")
	assert.Contains(t, src, "(*v) += 1.0;")
	assert.Contains(t, src, "fill(&c);")
	assert.Contains(t, src, "bump(&k);")
	assert.NotContains(t, codes(out.Diagnostics), diagnostics.CodeOutParameter)
}

func TestOutArgumentForwarding(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `void inner(out float o) { o = 1.0; }
void outer(out float o) { inner(o); }
float twice(float x) { inner(x); return x * 2.0; }
void main() { float r; outer(r); gl_FragColor = vec4(twice(r)); }`)
	src := out.Source
	assert.Contains(t, src, "inner(o);")
	assert.Contains(t, src, "fn twice(x_in: f32) -> f32 {\n    var x = x_in;")
	assert.Contains(t, src, "inner(&x);")
	assert.Contains(t, src, "outer(&r);")
	assert.NotContains(t, codes(out.Diagnostics), diagnostics.CodeOutParameter)
}

func TestOutArgumentNotAddressable(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil,
		"void fill(out vec4 c) { c = vec4(1.0); }\nvoid main() { fill(gl_FragColor); }")
	require.NotEmpty(t, out.Diagnostics)
	var found bool
	for _, d := range out.Diagnostics {
		if d.Code == diagnostics.CodeOutParameter {
			found = true
			assert.Equal(t, diagnostics.Error, d.Severity)
		}
	}
	assert.True(t, found)
	assert.Contains(t, out.Source, "fill(&(fragColor));")
}

func TestControlFlow(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `void main() {
    float a = 0.0;
    if (a > 1.0) a = 2.0; else a = 3.0;
    for (int i = 0; i < 4; i++) a += 1.0;
    int n = 0;
    do { n++; } while (n < 3);
    gl_FragColor = vec4(a);
}`)
	src := out.Source
	assert.Contains(t, src, "if (a > 1.0) { a = 2.0; } else { a = 3.0; }")
	assert.Contains(t, src, "for (var i: i32 = 0; i < 4; i++) { a += 1.0; }")
	assert.Contains(t, src, "loop { n++; ")
	assert.Contains(t, src, "continuing { break if !(n < 3); }")
	assert.NotContains(t, codes(out.Diagnostics), diagnostics.CodeUnsupportedSyntax)
}

func TestSwitchClauses(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `void main() {
    int m = 1; float v = 0.0;
    switch (m) { case 0: v = 1.0; break; case 1: case 2: v = 2.0; break; default: v = 3.0; }
    gl_FragColor = vec4(v);
}`)
	assert.Contains(t, out.Source, "switch (m) {")
	assert.Contains(t, out.Source, "case 0: {")
	assert.Contains(t, out.Source, "case 1, 2: {")
	assert.Contains(t, out.Source, "default: {")
	assert.Empty(t, out.Diagnostics)
}

func TestDeclarations(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `// weights
const float PI = 3.14159;
float scale = 2.0;
void main() {
    float a = 1.0, b;
    float w[3] = float[](1.0, 2.0, 3.0);
    float loop = PI;
    gl_FragColor = vec4(a + b + w[0] + loop * scale);
}`)
	src := out.Source
	assert.Contains(t, src, "// weights")
	assert.Contains(t, src, "const PI: f32 = 3.14159;")
	assert.Contains(t, src, "var<private> scale: f32 = 2.0;")
	assert.Contains(t, src, "var a: f32 = 1.0; var b: f32;")
	assert.Contains(t, src, "var w: array<f32, 3> = array<f32, 3>(1.0, 2.0, 3.0);")
	assert.Contains(t, src, "var loop_: f32 = PI;")
	assert.Contains(t, src, "loop_ * scale")
}

func TestFunctionRenames(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `void main() {
    float a = mod(3.0, 2.0);
    float b = atan(1.0, 2.0);
    bvec2 c = lessThan(vec2(1.0), vec2(2.0));
    float d = inversesqrt(4.0) + dFdx(a);
    gl_FragColor = vec4(a, b, d, 1.0F);
}`)
	src := out.Source
	assert.Contains(t, src, "((3.0) - (2.0) * floor((3.0) / (2.0)))")
	assert.Contains(t, src, "atan2(1.0, 2.0)")
	assert.Contains(t, src, "((vec2<f32>(1.0)) < (vec2<f32>(2.0)))")
	assert.Contains(t, src, "inverseSqrt(4.0) + dpdx(a)")
	assert.Contains(t, src, "1.0f)")
}

func TestISFImageMacros(t *testing.T) {
	out := rewrite(t, shader.FormatISF, []shader.InputDeclaration{{Name: "inputImage", Kind: shader.KindImage}}, `void main() {
    vec4 a = IMG_NORM_PIXEL(inputImage, isf_FragNormCoord);
    vec4 b = IMG_PIXEL(inputImage, gl_FragCoord.xy);
    vec4 c = IMG_THIS_PIXEL(inputImage);
    vec2 s = IMG_SIZE(inputImage);
    gl_FragColor = a + b + c + vec4(s, 0.0, 0.0);
}`)
	src := out.Source
	assert.Contains(t, src, "textureSample(inputImage, inputImageSampler, normCoord)")
	assert.Contains(t, src, "textureSample(inputImage, inputImageSampler, (fragCoord.xy) / vec2<f32>(textureDimensions(inputImage)))")
	assert.Contains(t, src, "vec2<f32>(textureDimensions(inputImage))")
	assert.Empty(t, out.Diagnostics)
}

func TestUnknownTextureWarns(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, "void main() { gl_FragColor = texture2D(other, vec2(0.5)); }")
	assert.Contains(t, codes(out.Diagnostics), diagnostics.CodeUnknownTexture)
	assert.Contains(t, out.Source, "textureSample(other, otherSampler, vec2<f32>(0.5))")
}

func TestBoolInputsCompareAgainstZero(t *testing.T) {
	out := rewrite(t, shader.FormatISF, []shader.InputDeclaration{{Name: "invert", Kind: shader.KindBool}},
		"void main() { gl_FragColor = vec4(1.0); if (invert) { gl_FragColor = vec4(0.0); } }")
	assert.Contains(t, out.Source, "if ((uniforms.invert != 0u))")
}

func TestHLSLEntryPoint(t *testing.T) {
	out := rewrite(t, shader.FormatHLSL, []shader.InputDeclaration{
		{Name: "amount", Kind: shader.KindFloat},
		{Name: "source", Kind: shader.KindImage},
	}, `
float4 main(float4 pos : SV_Position, float2 uv : TEXCOORD0) : SV_Target
{
    float4 c = (float4)0.5;
    return source.Sample(linearSampler, uv) * lerp(c, c, amount);
}
`)
	assert.Equal(t, shader.StageFragment, out.Stage)
	assert.Equal(t, []string{"main"}, out.EntryPoints)
	src := out.Source
	assert.Contains(t, src, "@fragment\nfn main(@builtin(position) pos: vec4<f32>, @location(0) uv: vec2<f32>) -> @location(0) vec4<f32>\n{")
	assert.Contains(t, src, "var c: vec4<f32> = vec4<f32>(0.5);")
	assert.Contains(t, src, "return textureSample(source, sourceSampler, uv) * mix(c, c, uniforms.amount);")
}

func TestHLSLCompute(t *testing.T) {
	out := rewrite(t, shader.FormatHLSL, nil, `[numthreads(8, 8, 1)]
void CSMain(uint3 id : SV_DispatchThreadID) { uint x = id.x; }`)
	assert.Equal(t, shader.StageCompute, out.Stage)
	assert.Equal(t, [3]int{8, 8, 1}, out.Workgroup)
	assert.Equal(t, []string{"CSMain"}, out.EntryPoints)
	assert.Contains(t, out.Source, "@compute @workgroup_size(8, 8, 1)\nfn CSMain(@builtin(global_invocation_id) id: vec3<u32>)")
}

func TestGLSLCompute(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `#version 450
layout(local_size_x = 8, local_size_y = 4) in;
void main() { uint x = gl_GlobalInvocationID.x; }
`)
	assert.Equal(t, shader.StageCompute, out.Stage)
	assert.Equal(t, [3]int{8, 4, 1}, out.Workgroup)
	assert.Contains(t, out.Source, "@compute @workgroup_size(8, 4, 1)\nfn main(@builtin(global_invocation_id) _globalId: vec3<u32>) {")
	assert.Contains(t, out.Source, "globalId = _globalId;")
	assert.Contains(t, out.Source, "var x: u32 = globalId.x;")
	assert.NotContains(t, out.Source, "return")
	assert.Contains(t, codes(out.Diagnostics), diagnostics.CodeDirectiveDropped)
}

func TestGLSLVertex(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, `in vec2 position;
out vec2 vUv;
void main() { vUv = position * 0.5 + 0.5; gl_Position = vec4(position, 0.0, 1.0); }
`)
	assert.Equal(t, shader.StageVertex, out.Stage)
	src := out.Source
	assert.Contains(t, src, "struct VertexOutput {\n    @builtin(position) position: vec4<f32>,\n    @location(0) vUv: vec2<f32>,\n}")
	assert.Contains(t, src, "@vertex\nfn main(@location(0) _position: vec2<f32>) -> VertexOutput {")
	assert.Contains(t, src, "position = _position;")
	assert.Contains(t, src, "return VertexOutput(glPosition, vUv);")
}

func TestStageDefaultsToFragment(t *testing.T) {
	out := rewrite(t, shader.FormatGLSL, nil, "float f() { return 1.0; }")
	assert.Equal(t, shader.StageFragment, out.Stage)
	cs := codes(out.Diagnostics)
	assert.Contains(t, cs, diagnostics.CodeStageDefaulted)
	assert.Contains(t, cs, diagnostics.CodeEntryPointMissing)
	assert.Contains(t, out.Source, "fn f() -> f32 {")
}

func TestUnbalancedInputDoesNotPanic(t *testing.T) {
	for _, body := range []string{
		"void main() { if (x > ) { }",
		"void main() { float a = (1.0; }",
		"}}} void main() {",
		"for (;;",
		"switch",
		"do",
	} {
		assert.NotPanics(t, func() { _ = rewrite(t, shader.FormatGLSL, nil, body) }, body)
	}
}

func TestRewriterIsReusable(t *testing.T) {
	lay, _ := layout.MapTypes([]shader.InputDeclaration{{Name: "amount", Kind: shader.KindFloat}})
	rw := New(Config{Format: shader.FormatISF, Layout: lay})
	want := rw.Rewrite("void main() { gl_FragColor = vec4(amount); }").Source

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, rw.Rewrite("void main() { gl_FragColor = vec4(amount); }").Source)
		}()
	}
	wg.Wait()
}

func TestNumberSuffixes(t *testing.T) {
	tests := map[string]string{
		"1.0":   "1.0",
		"1.0F":  "1.0f",
		"2u":    "2u",
		"2U":    "2u",
		"1.5lf": "1.5f",
		"3h":    "3",
		"010":   "8",
		"0xFFu": "0xFFu",
		"0":     "0",
	}
	for in, want := range tests {
		assert.Equal(t, want, number(in), in)
	}
}

func TestConvenienceRewrite(t *testing.T) {
	src, diags := Rewrite("void main() { gl_FragColor = vec4(TIME); }", shader.FormatISF, nil)
	assert.Contains(t, src, "uniforms.time")
	assert.Empty(t, diags)
	assert.True(t, strings.HasPrefix(src, "var<private> fragColor"))
}
