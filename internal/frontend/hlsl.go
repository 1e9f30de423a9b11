package frontend

import (
	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/registry"
	"github.com/shaderconv/converter/internal/shader"
)

var hlslKinds = map[string]shader.InputKind{
	"float":  shader.KindFloat,
	"half":   shader.KindFloat,
	"int":    shader.KindLong,
	"uint":   shader.KindLong,
	"bool":   shader.KindBool,
	"float2": shader.KindPoint2D,
	"half2":  shader.KindPoint2D,
	"float4": shader.KindColor,
	"half4":  shader.KindColor,
}

var hlslPreserved = map[string]string{
	"float3":   "vec3<f32>",
	"half3":    "vec3<f32>",
	"int2":     "vec2<i32>",
	"int3":     "vec3<i32>",
	"int4":     "vec4<i32>",
	"float2x2": "mat2x2<f32>",
	"float3x3": "mat3x3<f32>",
	"float4x4": "mat4x4<f32>",
}

var hlslTextures = map[string]shader.InputKind{
	"Texture2D":   shader.KindImage,
	"TextureCube": shader.KindCube,
}

type hlslFrontEnd struct{}

func init() {
	registry.Default.Register(hlslFrontEnd{})
}

func (hlslFrontEnd) Format() shader.Format { return shader.FormatHLSL }

// Parse infers inputs from cbuffer members, uniform globals and texture
// globals. Globals that are neither static nor const live in $Globals and are
// uniforms too. Sampler states are dropped since every texture gets its own
// sampler.
func (hlslFrontEnd) Parse(source string) (*shader.Parsed, []diagnostics.Diagnostic, error) {
	var diags []diagnostics.Diagnostic
	p := &shader.Parsed{Format: shader.FormatHLSL, BodyLine: 1}
	toks := lexer.Significant(lexer.Tokenize(source))

	var removed []span
	for _, st := range topLevel(toks) {
		first := toks[st.lo]
		texKind, isTexture := hlslTextures[first.Text]
		switch {
		case first.Is("cbuffer") || first.Is("tbuffer"):
			removed = append(removed, tokenSpan(toks, st))
			open := st.lo
			for open <= st.hi && !toks[open].Is("{") {
				open++
			}
			if open > st.hi {
				continue
			}
			end := matching(toks, open)
			for _, m := range memberStatements(toks, open+1, end) {
				lo := m.lo
				for lo < m.hi && isHLSLModifier(toks[lo].Text) {
					lo++
				}
				p.Inputs = append(p.Inputs, typedDeclarators(p, hlslKinds, hlslPreserved, toks[lo], toks, lo+1, m.hi, &diags)...)
			}
		case first.Is("uniform"):
			removed = append(removed, tokenSpan(toks, st))
			lo := st.lo + 1
			for lo < st.hi && isHLSLModifier(toks[lo].Text) {
				lo++
			}
			if kind, ok := hlslTextures[toks[lo].Text]; ok {
				p.Inputs = append(p.Inputs, hlslTexture(kind, toks, lo, st.hi, &diags)...)
				continue
			}
			p.Inputs = append(p.Inputs, typedDeclarators(p, hlslKinds, hlslPreserved, toks[lo], toks, lo+1, st.hi, &diags)...)
		case isTexture:
			removed = append(removed, tokenSpan(toks, st))
			p.Inputs = append(p.Inputs, hlslTexture(texKind, toks, st.lo, st.hi, &diags)...)
		case first.Is("SamplerState") || first.Is("SamplerComparisonState"):
			removed = append(removed, tokenSpan(toks, st))
			diags = append(diags, diagnostics.Infof(diagnostics.CodeUnsupportedDecl,
				"%s declaration removed; each texture is bound with its own sampler", first.Text).
				At(first.Line, first.Column, len(first.Text)))
		default:
			if lo, ok := implicitUniform(toks, st); ok {
				removed = append(removed, tokenSpan(toks, st))
				p.Inputs = append(p.Inputs, typedDeclarators(p, hlslKinds, hlslPreserved, toks[lo], toks, lo+1, st.hi, &diags)...)
			}
		}
	}
	p.Body = blank(source, removed)
	return p, diags, nil
}

// hlslTexture handles `Texture2D[<float4>] name [: register(t0)];`.
func hlslTexture(kind shader.InputKind, toks []lexer.Token, lo, hi int, diags *[]diagnostics.Diagnostic) []shader.InputDeclaration {
	i := lo + 1
	if i < hi && toks[i].Is("<") {
		i = matching(toks, i) + 1
	}
	var out []shader.InputDeclaration
	for _, d := range declarators(toks, i, hi) {
		out = append(out, inferred(kind, d, diags))
	}
	return out
}

// implicitUniform reports whether st is a global variable of a buffer type
// without static, const or groupshared, and returns the index of its type.
func implicitUniform(toks []lexer.Token, st statement) (int, bool) {
	lo := st.lo
	for ; lo < st.hi && toks[lo].Kind == lexer.Ident; lo++ {
		t := toks[lo].Text
		if t == "static" || t == "const" || t == "groupshared" || t == "typedef" || t == "struct" {
			return 0, false
		}
		if t != "extern" && !isHLSLModifier(t) {
			break
		}
	}
	if lo+1 > st.hi || !toks[st.hi].Is(";") {
		return 0, false
	}
	_, known := hlslKinds[toks[lo].Text]
	_, keep := hlslPreserved[toks[lo].Text]
	if !known && !keep {
		return 0, false
	}
	name := lo + 1
	if toks[name].Kind != lexer.Ident || (name+1 <= st.hi && toks[name+1].Is("(")) {
		return 0, false
	}
	return lo, true
}

func isHLSLModifier(s string) bool {
	switch s {
	case "row_major", "column_major", "precise", "const", "uniform", "static", "linear", "nointerpolation":
		return true
	}
	return false
}
