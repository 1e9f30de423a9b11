package frontend

import (
	"regexp"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/registry"
	"github.com/shaderconv/converter/internal/shader"
)

var glslKinds = map[string]shader.InputKind{
	"float":         shader.KindFloat,
	"int":           shader.KindLong,
	"uint":          shader.KindLong,
	"bool":          shader.KindBool,
	"vec2":          shader.KindPoint2D,
	"vec4":          shader.KindColor,
	"sampler2D":     shader.KindImage,
	"sampler2DRect": shader.KindImage,
	"samplerCube":   shader.KindCube,
}

// glslPreserved are uniform types with no input kind that are kept as plain
// Uniforms fields.
var glslPreserved = map[string]string{
	"vec3":   "vec3<f32>",
	"ivec2":  "vec2<i32>",
	"ivec3":  "vec3<i32>",
	"ivec4":  "vec4<i32>",
	"mat2":   "mat2x2<f32>",
	"mat3":   "mat3x3<f32>",
	"mat4":   "mat4x4<f32>",
	"mat2x2": "mat2x2<f32>",
	"mat3x3": "mat3x3<f32>",
	"mat4x4": "mat4x4<f32>",
}

var versionRe = regexp.MustCompile(`^#\s*version\s+(.+?)\s*$`)

type glslFrontEnd struct{}

func init() {
	registry.Default.Register(glslFrontEnd{})
}

func (glslFrontEnd) Format() shader.Format { return shader.FormatGLSL }

// Parse infers inputs from uniform declarations and removes them from the body.
func (glslFrontEnd) Parse(source string) (*shader.Parsed, []diagnostics.Diagnostic, error) {
	var diags []diagnostics.Diagnostic
	p := &shader.Parsed{Format: shader.FormatGLSL, BodyLine: 1}
	toks := lexer.Significant(lexer.Tokenize(source))

	for _, t := range toks {
		if t.Kind != lexer.Directive {
			continue
		}
		if m := versionRe.FindStringSubmatch(t.Text); m != nil && p.Metadata.DeclaredVersion == "" {
			p.Metadata.DeclaredVersion = m[1]
		}
	}

	var removed []span
	for _, st := range topLevel(toks) {
		lo := st.lo
		if toks[lo].Is("layout") && lo+1 <= st.hi && toks[lo+1].Is("(") {
			lo = matching(toks, lo+1) + 1
		}
		if lo > st.hi || !toks[lo].Is("uniform") {
			continue
		}
		removed = append(removed, tokenSpan(toks, st))
		p.Inputs = append(p.Inputs, glslUniform(p, toks, lo+1, st.hi, &diags)...)
	}
	p.Body = blank(source, removed)
	return p, diags, nil
}

// glslUniform handles `uniform [precision] T a, b = x;` and uniform blocks.
func glslUniform(p *shader.Parsed, toks []lexer.Token, lo, hi int, diags *[]diagnostics.Diagnostic) []shader.InputDeclaration {
	for lo < hi && isPrecision(toks[lo].Text) {
		lo++
	}
	if lo >= hi {
		return nil
	}
	typ := toks[lo]
	if lo+1 < hi && toks[lo+1].Is("{") {
		end := matching(toks, lo+1)
		var out []shader.InputDeclaration
		for _, st := range memberStatements(toks, lo+2, end) {
			out = append(out, glslUniform(p, toks, st.lo, st.hi, diags)...)
		}
		if end+1 < hi && toks[end+1].Kind == lexer.Ident {
			inst := toks[end+1]
			*diags = append(*diags, diagnostics.Errorf(diagnostics.CodeUnsupportedDecl,
				"uniform block %s has instance name %s; member accesses through it are not rewritten",
				typ.Text, inst.Text).At(inst.Line, inst.Column, len(inst.Text)).
				WithSuggestion("Declare the block without an instance name"))
		}
		return out
	}
	return typedDeclarators(p, glslKinds, glslPreserved, typ, toks, lo+1, hi, diags)
}

// typedDeclarators turns each declarator of type typ into an inferred input, a
// built-in alias or a preserved uniform. Anything else cannot be read by the
// rewritten body and is an error.
func typedDeclarators(p *shader.Parsed, kinds map[string]shader.InputKind, preserved map[string]string, typ lexer.Token, toks []lexer.Token, lo, hi int, diags *[]diagnostics.Diagnostic) []shader.InputDeclaration {
	var out []shader.InputDeclaration
	kind, known := kinds[typ.Text]
	wgslType, keep := preserved[typ.Text]
	for _, d := range declarators(toks, lo, hi) {
		if field, ok := builtinAliases[d.name.Text]; ok {
			alias(p, d.name, field, diags)
			continue
		}
		switch {
		case known && !d.array:
			out = append(out, inferred(kind, d, diags))
		case keep && !d.array:
			preserve(p, d.name, typ.Text, wgslType, diags)
		default:
			what := typ.Text
			if d.array {
				what += "[]"
			}
			*diags = append(*diags, diagnostics.Errorf(diagnostics.CodeUnsupportedDecl,
				"uniform %s %s has no WGSL uniform equivalent and is dropped", what, d.name.Text).
				At(d.name.Line, d.name.Column, len(d.name.Text)).
				WithSuggestion("Use a scalar, vector, matrix or sampler uniform"))
		}
	}
	return out
}

// memberStatements splits the inside of a block into `;`-terminated members.
func memberStatements(toks []lexer.Token, lo, hi int) []statement {
	var out []statement
	start := lo
	for i := lo; i < hi; i++ {
		if toks[i].Is(";") {
			if i > start {
				out = append(out, statement{start, i})
			}
			start = i + 1
		}
	}
	return out
}

func isPrecision(s string) bool {
	switch s {
	case "highp", "mediump", "lowp":
		return true
	}
	return false
}
