package layout

import "strings"

// wgslReserved holds WGSL keywords, predeclared types and reserved words that
// cannot be used as identifiers.
var wgslReserved = map[string]bool{
	"alias": true, "break": true, "case": true, "const": true, "const_assert": true,
	"continue": true, "continuing": true, "default": true, "diagnostic": true,
	"discard": true, "else": true, "enable": true, "false": true, "fn": true,
	"for": true, "if": true, "let": true, "loop": true, "override": true,
	"requires": true, "return": true, "struct": true, "switch": true, "true": true,
	"var": true, "while": true,
	"bool": true, "f16": true, "f32": true, "i32": true, "u32": true,
	"vec2": true, "vec3": true, "vec4": true, "array": true, "atomic": true,
	"ptr": true, "sampler": true, "sampler_comparison": true, "texture_2d": true,
	"texture_cube": true, "mat2x2": true, "mat3x3": true, "mat4x4": true,
	"uniform": true, "storage": true, "private": true, "function": true,
	"workgroup": true, "read": true, "write": true, "read_write": true,
	"asm": true, "do": true, "enum": true, "export": true, "extern": true,
	"goto": true, "handle": true, "import": true, "mod": true, "module": true,
	"mut": true, "namespace": true, "new": true, "null": true, "package": true,
	"public": true, "self": true, "static": true, "super": true, "this": true,
	"typedef": true, "union": true, "unless": true, "using": true, "void": true,
	"with": true, "yield": true,
	// names the generated module declares itself
	"uniforms": true, "Uniforms": true, "main": true,
}

// Sanitize converts an input name to a WGSL-safe identifier: every character
// outside [A-Za-z0-9_] becomes '_', a leading digit gets a '_' prefix and a
// reserved word gets a '_' suffix. Sanitize is idempotent.
func Sanitize(name string) string {
	if name == "" {
		return "_0"
	}
	var sb strings.Builder
	sb.Grow(len(name) + 1)
	if name[0] >= '0' && name[0] <= '9' {
		sb.WriteByte('_')
	}
	for _, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	// WGSL rejects identifiers starting with "__" and the lone "_".
	if strings.HasPrefix(out, "__") {
		out = "_" + strings.TrimLeft(out, "_")
	}
	if out == "_" {
		out = "_0"
	}
	if wgslReserved[out] {
		out += "_"
	}
	return out
}

// SamplerName is the sampler bound next to texture tex.
func SamplerName(tex string) string {
	return tex + "Sampler"
}
