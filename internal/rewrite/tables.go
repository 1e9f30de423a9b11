package rewrite

import (
	"fmt"
	"strings"

	"github.com/shaderconv/converter/internal/shader"
)

// formats is a set of source formats a table entry applies to.
type formats uint8

const (
	fISF formats = 1 << iota
	fGLSL
	fHLSL

	fGLSLFamily = fISF | fGLSL
)

func (f formats) has(format shader.Format) bool {
	switch format {
	case shader.FormatISF:
		return f&fISF != 0
	case shader.FormatGLSL:
		return f&fGLSL != 0
	case shader.FormatHLSL:
		return f&fHLSL != 0
	}
	return false
}

// mirror is a stage input or output that GLSL exposes as a global. It is
// declared as a module-scope private variable and copied from or returned by
// the wrapped entry point.
type mirror struct {
	name    string
	typ     string
	builtin string // WGSL builtin the entry parameter binds, if any
	param   string // type of the entry parameter when it differs from typ
}

var mirrors = map[string]mirror{
	"fragColor":     {name: "fragColor", typ: "vec4<f32>"},
	"fragCoord":     {name: "fragCoord", typ: "vec4<f32>", builtin: "position"},
	"normCoord":     {name: "normCoord", typ: "vec2<f32>"},
	"frontFacing":   {name: "frontFacing", typ: "bool", builtin: "front_facing"},
	"glPosition":    {name: "glPosition", typ: "vec4<f32>"},
	"pointSize":     {name: "pointSize", typ: "f32"},
	"vertexIndex":   {name: "vertexIndex", typ: "i32", builtin: "vertex_index", param: "u32"},
	"instanceIndex": {name: "instanceIndex", typ: "i32", builtin: "instance_index", param: "u32"},
	"globalId":      {name: "globalId", typ: "vec3<u32>", builtin: "global_invocation_id"},
	"localId":       {name: "localId", typ: "vec3<u32>", builtin: "local_invocation_id"},
	"workgroupId":   {name: "workgroupId", typ: "vec3<u32>", builtin: "workgroup_id"},
	"localIndex":    {name: "localIndex", typ: "u32", builtin: "local_invocation_index"},
	"numWorkgroups": {name: "numWorkgroups", typ: "vec3<u32>", builtin: "num_workgroups"},
}

// substitution rewrites one source identifier.
type substitution struct {
	target  string
	formats formats
	mirror  string // mirror marked as used
	// warn is set for built-ins that have no faithful equivalent.
	warn string
}

// identifiers is the single substitution table for built-in variables. Entries
// are looked up per token, so identifiers that merely contain a built-in name
// are never touched.
var identifiers = map[string]substitution{
	"TIME":                    {target: "uniforms.time", formats: fISF},
	"TIMEDELTA":               {target: "uniforms.timeDelta", formats: fISF},
	"FRAMEINDEX":              {target: "uniforms.frame", formats: fISF},
	"RENDERSIZE":              {target: "uniforms.renderSize", formats: fISF},
	"PASSINDEX":               {target: "0", formats: fISF, warn: "PASSINDEX is always 0; passes are not split"},
	"DATE":                    {target: "vec4<f32>(0.0)", formats: fISF, warn: "DATE has no uniform equivalent and is zero"},
	"isf_FragNormCoord":       {target: "normCoord", formats: fGLSLFamily, mirror: "normCoord"},
	"vv_FragNormCoord":        {target: "normCoord", formats: fGLSLFamily, mirror: "normCoord"},
	"gl_FragColor":            {target: "fragColor", formats: fGLSLFamily, mirror: "fragColor"},
	"gl_FragCoord":            {target: "fragCoord", formats: fGLSLFamily, mirror: "fragCoord"},
	"gl_FrontFacing":          {target: "frontFacing", formats: fGLSLFamily, mirror: "frontFacing"},
	"gl_Position":             {target: "glPosition", formats: fGLSLFamily, mirror: "glPosition"},
	"gl_PointSize":            {target: "pointSize", formats: fGLSLFamily, mirror: "pointSize", warn: "gl_PointSize is ignored; WGSL points are always one pixel"},
	"gl_VertexID":             {target: "vertexIndex", formats: fGLSLFamily, mirror: "vertexIndex"},
	"gl_VertexIndex":          {target: "vertexIndex", formats: fGLSLFamily, mirror: "vertexIndex"},
	"gl_InstanceID":           {target: "instanceIndex", formats: fGLSLFamily, mirror: "instanceIndex"},
	"gl_InstanceIndex":        {target: "instanceIndex", formats: fGLSLFamily, mirror: "instanceIndex"},
	"gl_GlobalInvocationID":   {target: "globalId", formats: fGLSLFamily, mirror: "globalId"},
	"gl_LocalInvocationID":    {target: "localId", formats: fGLSLFamily, mirror: "localId"},
	"gl_WorkGroupID":          {target: "workgroupId", formats: fGLSLFamily, mirror: "workgroupId"},
	"gl_LocalInvocationIndex": {target: "localIndex", formats: fGLSLFamily, mirror: "localIndex"},
	"gl_NumWorkGroups":        {target: "numWorkgroups", formats: fGLSLFamily, mirror: "numWorkgroups"},
}

// renames are function names that only change spelling.
var renames = map[string]struct {
	target  string
	formats formats
}{
	"inversesqrt": {"inverseSqrt", fGLSLFamily},
	"dFdx":        {"dpdx", fGLSLFamily},
	"dFdy":        {"dpdy", fGLSLFamily},
	"dFdxFine":    {"dpdxFine", fGLSLFamily},
	"dFdyFine":    {"dpdyFine", fGLSLFamily},
	"roundEven":   {"round", fGLSLFamily},
	"lerp":        {"mix", fHLSL},
	"frac":        {"fract", fHLSL},
	"ddx":         {"dpdx", fHLSL},
	"ddy":         {"dpdy", fHLSL},
	"ddx_fine":    {"dpdxFine", fHLSL},
	"ddy_fine":    {"dpdyFine", fHLSL},
	"rsqrt":       {"inverseSqrt", fHLSL},
	"log10":       {"log2", fHLSL},
}

// comparisons are GLSL vector relational functions turned into operators.
var comparisons = map[string]string{
	"lessThan":         "<",
	"lessThanEqual":    "<=",
	"greaterThan":      ">",
	"greaterThanEqual": ">=",
	"equal":            "==",
	"notEqual":         "!=",
}

// types maps scalar, vector, matrix and texture type names to WGSL.
var types = map[string]string{}

func init() {
	types["float"] = "f32"
	types["int"] = "i32"
	types["uint"] = "u32"
	types["bool"] = "bool"
	types["double"] = "f32"
	types["half"] = "f32"
	types["min16float"] = "f32"
	types["min16int"] = "i32"
	types["min16uint"] = "u32"
	types["sampler2D"] = "texture_2d<f32>"
	types["sampler2DRect"] = "texture_2d<f32>"
	types["samplerCube"] = "texture_cube<f32>"
	types["Texture2D"] = "texture_2d<f32>"
	types["TextureCube"] = "texture_cube<f32>"
	types["SamplerState"] = "sampler"

	for n := 2; n <= 4; n++ {
		vec := func(elem string) string { return fmt.Sprintf("vec%d<%s>", n, elem) }
		types[fmt.Sprintf("vec%d", n)] = vec("f32")
		types[fmt.Sprintf("dvec%d", n)] = vec("f32")
		types[fmt.Sprintf("ivec%d", n)] = vec("i32")
		types[fmt.Sprintf("uvec%d", n)] = vec("u32")
		types[fmt.Sprintf("bvec%d", n)] = vec("bool")
		types[fmt.Sprintf("float%d", n)] = vec("f32")
		types[fmt.Sprintf("half%d", n)] = vec("f32")
		types[fmt.Sprintf("int%d", n)] = vec("i32")
		types[fmt.Sprintf("uint%d", n)] = vec("u32")
		types[fmt.Sprintf("bool%d", n)] = vec("bool")
		types[fmt.Sprintf("mat%d", n)] = fmt.Sprintf("mat%dx%d<f32>", n, n)
		for m := 2; m <= 4; m++ {
			// GLSL matCxR and WGSL matCxR agree; HLSL floatRxC is transposed.
			types[fmt.Sprintf("mat%dx%d", n, m)] = fmt.Sprintf("mat%dx%d<f32>", n, m)
			types[fmt.Sprintf("float%dx%d", n, m)] = fmt.Sprintf("mat%dx%d<f32>", m, n)
		}
	}
}

// wgslType returns the WGSL spelling of a source type name.
func wgslType(name string) (string, bool) {
	t, ok := types[name]
	return t, ok
}

// isIntegerType reports whether a WGSL type needs flat interpolation.
func isIntegerType(t string) bool {
	return strings.Contains(t, "i32") || strings.Contains(t, "u32")
}

// wgslOnlyKeywords are reserved in WGSL but legal identifiers in the source
// languages; user identifiers spelled like this get a '_' suffix.
var wgslOnlyKeywords = map[string]bool{
	"alias": true, "array": true, "atomic": true, "bitcast": true, "const_assert": true,
	"continuing": true, "diagnostic": true, "enable": true, "f16": true, "f32": true,
	"fn": true, "i32": true, "let": true, "loop": true, "override": true, "ptr": true,
	"requires": true, "sampler": true, "sampler_comparison": true, "u32": true,
	"var": true, "module": true, "mut": true, "new": true, "null": true,
	"private": true, "self": true, "storage": true, "super": true, "unless": true,
	"using": true, "with": true, "yield": true, "read": true, "write": true,
	"read_write": true, "function": true, "workgroup": true, "handle": true,
	"uniforms": true, "Uniforms": true, "select": true,
}

// qualifiers that may precede a declaration's type.
var qualifiers = map[string]bool{
	"const": true, "static": true, "uniform": true, "in": true, "out": true,
	"inout": true, "varying": true, "attribute": true, "flat": true, "smooth": true,
	"noperspective": true, "centroid": true, "highp": true, "mediump": true,
	"lowp": true, "precise": true, "invariant": true, "inline": true,
	"groupshared": true, "shared": true, "nointerpolation": true, "linear": true,
	"row_major": true, "column_major": true, "readonly": true, "writeonly": true,
}
