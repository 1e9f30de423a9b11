package rewrite

import (
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/shader"
)

var stageMarkers = map[string]shader.Stage{
	"gl_Position":             shader.StageVertex,
	"gl_VertexID":             shader.StageVertex,
	"gl_VertexIndex":          shader.StageVertex,
	"gl_InstanceID":           shader.StageVertex,
	"gl_InstanceIndex":        shader.StageVertex,
	"SV_VertexID":             shader.StageVertex,
	"SV_InstanceID":           shader.StageVertex,
	"gl_GlobalInvocationID":   shader.StageCompute,
	"gl_LocalInvocationID":    shader.StageCompute,
	"gl_WorkGroupID":          shader.StageCompute,
	"gl_LocalInvocationIndex": shader.StageCompute,
	"gl_NumWorkGroups":        shader.StageCompute,
	"local_size_x":            shader.StageCompute,
	"numthreads":              shader.StageCompute,
	"SV_DispatchThreadID":     shader.StageCompute,
	"SV_GroupThreadID":        shader.StageCompute,
	"SV_GroupID":              shader.StageCompute,
	"SV_GroupIndex":           shader.StageCompute,
	"gl_FragColor":            shader.StageFragment,
	"gl_FragCoord":            shader.StageFragment,
	"gl_FragData":             shader.StageFragment,
	"gl_FrontFacing":          shader.StageFragment,
	"isf_FragNormCoord":       shader.StageFragment,
	"vv_FragNormCoord":        shader.StageFragment,
	"discard":                 shader.StageFragment,
	"dFdx":                    shader.StageFragment,
	"dFdy":                    shader.StageFragment,
	"fwidth":                  shader.StageFragment,
	"ddx":                     shader.StageFragment,
	"ddy":                     shader.StageFragment,
	"clip":                    shader.StageFragment,
}

// inferStage decides the pipeline stage from the markers in the body.
// Compute markers win over vertex markers, which win over fragment markers.
// ISF is always a fragment shader.
func (p *pass) inferStage() {
	p.stage = shader.StageFragment
	if p.cfg.Format == shader.FormatISF {
		return
	}
	seen := map[shader.Stage]bool{}
	for i, t := range p.toks {
		if t.Kind != lexer.Ident {
			continue
		}
		if s, ok := stageMarkers[t.Text]; ok {
			seen[s] = true
			continue
		}
		switch {
		case strings.HasPrefix(t.Text, "SV_Target"):
			seen[shader.StageFragment] = true
		case t.Text == "SV_Position" && p.returnSemantic(i):
			seen[shader.StageVertex] = true
		case t.Text == "out" && p.cfg.Format == shader.FormatGLSL && p.globalOut(i):
			seen[shader.StageFragment] = true
		}
	}
	switch {
	case seen[shader.StageCompute]:
		p.stage = shader.StageCompute
	case seen[shader.StageVertex]:
		p.stage = shader.StageVertex
	case seen[shader.StageFragment]:
	default:
		p.diags = append(p.diags, diagnostics.Warningf(diagnostics.CodeStageDefaulted,
			"no stage markers found; assuming a fragment shader"))
	}
}

// returnSemantic reports whether the semantic at i annotates a function
// return value, as in "float4 main() : SV_Position".
func (p *pass) returnSemantic(i int) bool {
	colon := p.prev(i)
	return p.is(colon, ":") && p.is(p.prev(colon), ")")
}

// globalOut reports whether the 'out' at i starts a global declaration.
func (p *pass) globalOut(i int) bool {
	depth := 0
	for k := 0; k < i; k++ {
		switch {
		case p.toks[k].Is("{") || p.toks[k].Is("("):
			depth++
		case p.toks[k].Is("}") || p.toks[k].Is(")"):
			depth--
		}
	}
	return depth == 0
}
