package rewrite

import (
	"fmt"
	"strings"

	"github.com/shaderconv/converter/internal/shader"
)

// glslMain is the GLSL main function being wrapped into a WGSL entry point.
// Its signature depends on every stage variable the file uses, so the text is
// spliced in at a marker once the whole body is rewritten.
type glslMain struct {
	marker  string
	open    bool
	body    string
	returns bool
}

const mainMarker = "\x00main\x00"

func (p *pass) wrapMain(open, c int, sb *strings.Builder) int {
	m := &glslMain{marker: mainMarker, open: true}
	p.main = m
	p.resetScope()
	p.fnStage, p.fnIsEntry = p.stage, true

	var body strings.Builder
	p.block(open+1, c, scopeFunction, &body)
	m.body = body.String()
	m.returns = p.endsWithReturn(open, c)
	m.open = false

	p.fnIsEntry = false
	p.resetScope()
	p.entries = append(p.entries, "main")
	sb.WriteString(m.marker)
	return c + 1
}

// endsWithReturn reports whether the last statement of the block (open, c) is
// a return.
func (p *pass) endsWithReturn(open, c int) bool {
	last := p.prev(c)
	if last <= open || !p.is(last, ";") {
		return false
	}
	k := p.prev(last)
	for k > open {
		t := p.toks[k]
		if t.Is(";") || t.Is("{") || t.Is("}") {
			break
		}
		if (t.Is(")") || t.Is("]")) && p.match[k] >= 0 {
			k = p.match[k]
		}
		k = p.prev(k)
	}
	return p.is(p.next(k+1), "return")
}

// resultFor returns the expression main returns, or "" for compute shaders.
func (p *pass) resultFor() string {
	switch p.stage {
	case shader.StageCompute:
		return ""
	case shader.StageVertex:
		if len(p.outputs) == 0 {
			return "glPosition"
		}
		names := []string{"glPosition"}
		for _, o := range p.outputs {
			names = append(names, o.name)
		}
		return "VertexOutput(" + strings.Join(names, ", ") + ")"
	}
	switch len(p.outputs) {
	case 0:
		return "fragColor"
	case 1:
		return p.outputs[0].name
	}
	names := make([]string, len(p.outputs))
	for i, o := range p.outputs {
		names[i] = o.name
	}
	return "FragmentOutput(" + strings.Join(names, ", ") + ")"
}

func interpolation(v ioVar) string {
	if v.flat {
		return " @interpolate(flat)"
	}
	return ""
}

// assemble builds the entry point around the rewritten main body.
func (m *glslMain) assemble(p *pass) string {
	var params, prologue []string
	var head, ret strings.Builder

	builtin := func(name string) {
		mi := mirrors[name]
		typ := mi.typ
		conv := "_" + name
		if mi.param != "" {
			typ = mi.param
			conv = fmt.Sprintf("%s(_%s)", mi.typ, name)
		}
		params = append(params, fmt.Sprintf("@builtin(%s) _%s: %s", mi.builtin, name, typ))
		prologue = append(prologue, fmt.Sprintf("%s = %s;", name, conv))
	}

	switch p.stage {
	case shader.StageFragment:
		params = append(params, "@builtin(position) _fragCoord: vec4<f32>")
		if p.used["normCoord"] {
			p.used["fragCoord"] = true
		}
		if p.used["fragCoord"] {
			// GL puts the origin at the bottom left
			prologue = append(prologue,
				"fragCoord = vec4<f32>(_fragCoord.x, uniforms.renderSize.y - _fragCoord.y, _fragCoord.z, _fragCoord.w);")
		}
		if p.used["normCoord"] {
			prologue = append(prologue, "normCoord = fragCoord.xy / uniforms.renderSize;")
		}
		if p.used["frontFacing"] {
			builtin("frontFacing")
		}
	case shader.StageVertex:
		p.used["glPosition"] = true
		for _, name := range []string{"vertexIndex", "instanceIndex"} {
			if p.used[name] {
				builtin(name)
			}
		}
	case shader.StageCompute:
		for _, name := range []string{"globalId", "localId", "workgroupId", "localIndex", "numWorkgroups"} {
			if p.used[name] {
				builtin(name)
			}
		}
	}
	for _, in := range p.inputs {
		params = append(params, fmt.Sprintf("@location(%d)%s _%s: %s", in.location, interpolation(in), in.name, in.typ))
		prologue = append(prologue, fmt.Sprintf("%s = _%s;", in.name, in.name))
	}

	switch p.stage {
	case shader.StageCompute:
		fmt.Fprintf(&head, "@compute @workgroup_size(%d, %d, %d)\n", p.workgroup[0], p.workgroup[1], p.workgroup[2])
	case shader.StageVertex:
		if len(p.outputs) == 0 {
			ret.WriteString(" -> @builtin(position) vec4<f32>")
			break
		}
		head.WriteString("struct VertexOutput {\n    @builtin(position) position: vec4<f32>,\n")
		for _, o := range p.outputs {
			fmt.Fprintf(&head, "    @location(%d)%s %s: %s,\n", o.location, interpolation(o), o.name, o.typ)
		}
		head.WriteString("}\n\n")
		ret.WriteString(" -> VertexOutput")
	case shader.StageFragment:
		switch len(p.outputs) {
		case 0:
			p.used["fragColor"] = true
			ret.WriteString(" -> @location(0) vec4<f32>")
		case 1:
			fmt.Fprintf(&ret, " -> @location(%d) %s", p.outputs[0].location, p.outputs[0].typ)
		default:
			head.WriteString("struct FragmentOutput {\n")
			for _, o := range p.outputs {
				fmt.Fprintf(&head, "    @location(%d) %s: %s,\n", o.location, o.name, o.typ)
			}
			head.WriteString("}\n\n")
			ret.WriteString(" -> FragmentOutput")
		}
	}
	if p.stage != shader.StageCompute {
		fmt.Fprintf(&head, "@%s\n", p.stage)
	}

	var sb strings.Builder
	sb.WriteString(head.String())
	fmt.Fprintf(&sb, "fn main(%s)%s {", strings.Join(params, ", "), ret.String())
	for _, line := range prologue {
		sb.WriteString("\n    " + line)
	}
	body := m.body
	sb.WriteString(body)
	if !m.returns && p.stage != shader.StageCompute {
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "    return %s;\n", p.resultFor())
	}
	sb.WriteString("}")
	return sb.String()
}
