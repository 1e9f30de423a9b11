package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/shader"
)

// declInfo is the shared prefix of a declaration: qualifiers and type.
type declInfo struct {
	start    int
	quals    map[string]bool
	location int
	typeIdx  int
	typ      string
	array    string // size from "T[N] name"
	name     int
}

// declarator is one "name[N] : SEMANTIC = init" of a declaration.
type declarator struct {
	name     int
	array    string
	isArray  bool
	semantic string
	init     [2]int
	hasInit  bool
}

// typeOf returns the WGSL spelling of a declared type; void maps to "".
func (p *pass) typeOf(name string) (string, bool) {
	if name == "void" {
		return "", true
	}
	if t, ok := wgslType(name); ok {
		return t, true
	}
	if _, ok := p.structs[name]; ok {
		return p.safeName(name), true
	}
	return "", false
}

// declStart recognizes "qualifiers type name" at i.
func (p *pass) declStart(i, hi int) (declInfo, bool) {
	d := declInfo{start: i, quals: make(map[string]bool), location: -1}
	k := i
	for k < hi && p.toks[k].Kind == lexer.Ident {
		t := p.toks[k].Text
		if t == "layout" {
			open := p.next(k + 1)
			if !p.is(open, "(") || p.match[open] < 0 || p.match[open] >= hi {
				return d, false
			}
			c := p.match[open]
			for _, part := range p.split(open+1, c, ",") {
				kv := p.split(part[0], part[1], "=")
				if len(kv) == 2 && strings.TrimSpace(p.text(kv[0][0], kv[0][1])) == "location" {
					if v, err := strconv.Atoi(strings.TrimSpace(p.text(kv[1][0], kv[1][1]))); err == nil {
						d.location = v
					}
				}
			}
			k = p.next(c + 1)
			continue
		}
		if !qualifiers[t] {
			break
		}
		d.quals[t] = true
		k = p.next(k + 1)
	}
	if k >= hi || p.toks[k].Kind != lexer.Ident {
		return d, false
	}
	typ, ok := p.typeOf(p.toks[k].Text)
	if !ok {
		return d, false
	}
	d.typeIdx, d.typ = k, typ
	k = p.next(k + 1)
	if p.is(k, "<") {
		// HLSL template arguments such as Texture2D<float4>
		for k < hi && !p.toks[k].Is(">") {
			k++
		}
		k = p.next(k + 1)
	}
	if p.is(k, "[") {
		c := p.match[k]
		if c < 0 || c >= hi {
			return d, false
		}
		d.array = strings.TrimSpace(p.expr(k+1, c))
		if d.array == "" {
			d.array = " "
		}
		k = p.next(c + 1)
	}
	if k >= hi || p.toks[k].Kind != lexer.Ident || qualifiers[p.toks[k].Text] {
		return d, false
	}
	d.name = k
	return d, true
}

// declarators splits the comma-separated declarators in [lo, hi).
func (p *pass) declarators(lo, hi int) []declarator {
	var out []declarator
	for _, part := range p.split(lo, hi, ",") {
		k := p.next(part[0])
		if k >= part[1] || p.toks[k].Kind != lexer.Ident {
			continue
		}
		dec := declarator{name: k}
		k = p.next(k + 1)
		for k < part[1] {
			if p.is(k, "[") {
				c := p.match[k]
				if c < 0 || c >= part[1] {
					break
				}
				dec.array, dec.isArray = strings.TrimSpace(p.expr(k+1, c)), true
				k = p.next(c + 1)
				continue
			}
			if p.is(k, ":") {
				s := p.next(k + 1)
				if s >= part[1] || p.toks[s].Kind != lexer.Ident {
					break
				}
				if sem := p.toks[s].Text; sem != "register" && sem != "packoffset" {
					dec.semantic = sem
				}
				k = p.next(s + 1)
				if p.is(k, "(") && p.match[k] > k {
					k = p.next(p.match[k] + 1)
				}
				continue
			}
			if p.is(k, "=") {
				dec.init, dec.hasInit = [2]int{k + 1, part[1]}, true
			}
			break
		}
		out = append(out, dec)
	}
	return out
}

// arrayType wraps the declared type in array<> when either the type or the
// declarator carries a size.
func (p *pass) arrayType(d declInfo, dec declarator) string {
	size, isArray := dec.array, dec.isArray
	if !isArray && d.array != "" {
		size, isArray = strings.TrimSpace(d.array), true
	}
	if !isArray {
		return d.typ
	}
	if size == "" && dec.hasInit {
		size = strconv.Itoa(p.initCount(dec.init))
	}
	if size == "" || size == "0" {
		p.warnAt(dec.name, diagnostics.CodeUnsupportedSyntax, "array %q has no size", p.toks[dec.name].Text)
		return fmt.Sprintf("array<%s>", d.typ)
	}
	return fmt.Sprintf("array<%s, %s>", d.typ, size)
}

// initCount counts the elements of an array initializer: T[](a, b) or {a, b}.
func (p *pass) initCount(r [2]int) int {
	k := p.next(r[0])
	for k < r[1] && !p.toks[k].Is("(") && !p.toks[k].Is("{") {
		if p.toks[k].Is("[") && p.match[k] > k {
			k = p.match[k]
		}
		k++
	}
	if k >= r[1] || p.match[k] < 0 {
		return 0
	}
	return len(p.split(k+1, p.match[k], ","))
}

// initializer rewrites an initializer, turning brace lists into constructors.
func (p *pass) initializer(typ string, dec declarator) string {
	k := p.next(dec.init[0])
	if p.is(k, "{") && p.match[k] > k {
		var args []string
		for _, part := range p.split(k+1, p.match[k], ",") {
			args = append(args, strings.TrimSpace(p.expr(part[0], part[1])))
		}
		return typ + "(" + strings.Join(args, ", ") + ")"
	}
	return strings.TrimSpace(p.expr(dec.init[0], dec.init[1]))
}

// safeName renames identifiers that are reserved in WGSL.
func (p *pass) safeName(name string) string {
	if wgslOnlyKeywords[name] {
		return name + "_"
	}
	if strings.HasPrefix(name, "__") {
		return "_" + strings.TrimLeft(name, "_") + "_"
	}
	return name
}

func (p *pass) declName(i int) string { return p.safeName(p.toks[i].Text) }

func isStageVar(d declInfo) bool {
	return d.quals["in"] || d.quals["out"] || d.quals["varying"] || d.quals["attribute"]
}

// declaration rewrites a variable declaration, or a function when the name is
// followed by a parameter list.
func (p *pass) declaration(d declInfo, hi int, sc scope, sb *strings.Builder) int {
	if open := p.next(d.name + 1); p.is(open, "(") {
		if sc == scopeGlobal {
			return p.function(d, open, hi, sb)
		}
		return p.stmtEnd(open, hi) + 1
	}
	end := p.stmtEnd(d.name, hi)
	next := end
	if end < hi && p.toks[end].Is(";") {
		next = end + 1
	}
	switch {
	case sc == scopeGlobal && isStageVar(d):
		p.stageVar(d, end)
		return next
	case d.quals["uniform"]:
		p.infoAt(d.name, diagnostics.CodeUnsupportedDecl,
			"uniform %q is read from the Uniforms struct", p.toks[d.name].Text)
		return next
	case d.typ == "sampler":
		p.infoAt(d.name, diagnostics.CodeUnsupportedDecl,
			"sampler %q dropped; each texture has its own sampler", p.toks[d.name].Text)
		return next
	}
	sb.WriteString(p.localDecl(d, end, sc))
	sb.WriteString(";")
	return next
}

// localDecl renders the declarators of d as WGSL var, let or const
// declarations joined by "; ".
func (p *pass) localDecl(d declInfo, end int, sc scope) string {
	var parts []string
	for _, dec := range p.declarators(d.name, end) {
		typ := p.arrayType(d, dec)
		kw := "var"
		switch {
		case d.quals["groupshared"] || d.quals["shared"]:
			kw = "var<workgroup>"
		case d.quals["const"] && dec.hasInit && sc == scopeGlobal:
			kw = "const"
		case d.quals["const"] && dec.hasInit:
			kw = "let"
		case sc == scopeGlobal:
			kw = "var<private>"
		}
		if sc == scopeFunction {
			p.locals[p.toks[dec.name].Text] = true
			p.vars[p.toks[dec.name].Text] = kw == "var"
		}
		s := fmt.Sprintf("%s %s: %s", kw, p.declName(dec.name), typ)
		if dec.hasInit {
			s += " = " + p.initializer(typ, dec)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

// ioVar is a GLSL global stage input or output.
type ioVar struct {
	name     string
	typ      string
	location int
	flat     bool
}

func (p *pass) stageVar(d declInfo, end int) {
	if p.stage == shader.StageCompute {
		p.warnAt(d.name, diagnostics.CodeUnsupportedDecl, "compute shaders have no stage input or output %q",
			p.toks[d.name].Text)
		return
	}
	output := d.quals["out"] || (d.quals["varying"] && p.stage == shader.StageVertex)
	for _, dec := range p.declarators(d.name, end) {
		v := ioVar{name: p.declName(dec.name), typ: p.arrayType(d, dec), location: d.location}
		v.flat = d.quals["flat"] || isIntegerType(v.typ)
		list := &p.inputs
		if output {
			list = &p.outputs
		}
		if v.location < 0 {
			v.location = len(*list)
		}
		*list = append(*list, v)
	}
}

// param is one function parameter.
type param struct {
	tok      int
	src      string
	name     string
	typ      string
	typeSrc  string
	semantic string
	out      bool
}

func (p *pass) params(lo, hi int) []param {
	var out []param
	for _, part := range p.split(lo, hi, ",") {
		k := p.next(part[0])
		if k >= part[1] || (p.is(k, "void") && p.next(k+1) >= part[1]) {
			continue
		}
		d, ok := p.declStart(k, part[1])
		if !ok {
			p.warnAt(k, diagnostics.CodeUnsupportedDecl, "parameter %q not understood",
				strings.TrimSpace(p.text(part[0], part[1])))
			continue
		}
		for _, dec := range p.declarators(d.name, part[1]) {
			if dec.hasInit {
				p.warnAt(dec.name, diagnostics.CodeUnsupportedSyntax, "default value of parameter %q dropped",
					p.toks[dec.name].Text)
			}
			out = append(out, param{
				tok:      dec.name,
				out:      d.quals["out"] || d.quals["inout"],
				src:      p.toks[dec.name].Text,
				name:     p.declName(dec.name),
				typ:      p.arrayType(d, dec),
				typeSrc:  p.toks[d.typeIdx].Text,
				semantic: dec.semantic,
			})
		}
	}
	return out
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "++": true, "--": true,
}

// assigns reports whether name is written in [lo, hi).
func (p *pass) assigns(name string, lo, hi int) bool {
	for i := lo; i < hi; i++ {
		t := p.toks[i]
		if t.Kind != lexer.Ident || t.Text != name {
			continue
		}
		pv := p.prev(i)
		if p.is(pv, ".") {
			continue
		}
		if p.is(pv, "++") || p.is(pv, "--") {
			return true
		}
		k := p.next(i + 1)
		for k < hi {
			if p.is(k, ".") {
				k = p.next(p.next(k+1) + 1)
				continue
			}
			if p.is(k, "[") && p.match[k] > k {
				k = p.next(p.match[k] + 1)
				continue
			}
			break
		}
		if k >= hi {
			continue
		}
		if assignOps[p.toks[k].Text] && p.toks[k].Kind == lexer.Punct {
			return true
		}
		if (p.is(k, "<<") || p.is(k, ">>")) && p.is(k+1, "=") {
			return true
		}
	}
	return false
}

// function rewrites a function definition. Prototypes are dropped; GLSL main
// is wrapped into a stage entry point.
func (p *pass) function(d declInfo, open, hi int, sb *strings.Builder) int {
	name := p.toks[d.name].Text
	c := p.closeOf(open, hi)
	p.resetScope()
	params := p.params(open+1, c)
	k := p.next(c + 1)
	retSem := ""
	if p.is(k, ":") {
		if s := p.next(k + 1); s < hi {
			retSem = p.toks[s].Text
			k = p.next(s + 1)
		}
	}
	if p.is(k, ";") {
		return k + 1
	}
	if !p.is(k, "{") {
		p.warnAt(d.name, diagnostics.CodeUnsupportedSyntax, "function %q has no body", name)
		return p.stmtEnd(k, hi) + 1
	}
	bc := p.closeOf(k, hi)
	threads := p.pending
	p.pending = nil

	if p.cfg.Format != shader.FormatHLSL {
		if name == "main" && p.main == nil {
			return p.wrapMain(k, bc, sb)
		}
	}

	entry := false
	stage := p.stage
	if p.cfg.Format == shader.FormatHLSL {
		entry = threads != nil || retSem != "" || hasSemantic(params) || (name == "main" && len(p.entries) == 0)
		stage = p.hlslStage(threads, retSem, p.toks[d.typeIdx].Text)
	}

	var prologue strings.Builder
	var list []string
	loc := 0
	for _, pa := range params {
		p.locals[pa.src] = true
		if pa.out && !entry {
			p.ptrs[pa.src] = true
			list = append(list, fmt.Sprintf("%s: ptr<function, %s>", pa.name, pa.typ))
			continue
		}
		if pa.out {
			p.warnAt(pa.tok, diagnostics.CodeOutParameter,
				"out parameter %q of entry point %s is passed by value; return the value instead", pa.src, name)
		}
		pname := pa.name
		if p.assigns(pa.src, k+1, bc) || p.passedOut(pa.src, k+1, bc) {
			pname = pa.name + "_in"
			p.vars[pa.src] = true
			fmt.Fprintf(&prologue, "\n    var %s = %s;", pa.name, pname)
		}
		attr := ""
		if entry && pa.semantic != "" {
			attr, pa.typ = semanticAttr(pa.semantic, pa.typ, &loc)
			attr += " "
		}
		list = append(list, fmt.Sprintf("%s%s: %s", attr, pname, pa.typ))
	}

	if entry {
		p.fnStage, p.fnIsEntry = stage, true
		if len(p.entries) == 0 {
			p.stage = stage
		}
		p.entries = append(p.entries, name)
		switch stage {
		case shader.StageCompute:
			size := p.workgroup
			if threads != nil {
				size = *threads
			}
			p.workgroup = size
			fmt.Fprintf(sb, "@compute @workgroup_size(%d, %d, %d)\n", size[0], size[1], size[2])
		default:
			fmt.Fprintf(sb, "@%s\n", stage)
		}
	}
	fmt.Fprintf(sb, "fn %s(%s)", p.safeName(name), strings.Join(list, ", "))
	if d.typ != "" {
		ret := d.typ
		attr := ""
		if entry && retSem != "" {
			outLoc := 0
			attr, ret = semanticAttr(retSem, ret, &outLoc)
			attr += " "
		}
		fmt.Fprintf(sb, " -> %s%s", attr, ret)
	}
	if before := p.prev(k) + 1; before < k {
		p.trivia(before, k, sb)
	} else {
		sb.WriteString(" ")
	}
	sb.WriteString("{")
	sb.WriteString(prologue.String())
	p.block(k+1, bc, scopeFunction, sb)
	if bc < hi {
		sb.WriteString("}")
	}
	p.fnIsEntry = false
	p.resetScope()
	return bc + 1
}

// resetScope forgets the locals of the function just rewritten.
func (p *pass) resetScope() {
	p.locals = make(map[string]bool)
	p.vars = make(map[string]bool)
	p.ptrs = make(map[string]bool)
}

// scanSignatures records which parameters of every function are out or
// inout, so calls can pass pointers before the definition is reached.
func (p *pass) scanSignatures() {
	depth := 0
	for i, t := range p.toks {
		if t.Kind != lexer.Punct {
			continue
		}
		switch t.Text {
		case "{":
			depth++
		case "}":
			depth--
		case "(":
			name := p.prev(i)
			if depth != 0 || name < 0 || p.toks[name].Kind != lexer.Ident || p.match[i] < 0 {
				continue
			}
			if typ := p.prev(name); typ < 0 || p.toks[typ].Kind != lexer.Ident {
				continue
			}
			var flags []bool
			found := false
			for _, part := range p.split(i+1, p.match[i], ",") {
				out := p.outQualified(part[0], part[1])
				flags = append(flags, out)
				found = found || out
			}
			if found {
				p.outSigs[p.toks[name].Text] = flags
			}
		}
	}
}

// outQualified reports whether the parameter in [lo, hi) is out or inout.
func (p *pass) outQualified(lo, hi int) bool {
	for k := p.next(lo); k < hi && p.toks[k].Kind == lexer.Ident && qualifiers[p.toks[k].Text]; k = p.next(k + 1) {
		if t := p.toks[k].Text; t == "out" || t == "inout" {
			return true
		}
	}
	return false
}

// passedOut reports whether name is given to an out parameter in [lo, hi).
func (p *pass) passedOut(name string, lo, hi int) bool {
	for i := lo; i < hi; i++ {
		flags, ok := p.outSigs[p.toks[i].Text]
		if !ok || p.toks[i].Kind != lexer.Ident {
			continue
		}
		open := p.next(i + 1)
		if !p.is(open, "(") || p.match[open] < 0 {
			continue
		}
		for k, part := range p.split(open+1, p.match[open], ",") {
			a := p.next(part[0])
			if k < len(flags) && flags[k] && a < part[1] && p.toks[a].Text == name && p.next(a+1) >= part[1] {
				return true
			}
		}
	}
	return false
}

// pointerArg passes the argument in part to an out parameter of fn. Only
// function-scope variables have an address.
func (p *pass) pointerArg(fn string, part [2]int, arg string) string {
	k := p.next(part[0])
	if k < part[1] && p.toks[k].Kind == lexer.Ident && p.next(k+1) >= part[1] {
		switch name := p.toks[k].Text; {
		case p.ptrs[name]:
			return p.declName(k)
		case p.vars[name]:
			return "&" + p.declName(k)
		}
	}
	p.diags = append(p.diags, p.at(diagnostics.Errorf(diagnostics.CodeOutParameter,
		"out argument %q of %s is not a local variable and cannot be passed by pointer", arg, fn).
		WithSuggestion("Copy the value into a local variable and pass that"), k))
	return "&(" + arg + ")"
}

func hasSemantic(params []param) bool {
	for _, pa := range params {
		if pa.semantic != "" {
			return true
		}
	}
	return false
}

// hlslStage derives an entry point's stage from its attributes and return
// semantic, falling back to the file's inferred stage.
func (p *pass) hlslStage(threads *[3]int, retSem, retType string) shader.Stage {
	if threads != nil {
		return shader.StageCompute
	}
	sems := []string{retSem}
	for _, m := range p.structs[retType] {
		sems = append(sems, m.semantic)
	}
	vertex, fragment := false, false
	for _, s := range sems {
		up := strings.ToUpper(s)
		switch {
		case up == "SV_POSITION" || up == "POSITION":
			vertex = true
		case strings.HasPrefix(up, "SV_TARGET") || strings.HasPrefix(up, "COLOR"):
			fragment = true
		}
	}
	switch {
	case vertex:
		return shader.StageVertex
	case fragment:
		return shader.StageFragment
	}
	return p.stage
}

// semanticAttr converts an HLSL semantic to a WGSL attribute, forcing the
// type WGSL requires for builtins. User semantics get sequential locations.
func semanticAttr(sem, typ string, loc *int) (string, string) {
	up := strings.ToUpper(sem)
	switch up {
	case "SV_POSITION":
		return "@builtin(position)", "vec4<f32>"
	case "SV_DEPTH":
		return "@builtin(frag_depth)", "f32"
	case "SV_DISPATCHTHREADID":
		return "@builtin(global_invocation_id)", "vec3<u32>"
	case "SV_GROUPTHREADID":
		return "@builtin(local_invocation_id)", "vec3<u32>"
	case "SV_GROUPID":
		return "@builtin(workgroup_id)", "vec3<u32>"
	case "SV_GROUPINDEX":
		return "@builtin(local_invocation_index)", "u32"
	case "SV_VERTEXID":
		return "@builtin(vertex_index)", "u32"
	case "SV_INSTANCEID":
		return "@builtin(instance_index)", "u32"
	case "SV_ISFRONTFACE":
		return "@builtin(front_facing)", "bool"
	}
	if strings.HasPrefix(up, "SV_TARGET") {
		n, err := strconv.Atoi(strings.TrimPrefix(up, "SV_TARGET"))
		if err != nil {
			n = 0
		}
		return fmt.Sprintf("@location(%d)", n), typ
	}
	attr := fmt.Sprintf("@location(%d)", *loc)
	*loc++
	if isIntegerType(typ) {
		attr += " @interpolate(flat)"
	}
	return attr, typ
}
