package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/layout"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/shader"
)

// expr rewrites the expression tokens in [lo, hi).
func (p *pass) expr(lo, hi int) string {
	if q := p.findTop(lo, hi, "?"); q >= 0 {
		if colon := p.ternaryColon(q+1, hi); colon >= 0 {
			prefix := ""
			condLo := lo
			if a := p.lastAssign(lo, q); a >= 0 {
				prefix = strings.TrimRight(p.linear(lo, a+1), " \t") + " "
				condLo = a + 1
			}
			cond := strings.TrimSpace(p.expr(condLo, q))
			t := strings.TrimSpace(p.expr(q+1, colon))
			f := strings.TrimSpace(p.expr(colon+1, hi))
			return prefix + fmt.Sprintf("select(%s, %s, %s)", f, t, cond)
		}
	}
	return p.linear(lo, hi)
}

// findTop returns the first depth-0 token s in [lo, hi), or -1.
func (p *pass) findTop(lo, hi int, s string) int {
	for i := lo; i < hi; i++ {
		t := p.toks[i]
		if t.Kind != lexer.Punct {
			continue
		}
		if c := p.match[i]; c > i && c < hi && closers[t.Text] != "" {
			i = c
			continue
		}
		if t.Text == s {
			return i
		}
	}
	return -1
}

// ternaryColon finds the ':' pairing with a '?' just before lo.
func (p *pass) ternaryColon(lo, hi int) int {
	depth := 0
	for i := lo; i < hi; i++ {
		t := p.toks[i]
		if t.Kind != lexer.Punct {
			continue
		}
		if c := p.match[i]; c > i && c < hi && closers[t.Text] != "" {
			i = c
			continue
		}
		switch t.Text {
		case "?":
			depth++
		case ":":
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func (p *pass) lastAssign(lo, hi int) int {
	last := -1
	for i := lo; i < hi; i++ {
		t := p.toks[i]
		if t.Kind != lexer.Punct {
			continue
		}
		if c := p.match[i]; c > i && c < hi && closers[t.Text] != "" {
			i = c
			continue
		}
		if assignOps[t.Text] && t.Text != "++" && t.Text != "--" {
			last = i
		}
	}
	return last
}

// linear rewrites tokens left to right, recursing into bracketed groups.
func (p *pass) linear(lo, hi int) string {
	var sb strings.Builder
	for i := lo; i < hi; {
		t := p.toks[i]
		switch {
		case t.Kind == lexer.Comment && strings.HasPrefix(t.Text, "//"):
			// expressions may be joined onto one line
			sb.WriteString("/*" + t.Text[2:] + " */")
			i++
		case t.Trivia():
			sb.WriteString(t.Text)
			i++
		case t.Kind == lexer.Number:
			sb.WriteString(number(t.Text))
			i++
		case t.Kind == lexer.Ident:
			i = p.identExpr(i, hi, &sb)
		case t.Kind == lexer.String:
			p.warnOnce("string", i, diagnostics.CodeUnsupportedSyntax, "string literals are not supported in WGSL")
			sb.WriteString(t.Text)
			i++
		case t.Is("(") && p.match[i] > i && p.match[i] < hi:
			c := p.match[i]
			if end, typ, ok := p.cast(i, c, hi); ok {
				sb.WriteString(typ + "(" + strings.TrimSpace(p.expr(p.next(c+1), end)) + ")")
				i = end
				continue
			}
			sb.WriteString("(" + p.expr(i+1, c) + ")")
			i = c + 1
		case t.Is("[") && p.match[i] > i && p.match[i] < hi:
			c := p.match[i]
			sb.WriteString("[" + p.expr(i+1, c) + "]")
			i = c + 1
		default:
			sb.WriteString(t.Text)
			i++
		}
	}
	return sb.String()
}

// cast recognizes an HLSL C-style cast "(float3)x" and returns the end of the
// cast operand.
func (p *pass) cast(open, c, hi int) (int, string, bool) {
	if p.cfg.Format != shader.FormatHLSL {
		return 0, "", false
	}
	k := p.next(open + 1)
	if k >= c || p.toks[k].Kind != lexer.Ident || p.next(k+1) != c {
		return 0, "", false
	}
	typ, ok := p.typeOf(p.toks[k].Text)
	if !ok || typ == "" {
		return 0, "", false
	}
	operand := p.next(c + 1)
	if operand >= hi {
		return 0, "", false
	}
	end := p.primaryEnd(operand, hi)
	if end < 0 {
		return 0, "", false
	}
	return end, typ, true
}

// primaryEnd returns the index just past the primary expression at k,
// including calls, member access and indexing, or -1.
func (p *pass) primaryEnd(k, hi int) int {
	t := p.toks[k]
	switch {
	case t.Kind == lexer.Number:
		k++
	case t.Kind == lexer.Ident:
		k++
		if n := p.next(k); p.is(n, "(") {
			c := p.match[n]
			if c < 0 || c >= hi {
				return -1
			}
			k = c + 1
		}
	case t.Is("("):
		c := p.match[k]
		if c < 0 || c >= hi {
			return -1
		}
		k = c + 1
	default:
		return -1
	}
	for {
		n := p.next(k)
		if n >= hi {
			return k
		}
		switch {
		case p.is(n, "."):
			m := p.next(n + 1)
			if m >= hi || p.toks[m].Kind != lexer.Ident {
				return k
			}
			k = m + 1
		case p.is(n, "[") && p.match[n] > n && p.match[n] < hi:
			k = p.match[n] + 1
		default:
			return k
		}
	}
}

var textureMethods = map[string]bool{
	"Sample": true, "SampleLevel": true, "SampleBias": true, "SampleGrad": true,
	"Load": true, "GetDimensions": true,
}

// identExpr rewrites the identifier at i along with any call or constructor
// it starts.
func (p *pass) identExpr(i, hi int, sb *strings.Builder) int {
	name := p.toks[i].Text
	if p.is(p.prev(i), ".") {
		sb.WriteString(name)
		return i + 1
	}
	n := p.next(i + 1)
	inRange := n < hi
	switch {
	case inRange && p.is(n, "("):
		return p.call(i, n, hi, sb)
	case inRange && p.is(n, ".") && p.cfg.Format == shader.FormatHLSL:
		m := p.next(n + 1)
		if open := p.next(m + 1); m < hi && open < hi && p.is(open, "(") && textureMethods[p.toks[m].Text] {
			return p.textureMethod(i, m, open, hi, sb)
		}
	case inRange && p.is(n, "[") && p.match[n] > n && p.match[n] < hi:
		if typ, ok := wgslType(name); ok && !p.locals[name] {
			c := p.match[n]
			if open := p.next(c + 1); open < hi && p.is(open, "(") {
				return p.arrayCtor(typ, n, c, open, hi, sb)
			}
		}
		if name == "gl_FragData" && fGLSLFamily.has(p.cfg.Format) {
			p.warnOnce(name, i, diagnostics.CodeUnsupportedBuiltin, "gl_FragData is mapped to the single color output")
			p.used["fragColor"] = true
			sb.WriteString("fragColor")
			return p.match[n] + 1
		}
	}
	sb.WriteString(p.resolve(i))
	return i + 1
}

// resolve maps a plain identifier: locals first, then built-ins, inputs and
// textures.
func (p *pass) resolve(i int) string {
	name := p.toks[i].Text
	if p.ptrs[name] {
		return "(*" + p.declName(i) + ")"
	}
	if p.locals[name] {
		return p.declName(i)
	}
	if s, ok := identifiers[name]; ok && s.formats.has(p.cfg.Format) {
		if s.warn != "" {
			p.warnOnce(name, i, diagnostics.CodeUnsupportedBuiltin, "%s", s.warn)
		}
		if s.mirror != "" {
			p.used[s.mirror] = true
		}
		return s.target
	}
	if a, ok := p.access[name]; ok {
		return a
	}
	if t, ok := p.textures[name]; ok {
		return t.Name
	}
	if t, ok := wgslType(name); ok {
		return t
	}
	return p.declName(i)
}

func (p *pass) arrayCtor(typ string, open, c, call, hi int, sb *strings.Builder) int {
	end := p.closeOf(call, hi)
	args := p.args(call+1, end)
	size := strings.TrimSpace(p.expr(open+1, c))
	if size == "" {
		size = strconv.Itoa(len(args))
	}
	fmt.Fprintf(sb, "array<%s, %s>(%s)", typ, size, strings.Join(args, ", "))
	return end + 1
}

// args rewrites the comma-separated arguments in [lo, hi).
func (p *pass) args(lo, hi int) []string {
	parts := p.split(lo, hi, ",")
	out := make([]string, len(parts))
	for k, part := range parts {
		out[k] = strings.TrimSpace(p.expr(part[0], part[1]))
	}
	return out
}

// call rewrites a call of the identifier at i whose argument list opens at
// open.
func (p *pass) call(i, open, hi int, sb *strings.Builder) int {
	name := p.toks[i].Text
	c := p.closeOf(open, hi)
	parts := p.split(open+1, c, ",")
	if !p.locals[name] {
		if typ, ok := wgslType(name); ok && !strings.HasPrefix(typ, "texture") && typ != "sampler" {
			fmt.Fprintf(sb, "%s(%s)", typ, strings.Join(p.args(open+1, c), ", "))
			return c + 1
		}
		if s, ok := p.builtinCall(name, i, parts); ok {
			sb.WriteString(s)
			return c + 1
		}
	}
	fn := p.declName(i)
	if r, ok := renames[name]; ok && r.formats.has(p.cfg.Format) {
		fn = r.target
	}
	args := p.args(open+1, c)
	if flags, ok := p.outSigs[name]; ok && !p.locals[name] {
		for k := range args {
			if k < len(flags) && flags[k] {
				args[k] = p.pointerArg(name, parts[k], args[k])
			}
		}
	}
	fmt.Fprintf(sb, "%s(%s)", fn, strings.Join(args, ", "))
	return c + 1
}

// builtinCall rewrites calls whose WGSL form is not a plain rename.
func (p *pass) builtinCall(name string, i int, parts [][2]int) (string, bool) {
	f := p.cfg.Format
	n := len(parts)
	arg := func(k int) string { return strings.TrimSpace(p.expr(parts[k][0], parts[k][1])) }
	glsl := fGLSLFamily.has(f)
	hlsl := f == shader.FormatHLSL

	switch {
	case f == shader.FormatISF && name == "IMG_NORM_PIXEL" && n >= 2:
		return p.sample(i, parts[0], arg(1), "", ""), true
	case f == shader.FormatISF && name == "IMG_PIXEL" && n >= 2:
		tex, _ := p.textureRef(i, parts[0], false)
		return p.sample(i, parts[0], fmt.Sprintf("(%s) / vec2<f32>(textureDimensions(%s))", arg(1), tex), "", ""), true
	case f == shader.FormatISF && (name == "IMG_THIS_PIXEL" || name == "IMG_THIS_NORM_PIXEL") && n >= 1:
		p.used["normCoord"] = true
		return p.sample(i, parts[0], "normCoord", "", ""), true
	case f == shader.FormatISF && name == "IMG_SIZE" && n >= 1:
		tex, _ := p.textureRef(i, parts[0], true)
		return fmt.Sprintf("vec2<f32>(textureDimensions(%s))", tex), true

	case glsl && (name == "texture2D" || name == "texture" || name == "textureCube" || name == "texture2DRect") && n >= 2:
		bias := ""
		if n >= 3 {
			bias = arg(2)
		}
		return p.sample(i, parts[0], arg(1), "", bias), true
	case hlsl && (name == "tex2D" || name == "texCUBE") && n >= 2:
		return p.sample(i, parts[0], arg(1), "", ""), true
	case glsl && (name == "texture2DLod" || name == "textureLod" || name == "textureCubeLod") && n >= 3:
		return p.sample(i, parts[0], arg(1), arg(2), ""), true
	case glsl && name == "texelFetch" && n >= 2:
		tex, _ := p.textureRef(i, parts[0], true)
		level := "0"
		if n >= 3 {
			level = arg(2)
		}
		return fmt.Sprintf("textureLoad(%s, %s, %s)", tex, arg(1), level), true
	case glsl && name == "textureSize" && n >= 1:
		tex, _ := p.textureRef(i, parts[0], true)
		level := "0"
		if n >= 2 {
			level = arg(1)
		}
		return fmt.Sprintf("vec2<i32>(textureDimensions(%s, %s))", tex, level), true

	case glsl && name == "mod" && n == 2:
		a, b := arg(0), arg(1)
		return fmt.Sprintf("((%s) - (%s) * floor((%s) / (%s)))", a, b, a, b), true
	case glsl && name == "atan" && n == 2:
		return fmt.Sprintf("atan2(%s, %s)", arg(0), arg(1)), true
	case glsl && comparisons[name] != "" && n == 2:
		return fmt.Sprintf("((%s) %s (%s))", arg(0), comparisons[name], arg(1)), true
	case glsl && name == "not" && n == 1:
		return fmt.Sprintf("!(%s)", arg(0)), true
	case hlsl && name == "mul" && n == 2:
		return fmt.Sprintf("((%s) * (%s))", arg(0), arg(1)), true
	case hlsl && name == "fmod" && n == 2:
		return fmt.Sprintf("((%s) %% (%s))", arg(0), arg(1)), true
	case hlsl && name == "clip" && n == 1:
		p.warnOnce("clip", i, diagnostics.CodeUnsupportedBuiltin, "clip is rewritten for scalar arguments only")
		return fmt.Sprintf("if ((%s) < 0.0) { discard; }", arg(0)), true
	}
	return "", false
}

// currentStage is the stage of the entry point being rewritten, or the file's.
func (p *pass) currentStage() shader.Stage {
	if p.fnIsEntry {
		return p.fnStage
	}
	return p.stage
}

// sample emits the WGSL sampling call for a texture argument. Outside
// fragment shaders implicit derivatives are unavailable, so level 0 is used.
func (p *pass) sample(call int, texArg [2]int, coord, level, bias string) string {
	tex, samp := p.textureRef(call, texArg, false)
	switch {
	case level != "":
		return fmt.Sprintf("textureSampleLevel(%s, %s, %s, %s)", tex, samp, coord, level)
	case p.currentStage() != shader.StageFragment:
		return fmt.Sprintf("textureSampleLevel(%s, %s, %s, 0.0)", tex, samp, coord)
	case bias != "":
		return fmt.Sprintf("textureSampleBias(%s, %s, %s, %s)", tex, samp, coord, bias)
	}
	return fmt.Sprintf("textureSample(%s, %s, %s)", tex, samp, coord)
}

// textureRef resolves a texture argument to its WGSL name and sampler.
// Arguments that are not declared textures are passed through with a
// warning and a guessed sampler name.
func (p *pass) textureRef(call int, arg [2]int, quiet bool) (string, string) {
	k := p.next(arg[0])
	if k < arg[1] && p.toks[k].Kind == lexer.Ident && p.next(k+1) >= arg[1] && !p.locals[p.toks[k].Text] {
		if b, ok := p.textures[p.toks[k].Text]; ok {
			return b.Name, b.Sampler
		}
	}
	tex := strings.TrimSpace(p.expr(arg[0], arg[1]))
	if !quiet {
		p.warnAt(call, diagnostics.CodeUnknownTexture, "%q is not a declared texture input; assuming sampler %s",
			tex, layout.SamplerName(tex))
	}
	return tex, layout.SamplerName(tex)
}

// textureMethod rewrites HLSL texture methods such as tex.Sample(s, uv).
func (p *pass) textureMethod(recv, method, open, hi int, sb *strings.Builder) int {
	c := p.closeOf(open, hi)
	parts := p.split(open+1, c, ",")
	arg := func(k int) string { return strings.TrimSpace(p.expr(parts[k][0], parts[k][1])) }
	self := [2]int{recv, recv + 1}
	n := len(parts)
	switch name := p.toks[method].Text; {
	case name == "Sample" && n >= 2:
		sb.WriteString(p.sample(recv, self, arg(1), "", ""))
	case name == "SampleLevel" && n >= 3:
		sb.WriteString(p.sample(recv, self, arg(1), arg(2), ""))
	case name == "SampleBias" && n >= 3:
		sb.WriteString(p.sample(recv, self, arg(1), "", arg(2)))
	case name == "Load" && n >= 1:
		tex, _ := p.textureRef(recv, self, true)
		a := arg(0)
		fmt.Fprintf(sb, "textureLoad(%s, (%s).xy, (%s).z)", tex, a, a)
	default:
		p.warnAt(method, diagnostics.CodeUnsupportedSyntax, "texture method %s is not supported", name)
		tex, _ := p.textureRef(recv, self, true)
		fmt.Fprintf(sb, "%s.%s(%s)", tex, name, strings.Join(p.args(open+1, c), ", "))
	}
	return c + 1
}

// number normalizes literal suffixes: f and u survive, h and l are dropped,
// and leading-zero octal integers become decimal.
func number(s string) string {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		body := strings.TrimRight(s, "uUlL")
		if strings.ContainsAny(s[len(body):], "uU") {
			return body + "u"
		}
		return body
	}
	body := strings.TrimRight(s, "fFuUhlL")
	suffix := strings.ToLower(s[len(body):])
	switch {
	case strings.Contains(suffix, "u"):
		suffix = "u"
	case strings.Contains(suffix, "f"):
		suffix = "f"
	default:
		suffix = ""
	}
	if len(body) > 1 && body[0] == '0' && strings.Trim(body, "0123456789") == "" {
		if v, err := strconv.ParseInt(body, 8, 64); err == nil {
			body = strconv.FormatInt(v, 10)
		}
	}
	return body + suffix
}
