// Package rewrite turns a GLSL, ISF or HLSL shader body into WGSL text. It
// works on the lossless token stream from package lexer: statements are
// restructured where WGSL syntax differs and every identifier is looked up in
// one substitution table, so comments and layout survive and names that only
// contain a built-in are left alone.
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/layout"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/shader"
)

// Config describes the shader a Rewriter works on.
type Config struct {
	Format shader.Format
	Layout layout.Layout
	// Aliases maps GLSL/HLSL uniform names to built-in uniform fields.
	Aliases map[string]string
	// BodyLine is the source line the body starts on; diagnostics are reported
	// in source coordinates.
	BodyLine int
}

// Output is the result of rewriting a body.
type Output struct {
	Source      string
	Stage       shader.Stage
	EntryPoints []string
	// Workgroup is only meaningful for compute shaders.
	Workgroup   [3]int
	Diagnostics []diagnostics.Diagnostic
}

// Rewriter rewrites shader bodies for one resource layout. It holds no
// per-call state and is safe for concurrent use.
type Rewriter struct {
	cfg      Config
	access   map[string]string
	textures map[string]layout.TextureBinding
}

// New returns a Rewriter for cfg.
func New(cfg Config) *Rewriter {
	r := &Rewriter{
		cfg:      cfg,
		access:   make(map[string]string),
		textures: make(map[string]layout.TextureBinding),
	}
	for name, field := range cfg.Aliases {
		r.access[name] = "uniforms." + field
	}
	for _, f := range cfg.Layout.Fields {
		if f.Builtin || f.Source == "" {
			continue
		}
		expr := "uniforms." + f.Name
		switch {
		case f.TargetType == "bool":
			expr = "(" + expr + " != 0u)"
		case f.Kind == shader.KindEvent.String():
			// events are declared bool in ISF and stored as i32
			expr = "(" + expr + " != 0)"
		}
		r.access[f.Source] = expr
	}
	for _, t := range cfg.Layout.Textures {
		r.textures[t.Source] = t
	}
	return r
}

// Rewrite converts inputs into a layout and rewrites body against it. It is a
// shorthand for callers that have no parsed header.
func Rewrite(body string, format shader.Format, inputs []shader.InputDeclaration) (string, []diagnostics.Diagnostic) {
	lay, diags := layout.MapTypes(inputs)
	out := New(Config{Format: format, Layout: lay}).Rewrite(body)
	return out.Source, append(diags, out.Diagnostics...)
}

// Rewrite rewrites body. It never fails; problems are reported as diagnostics
// and the best-effort text is always returned.
func (r *Rewriter) Rewrite(body string) Output {
	p := newPass(r, body)
	p.inferStage()
	var sb strings.Builder
	p.block(0, len(p.toks), scopeGlobal, &sb)
	return p.finish(sb.String())
}

type scope int

const (
	scopeGlobal scope = iota
	scopeFunction
)

// pass is the state of one Rewrite call.
type pass struct {
	*Rewriter
	toks  []lexer.Token
	match []int
	diags []diagnostics.Diagnostic

	stage     shader.Stage
	workgroup [3]int
	pending   *[3]int // [numthreads] waiting for its function

	structs   map[string][]member
	used      map[string]bool
	inputs    []ioVar
	outputs   []ioVar
	entries   []string
	main      *glslMain
	warned    map[string]bool
	locals    map[string]bool
	vars      map[string]bool // locals declared with var
	ptrs      map[string]bool // out parameters, held as pointers
	outSigs   map[string][]bool
	fnStage   shader.Stage
	fnIsEntry bool
}

func newPass(r *Rewriter, body string) *pass {
	p := &pass{
		Rewriter:  r,
		toks:      lexer.Tokenize(body),
		structs:   make(map[string][]member),
		used:      make(map[string]bool),
		warned:    make(map[string]bool),
		locals:    make(map[string]bool),
		vars:      make(map[string]bool),
		ptrs:      make(map[string]bool),
		outSigs:   make(map[string][]bool),
		workgroup: [3]int{1, 1, 1},
	}
	p.match = matchBrackets(p.toks)
	p.scanSignatures()
	return p
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

// matchBrackets pairs every opening bracket with its closer; unmatched
// brackets map to -1.
func matchBrackets(toks []lexer.Token) []int {
	match := make([]int, len(toks))
	var stack []int
	for i, t := range toks {
		match[i] = -1
		if t.Kind != lexer.Punct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]", "}":
			// pop to the nearest opener of the same shape so one stray closer
			// does not unbalance the rest of the file
			for k := len(stack) - 1; k >= 0; k-- {
				if closers[toks[stack[k]].Text] == t.Text {
					match[stack[k]] = i
					match[i] = stack[k]
					stack = stack[:k]
					break
				}
			}
		}
	}
	return match
}

// next returns the index of the first significant token at or after i.
func (p *pass) next(i int) int {
	for i < len(p.toks) && p.toks[i].Trivia() {
		i++
	}
	return i
}

// prev returns the index of the last significant token before i, or -1.
func (p *pass) prev(i int) int {
	for i--; i >= 0 && p.toks[i].Trivia(); i-- {
	}
	return i
}

// is reports whether the token at i exists and is s.
func (p *pass) is(i int, s string) bool {
	return i >= 0 && i < len(p.toks) && p.toks[i].Is(s)
}

// closeOf returns the closer matching the opener at i, or hi when it is
// unbalanced within [i, hi).
func (p *pass) closeOf(i, hi int) int {
	c := p.match[i]
	if c < 0 || c >= hi {
		p.warnAt(i, diagnostics.CodeUnbalancedDelimiter, "unbalanced %q", p.toks[i].Text)
		return hi
	}
	return c
}

// stmtEnd returns the index of the ';' ending the statement starting at i, or
// hi when there is none.
func (p *pass) stmtEnd(i, hi int) int {
	for i < hi {
		t := p.toks[i]
		if t.Kind == lexer.Punct {
			switch t.Text {
			case ";":
				return i
			case "(", "[", "{":
				if c := p.match[i]; c > i && c < hi {
					i = c + 1
					continue
				}
			case "}":
				return i
			}
		}
		i++
	}
	return hi
}

// split cuts [lo, hi) at depth-0 occurrences of sep.
func (p *pass) split(lo, hi int, sep string) [][2]int {
	var parts [][2]int
	start := lo
	for i := lo; i < hi; i++ {
		t := p.toks[i]
		if t.Kind != lexer.Punct {
			continue
		}
		if c := p.match[i]; c > i && c < hi && closers[t.Text] != "" {
			i = c
			continue
		}
		if t.Text == sep {
			parts = append(parts, [2]int{start, i})
			start = i + 1
		}
	}
	if p.next(start) < hi || len(parts) > 0 {
		parts = append(parts, [2]int{start, hi})
	}
	return parts
}

// trivia writes the whitespace and comments in [lo, hi).
func (p *pass) trivia(lo, hi int, sb *strings.Builder) {
	for i := lo; i < hi && i < len(p.toks); i++ {
		if p.toks[i].Trivia() {
			sb.WriteString(p.toks[i].Text)
		}
	}
}

// text returns the raw source of [lo, hi).
func (p *pass) text(lo, hi int) string {
	if hi > len(p.toks) {
		hi = len(p.toks)
	}
	if lo >= hi {
		return ""
	}
	return lexer.Join(p.toks[lo:hi])
}

func (p *pass) at(d diagnostics.Diagnostic, i int) diagnostics.Diagnostic {
	if i < 0 || i >= len(p.toks) {
		return d
	}
	t := p.toks[i]
	line := t.Line
	if p.cfg.BodyLine > 0 {
		line += p.cfg.BodyLine - 1
	}
	return d.At(line, t.Column, len(t.Text))
}

func (p *pass) warnAt(i int, code, format string, args ...any) {
	p.diags = append(p.diags, p.at(diagnostics.Warningf(code, format, args...), i))
}

func (p *pass) infoAt(i int, code, format string, args ...any) {
	p.diags = append(p.diags, p.at(diagnostics.Infof(code, format, args...), i))
}

// warnOnce reports one warning per key.
func (p *pass) warnOnce(key string, i int, code, format string, args ...any) {
	if p.warned[key] {
		return
	}
	p.warned[key] = true
	p.warnAt(i, code, format, args...)
}

// finish splices the generated entry wrapper and module-scope mirrors into the
// rewritten text.
func (p *pass) finish(body string) Output {
	if p.main != nil {
		body = strings.Replace(body, p.main.marker, p.main.assemble(p), 1)
	}
	var sb strings.Builder
	if decls := p.mirrorDecls(); decls != "" {
		sb.WriteString(decls)
		sb.WriteString("\n")
	}
	sb.WriteString(body)
	if len(p.entries) == 0 {
		p.diags = append(p.diags, diagnostics.Errorf(diagnostics.CodeEntryPointMissing,
			"no entry point found; expected a main function").
			WithSuggestion("Declare void main() or mark an HLSL function with a semantic"))
	}
	return Output{
		Source:      sb.String(),
		Stage:       p.stage,
		EntryPoints: p.entries,
		Workgroup:   p.workgroup,
		Diagnostics: p.diags,
	}
}

// mirrorDecls declares the private globals backing GLSL stage variables.
func (p *pass) mirrorDecls() string {
	names := make([]string, 0, len(p.used))
	for name := range p.used {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		m := mirrors[name]
		fmt.Fprintf(&sb, "var<private> %s: %s;\n", m.name, m.typ)
	}
	for _, v := range append(append([]ioVar{}, p.inputs...), p.outputs...) {
		fmt.Fprintf(&sb, "var<private> %s: %s;\n", v.name, v.typ)
	}
	return sb.String()
}
