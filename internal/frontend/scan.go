package frontend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
	"github.com/shaderconv/converter/internal/shader"
)

// builtinAliases are uniform names that shader playgrounds use for the standard
// built-ins. They are not turned into inputs; the rewriter maps them onto the
// built-in uniform fields.
var builtinAliases = map[string]string{
	"time":         "time",
	"iTime":        "time",
	"iGlobalTime":  "time",
	"u_time":       "time",
	"iTimeDelta":   "timeDelta",
	"iFrame":       "frame",
	"u_frame":      "frame",
	"iFrameRate":   "fps",
	"resolution":   "renderSize",
	"iResolution":  "renderSize",
	"u_resolution": "renderSize",
}

// statement is a top-level declaration spanning significant tokens lo..hi inclusive.
type statement struct {
	lo, hi int
}

// topLevel splits significant tokens into depth-0 statements. Function bodies end
// at their closing brace; struct-like declarations run to the semicolon. Directives
// are boundaries and never part of a statement.
func topLevel(toks []lexer.Token) []statement {
	var out []statement
	start, depth := -1, 0
	for i, t := range toks {
		if t.Kind == lexer.Directive {
			if depth == 0 {
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
		switch {
		case t.Is("(") || t.Is("[") || t.Is("{"):
			depth++
		case t.Is(")") || t.Is("]"):
			if depth > 0 {
				depth--
			}
		case t.Is("}"):
			if depth > 0 {
				depth--
			}
			if depth > 0 {
				continue
			}
			first := toks[start].Text
			switch first {
			case "struct", "uniform", "layout", "in", "out", "buffer":
				continue
			}
			end := i
			if i+1 < len(toks) && toks[i+1].Is(";") {
				end = i + 1
			}
			out = append(out, statement{start, end})
			start = -1
		case t.Is(";") && depth == 0:
			out = append(out, statement{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, statement{start, len(toks) - 1})
	}
	return out
}

// matching returns the index of the token closing the bracket at toks[i], or
// len(toks)-1 when it is unbalanced.
func matching(toks []lexer.Token, i int) int {
	open := toks[i].Text
	var close string
	switch open {
	case "(":
		close = ")"
	case "[":
		close = "]"
	case "{":
		close = "}"
	case "<":
		close = ">"
	default:
		return i
	}
	depth := 0
	for j := i; j < len(toks); j++ {
		switch toks[j].Text {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(toks) - 1
}

// span is a half-open byte range of the source.
type span struct{ start, end int }

func tokenSpan(toks []lexer.Token, st statement) span {
	last := toks[st.hi]
	return span{toks[st.lo].Offset, last.Offset + len(last.Text)}
}

// blank replaces the given spans with spaces, keeping newlines so that line
// numbers in the remaining body still match the source.
func blank(src string, spans []span) string {
	if len(spans) == 0 {
		return src
	}
	b := []byte(src)
	for _, s := range spans {
		for i := s.start; i < s.end && i < len(b); i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

// declarator is one name of a declaration list, with its initializer tokens.
type declarator struct {
	name     lexer.Token
	array    bool
	init     []lexer.Token
	semantic string
}

// declarators parses `a [= x], b[2], c : SEMANTIC` from toks[lo:hi].
func declarators(toks []lexer.Token, lo, hi int) []declarator {
	var out []declarator
	i := lo
	for i < hi {
		if toks[i].Kind != lexer.Ident {
			i++
			continue
		}
		d := declarator{name: toks[i]}
		i++
		for i < hi && !toks[i].Is(",") {
			switch {
			case toks[i].Is("["):
				d.array = true
				i = matching(toks, i) + 1
			case toks[i].Is(":") && i+1 < hi:
				d.semantic = toks[i+1].Text
				i += 2
				if i < hi && toks[i].Is("(") {
					i = matching(toks, i) + 1
				}
			case toks[i].Is("="):
				j := i + 1
				depth := 0
				for j < hi {
					if toks[j].Is("(") {
						depth++
					} else if toks[j].Is(")") {
						depth--
					} else if toks[j].Is(",") && depth == 0 {
						break
					}
					j++
				}
				d.init = toks[i+1 : j]
				i = j
			default:
				i++
			}
		}
		out = append(out, d)
		i++
	}
	return out
}

// literalDefault turns a simple initializer (a number, true/false or a vector
// constructor of numbers) into a typed default. Anything else yields no default.
func literalDefault(kind shader.InputKind, init []lexer.Token) (json.RawMessage, bool) {
	if len(init) == 0 {
		return nil, false
	}
	if len(init) == 1 {
		t := init[0]
		switch {
		case t.Text == "true" || t.Text == "false":
			return json.RawMessage(t.Text), true
		case t.Kind == lexer.Number:
			f, err := strconv.ParseFloat(strings.TrimRight(t.Text, "fFhHuUlL"), 64)
			if err != nil {
				return nil, false
			}
			raw, _ := json.Marshal(f)
			return raw, true
		}
		return nil, false
	}
	if init[0].Kind != lexer.Ident || !init[1].Is("(") || !init[len(init)-1].Is(")") {
		return nil, false
	}
	var nums []float64
	neg := false
	for _, t := range init[2 : len(init)-1] {
		switch {
		case t.Is(","):
		case t.Is("-"):
			neg = true
		case t.Kind == lexer.Number:
			f, err := strconv.ParseFloat(strings.TrimRight(t.Text, "fFhHuUlL"), 64)
			if err != nil {
				return nil, false
			}
			if neg {
				f = -f
			}
			neg = false
			nums = append(nums, f)
		default:
			return nil, false
		}
	}
	want := 0
	switch kind {
	case shader.KindPoint2D:
		want = 2
	case shader.KindColor:
		want = 4
	}
	if len(nums) == 1 && want > 1 {
		for len(nums) < want {
			nums = append(nums, nums[0])
		}
	}
	raw, _ := json.Marshal(nums)
	return raw, true
}

// inferred builds an input declaration for a uniform found in GLSL or HLSL source.
func inferred(kind shader.InputKind, d declarator, diags *[]diagnostics.Diagnostic) shader.InputDeclaration {
	in := shader.InputDeclaration{
		Name:     d.name.Text,
		Kind:     kind,
		Inferred: true,
		Location: &diagnostics.Location{
			Line:   d.name.Line,
			Column: d.name.Column,
			Length: len(d.name.Text),
		},
	}
	if raw, ok := literalDefault(kind, d.init); ok {
		if v, err := shader.DefaultValue(kind, raw); err == nil {
			in.Default = v
		}
	}
	*diags = append(*diags, diagnostics.Infof(diagnostics.CodeInputInferred,
		"input %q (%s) was inferred from a declaration", in.Name, kind).
		At(in.Location.Line, in.Location.Column, in.Location.Length))
	return in
}

// alias records a built-in alias and reports it.
func alias(p *shader.Parsed, tok lexer.Token, field string, diags *[]diagnostics.Diagnostic) {
	if p.Aliases == nil {
		p.Aliases = make(map[string]string)
	}
	p.Aliases[tok.Text] = field
	*diags = append(*diags, diagnostics.Infof(diagnostics.CodeBuiltinAlias,
		"uniform %q is mapped to the built-in %s", tok.Text, field).
		At(tok.Line, tok.Column, len(tok.Text)))
}

// preserve keeps a uniform without an input kind as a plain Uniforms field.
func preserve(p *shader.Parsed, tok lexer.Token, srcType, wgslType string, diags *[]diagnostics.Diagnostic) {
	loc := &diagnostics.Location{Line: tok.Line, Column: tok.Column, Length: len(tok.Text)}
	p.Preserved = append(p.Preserved, shader.Uniform{Name: tok.Text, Type: wgslType, Location: loc})
	*diags = append(*diags, diagnostics.Infof(diagnostics.CodePreservedUniform,
		"uniform %s %s has no input equivalent; it is kept as a %s field of Uniforms", srcType, tok.Text, wgslType).
		At(loc.Line, loc.Column, loc.Length))
}
