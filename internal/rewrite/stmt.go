package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
)

// block rewrites the statements in [lo, hi), echoing the trivia between them.
func (p *pass) block(lo, hi int, sc scope, sb *strings.Builder) {
	for i := lo; i < hi; {
		if p.toks[i].Trivia() {
			sb.WriteString(p.toks[i].Text)
			i++
			continue
		}
		next := p.statement(i, hi, sc, sb)
		if next <= i {
			next = i + 1
		}
		i = next
	}
}

// statement rewrites the statement starting at the significant token i and
// returns the index just past it.
func (p *pass) statement(i, hi int, sc scope, sb *strings.Builder) int {
	t := p.toks[i]
	if t.Kind == lexer.Directive {
		p.directive(i)
		return i + 1
	}
	switch {
	case t.Is("{"):
		c := p.closeOf(i, hi)
		sb.WriteString("{")
		p.block(i+1, c, scopeFunction, sb)
		if c < hi {
			sb.WriteString("}")
		}
		return c + 1
	case t.Is(";"):
		if sc == scopeFunction {
			sb.WriteString(";")
		}
		return i + 1
	case t.Is("}") || t.Is(")") || t.Is("]"):
		p.warnAt(i, diagnostics.CodeUnbalancedDelimiter, "stray %q dropped", t.Text)
		return i + 1
	case t.Is("["):
		return p.attribute(i, hi)
	case t.Is("precision"):
		end := p.stmtEnd(i, hi)
		p.infoAt(i, diagnostics.CodeDirectiveDropped, "precision statement dropped; WGSL has no precision qualifiers")
		return end + 1
	case t.Is("if"):
		return p.ifStmt(i, hi, sb)
	case t.Is("for"):
		return p.forStmt(i, hi, sb)
	case t.Is("while"):
		return p.whileStmt(i, hi, sb)
	case t.Is("do"):
		return p.doStmt(i, hi, sb)
	case t.Is("switch"):
		return p.switchStmt(i, hi, sb)
	case t.Is("return"):
		return p.returnStmt(i, hi, sb)
	case t.Is("struct") && sc == scopeGlobal:
		return p.structDecl(i, hi, sb)
	case t.Is("layout") && sc == scopeGlobal && p.workgroupLayout(i, hi):
		return p.stmtEnd(i, hi) + 1
	}
	if d, ok := p.declStart(i, hi); ok {
		return p.declaration(d, hi, sc, sb)
	}
	end := p.stmtEnd(i, hi)
	if sc == scopeGlobal {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "global statement %q is not a declaration",
			strings.TrimSpace(p.text(i, end)))
	}
	sb.WriteString(p.expr(i, end))
	if end < hi && p.toks[end].Is(";") {
		sb.WriteString(";")
		return end + 1
	}
	return end
}

func (p *pass) directive(i int) {
	text := strings.TrimSpace(p.toks[i].Text)
	name := strings.Fields(strings.TrimPrefix(text, "#"))
	word := ""
	if len(name) > 0 {
		word = name[0]
	}
	switch word {
	case "version", "extension", "pragma", "line":
		p.infoAt(i, diagnostics.CodeDirectiveDropped, "#%s dropped", word)
	default:
		p.warnAt(i, diagnostics.CodeDirectiveDropped, "#%s was not preprocessed and is dropped", word)
	}
}

// attribute drops a bracketed attribute, remembering [numthreads(x,y,z)].
func (p *pass) attribute(i, hi int) int {
	c := p.closeOf(i, hi)
	n := p.next(i + 1)
	if p.is(n, "numthreads") {
		open := p.next(n + 1)
		if p.is(open, "(") {
			size := p.workgroupSize(p.split(open+1, p.closeOf(open, c), ","))
			p.pending = &size
		}
	}
	return c + 1
}

func (p *pass) workgroupSize(parts [][2]int) [3]int {
	size := [3]int{1, 1, 1}
	for k, part := range parts {
		if k > 2 {
			break
		}
		v, err := strconv.Atoi(strings.TrimSpace(p.text(part[0], part[1])))
		if err != nil || v < 1 {
			p.warnAt(part[0], diagnostics.CodeUnsupportedSyntax, "workgroup size %q is not a positive integer",
				strings.TrimSpace(p.text(part[0], part[1])))
			continue
		}
		size[k] = v
	}
	return size
}

// workgroupLayout consumes "layout(local_size_x = 8, ...) in;".
func (p *pass) workgroupLayout(i, hi int) bool {
	open := p.next(i + 1)
	if !p.is(open, "(") {
		return false
	}
	c := p.closeOf(open, hi)
	in := p.next(c + 1)
	if !p.is(in, "in") || !p.is(p.next(in+1), ";") {
		return false
	}
	for _, part := range p.split(open+1, c, ",") {
		kv := p.split(part[0], part[1], "=")
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(p.text(kv[0][0], kv[0][1]))
		v, err := strconv.Atoi(strings.TrimSpace(p.text(kv[1][0], kv[1][1])))
		if err != nil || v < 1 {
			continue
		}
		switch key {
		case "local_size_x":
			p.workgroup[0] = v
		case "local_size_y":
			p.workgroup[1] = v
		case "local_size_z":
			p.workgroup[2] = v
		}
	}
	return true
}

// body rewrites the statement controlled by if/for/while, adding the braces
// WGSL requires when the source omits them.
func (p *pass) body(from, hi int, sb *strings.Builder) int {
	k := p.next(from)
	if k >= hi {
		sb.WriteString(" {}")
		return hi
	}
	p.trivia(from, k, sb)
	if p.toks[k].Is("{") {
		return p.statement(k, hi, scopeFunction, sb)
	}
	if k == from {
		sb.WriteString(" ")
	}
	sb.WriteString("{ ")
	end := p.statement(k, hi, scopeFunction, sb)
	sb.WriteString(" }")
	return end
}

// condition rewrites the parenthesized expression opening at i.
func (p *pass) condition(i, hi int) (string, int, bool) {
	open := p.next(i)
	if !p.is(open, "(") {
		return "", i, false
	}
	c := p.closeOf(open, hi)
	return strings.TrimSpace(p.expr(open+1, c)), c + 1, true
}

func (p *pass) ifStmt(i, hi int, sb *strings.Builder) int {
	cond, after, ok := p.condition(i+1, hi)
	if !ok {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "if without a condition")
		return p.stmtEnd(i, hi) + 1
	}
	sb.WriteString("if (" + cond + ")")
	end := p.body(after, hi, sb)
	k := p.next(end)
	if k >= hi || !p.toks[k].Is("else") {
		return end
	}
	p.trivia(end, k, sb)
	sb.WriteString("else")
	m := p.next(k + 1)
	if p.is(m, "if") && m < hi {
		p.trivia(k+1, m, sb)
		if m == k+1 {
			sb.WriteString(" ")
		}
		return p.ifStmt(m, hi, sb)
	}
	return p.body(k+1, hi, sb)
}

func (p *pass) forStmt(i, hi int, sb *strings.Builder) int {
	open := p.next(i + 1)
	if !p.is(open, "(") {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "malformed for statement")
		return p.stmtEnd(i, hi) + 1
	}
	c := p.closeOf(open, hi)
	parts := p.split(open+1, c, ";")
	if len(parts) != 3 {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "for statement needs three clauses")
		sb.WriteString("for (" + strings.TrimSpace(p.expr(open+1, c)) + ")")
		return p.body(c+1, hi, sb)
	}
	init := ""
	if k := p.next(parts[0][0]); k < parts[0][1] {
		if d, ok := p.declStart(k, parts[0][1]); ok {
			init = p.localDecl(d, parts[0][1], scopeFunction)
		} else {
			init = strings.TrimSpace(p.expr(parts[0][0], parts[0][1]))
		}
	}
	cond := strings.TrimSpace(p.expr(parts[1][0], parts[1][1]))
	update := strings.TrimSpace(p.expr(parts[2][0], parts[2][1]))
	fmt.Fprintf(sb, "for (%s; %s; %s)", init, cond, update)
	return p.body(c+1, hi, sb)
}

func (p *pass) whileStmt(i, hi int, sb *strings.Builder) int {
	cond, after, ok := p.condition(i+1, hi)
	if !ok {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "while without a condition")
		return p.stmtEnd(i, hi) + 1
	}
	sb.WriteString("while (" + cond + ")")
	return p.body(after, hi, sb)
}

// doStmt turns do { ... } while (c); into a loop with a continuing block.
func (p *pass) doStmt(i, hi int, sb *strings.Builder) int {
	var inner strings.Builder
	end := p.body(i+1, hi, &inner)
	w := p.next(end)
	if !p.is(w, "while") {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "do without while")
		sb.WriteString("loop" + inner.String())
		return end
	}
	cond, after, ok := p.condition(w+1, hi)
	if !ok {
		cond = "false"
	}
	text := strings.TrimRightFunc(inner.String(), isSpace)
	text = strings.TrimSuffix(text, "}")
	fmt.Fprintf(sb, "loop%s    continuing { break if !(%s); }\n}", text, cond)
	semi := p.next(after)
	if p.is(semi, ";") {
		return semi + 1
	}
	return after
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

// switchStmt regroups C case labels into WGSL case clauses.
func (p *pass) switchStmt(i, hi int, sb *strings.Builder) int {
	sel, after, ok := p.condition(i+1, hi)
	open := p.next(after)
	if !ok || !p.is(open, "{") {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "malformed switch statement")
		return p.stmtEnd(i, hi) + 1
	}
	c := p.closeOf(open, hi)
	sb.WriteString("switch (" + sel + ") {")

	type clause struct {
		labels []string
		at     int
		body   strings.Builder
		last   string
	}
	var clauses []*clause
	var cur *clause
	for k := open + 1; k < c; {
		t := p.toks[k]
		if t.Trivia() {
			if cur != nil {
				cur.body.WriteString(t.Text)
			}
			k++
			continue
		}
		if t.Is("case") || t.Is("default") {
			if cur == nil || cur.last != "" || strings.TrimSpace(cur.body.String()) != "" {
				cur = &clause{at: k}
				clauses = append(clauses, cur)
			}
			colon := k + 1
			for colon < c && !p.toks[colon].Is(":") {
				colon++
			}
			if t.Is("default") {
				cur.labels = append(cur.labels, "default")
			} else {
				cur.labels = append(cur.labels, strings.TrimSpace(p.expr(k+1, colon)))
			}
			k = colon + 1
			continue
		}
		if cur == nil {
			cur = &clause{at: k}
			clauses = append(clauses, cur)
		}
		cur.last = t.Text
		k = p.statement(k, c, scopeFunction, &cur.body)
	}
	for n, cl := range clauses {
		labels := strings.Join(cl.labels, ", ")
		if labels == "default" {
			sb.WriteString("\ndefault: {")
		} else {
			sb.WriteString("\ncase " + labels + ": {")
		}
		body := strings.TrimRightFunc(cl.body.String(), isSpace)
		body = strings.TrimSuffix(body, "break;")
		sb.WriteString(body)
		sb.WriteString("\n}")
		switch cl.last {
		case "break", "return", "continue", "discard":
		default:
			if n < len(clauses)-1 && cl.last != "" {
				p.warnAt(cl.at, diagnostics.CodeUnsupportedSyntax,
					"case falls through; WGSL cases never fall through")
			}
		}
	}
	sb.WriteString("\n}")
	return c + 1
}

func (p *pass) returnStmt(i, hi int, sb *strings.Builder) int {
	end := p.stmtEnd(i+1, hi)
	value := strings.TrimSpace(p.expr(i+1, end))
	if value == "" && p.main != nil && p.main.open {
		value = p.resultFor()
	}
	if value != "" {
		value = " " + value
	}
	sb.WriteString("return" + value + ";")
	if end < hi && p.toks[end].Is(";") {
		return end + 1
	}
	return end
}

// member is one field of a struct declaration.
type member struct {
	name     string
	typ      string
	semantic string
}

// structDecl rewrites a struct, turning HLSL semantics into attributes.
func (p *pass) structDecl(i, hi int, sb *strings.Builder) int {
	n := p.next(i + 1)
	open := p.next(n + 1)
	if n >= hi || p.toks[n].Kind != lexer.Ident || !p.is(open, "{") {
		p.warnAt(i, diagnostics.CodeUnsupportedSyntax, "anonymous or malformed struct dropped")
		return p.stmtEnd(i, hi) + 1
	}
	name := p.toks[n].Text
	c := p.closeOf(open, hi)
	var members []member
	for _, part := range p.split(open+1, c, ";") {
		k := p.next(part[0])
		if k >= part[1] {
			continue
		}
		d, ok := p.declStart(k, part[1])
		if !ok {
			p.warnAt(k, diagnostics.CodeUnsupportedDecl, "struct member %q not understood",
				strings.TrimSpace(p.text(part[0], part[1])))
			continue
		}
		for _, dec := range p.declarators(d.name, part[1]) {
			members = append(members, member{
				name:     p.declName(dec.name),
				typ:      p.arrayType(d, dec),
				semantic: dec.semantic,
			})
		}
	}
	p.structs[name] = members

	fmt.Fprintf(sb, "struct %s {\n", p.declName(n))
	loc := 0
	for _, m := range members {
		attr := ""
		if m.semantic != "" {
			attr, m.typ = semanticAttr(m.semantic, m.typ, &loc)
			attr += " "
		}
		fmt.Fprintf(sb, "    %s%s: %s,\n", attr, m.name, m.typ)
	}
	sb.WriteString("}")
	end := p.next(c + 1)
	if p.is(end, ";") {
		return end + 1
	}
	return c + 1
}
