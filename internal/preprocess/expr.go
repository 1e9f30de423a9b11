package preprocess

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
)

var errEmptyCondition = errors.New("empty condition")

// condition evaluates an #if or #elif expression. Malformed expressions count
// as true so the guarded code still reaches the converter.
func (r *run) condition(expr string, at lexer.Token, name string) bool {
	e := &evaluator{r: r, at: at, toks: lexer.Significant(lexer.Tokenize(expr))}
	v, err := e.eval()
	if err != nil {
		r.add(diagnostics.Warningf(diagnostics.CodeBadCondition,
			"cannot evaluate %q%s: %v; assuming true", strings.TrimSpace(expr), in(name), err).
			At(at.Line, at.Column, len(firstLine(at.Text))))
		return true
	}
	return v != 0
}

// evaluator is a recursive-descent parser over the condition tokens:
//
//	or    = and { "||" and }
//	and   = cmp { "&&" cmp }
//	cmp   = unary [ ("=="|"!="|"<"|">"|"<="|">=") unary ]
//	unary = "!" unary | "(" or ")" | "defined" ident | "defined" "(" ident ")" | number | ident
type evaluator struct {
	r    *run
	at   lexer.Token
	toks []lexer.Token
	pos  int
	err  error
}

func (e *evaluator) eval() (int64, error) {
	if len(e.toks) == 0 {
		return 0, errEmptyCondition
	}
	v := e.or()
	if e.err == nil && e.pos < len(e.toks) {
		e.fail("unexpected %q", e.toks[e.pos].Text)
	}
	return v, e.err
}

func (e *evaluator) fail(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf(format, args...)
	}
}

func (e *evaluator) peek(s string) bool {
	return e.pos < len(e.toks) && e.toks[e.pos].Is(s)
}

func (e *evaluator) accept(s string) bool {
	if e.peek(s) {
		e.pos++
		return true
	}
	return false
}

func (e *evaluator) or() int64 {
	v := e.and()
	for e.accept("||") {
		w := e.and()
		v = truth(v != 0 || w != 0)
	}
	return v
}

func (e *evaluator) and() int64 {
	v := e.cmp()
	for e.accept("&&") {
		w := e.cmp()
		v = truth(v != 0 && w != 0)
	}
	return v
}

func (e *evaluator) cmp() int64 {
	v := e.unary()
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if !e.accept(op) {
			continue
		}
		w := e.unary()
		switch op {
		case "==":
			return truth(v == w)
		case "!=":
			return truth(v != w)
		case "<=":
			return truth(v <= w)
		case ">=":
			return truth(v >= w)
		case "<":
			return truth(v < w)
		default:
			return truth(v > w)
		}
	}
	return v
}

func (e *evaluator) unary() int64 {
	if e.pos >= len(e.toks) {
		e.fail("unexpected end of condition")
		return 0
	}
	t := e.toks[e.pos]
	e.pos++
	switch {
	case t.Is("!"):
		return truth(e.unary() == 0)
	case t.Is("("):
		v := e.or()
		if !e.accept(")") {
			e.fail("missing )")
		}
		return v
	case t.Is("defined"):
		paren := e.accept("(")
		if e.pos >= len(e.toks) || e.toks[e.pos].Kind != lexer.Ident {
			e.fail("defined needs an identifier")
			return 0
		}
		name := e.toks[e.pos].Text
		e.pos++
		if paren && !e.accept(")") {
			e.fail("missing )")
		}
		return truth(e.r.defined(name))
	case t.Kind == lexer.Number:
		n, err := number(t.Text)
		if err != nil {
			e.fail("bad number %q", t.Text)
		}
		return n
	case t.Kind == lexer.Ident:
		return e.r.value(t.Text, e.at, nil)
	}
	e.fail("unexpected %q", t.Text)
	return 0
}

// value resolves an identifier in a condition. Flags win over defines; an
// identifier that is neither is assumed true and reported once.
func (r *run) value(name string, at lexer.Token, guard []string) int64 {
	switch name {
	case "true":
		return 1
	case "false":
		return 0
	}
	if f, ok := r.opts.Flags[name]; ok {
		return truth(f)
	}
	if v, ok := r.defines[name]; ok {
		v = strings.TrimSpace(v)
		if n, err := number(v); err == nil {
			return n
		}
		if isName(v) && !slices.Contains(guard, v) {
			if _, known := r.defines[v]; known {
				return r.value(v, at, append(guard, name))
			}
		}
		if v == "false" {
			return 0
		}
		return 1
	}
	if !r.unknown[name] {
		r.unknown[name] = true
		r.add(diagnostics.Infof(diagnostics.CodeUnknownCondition,
			"condition %s is not defined; assuming true", name).
			At(at.Line, at.Column, len(firstLine(at.Text))).
			WithSuggestion("set the " + name + " flag to false to disable this block"))
	}
	return 1
}

func number(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimRight(s, "uUlL"), 0, 64)
}

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isName(s string) bool {
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdent(s[i]) {
			return false
		}
	}
	return true
}
