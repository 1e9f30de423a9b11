// Package preprocess strips conditional-compilation directives, expands
// object-like macros and inlines imports before a shader reaches the front ends.
//
// Removed lines are blanked rather than deleted so line numbers in later
// diagnostics still point at the original source. Inlined imports do shift the
// lines that follow them.
package preprocess

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/lexer"
)

// DefaultMaxImportDepth bounds import recursion when Options leaves it unset.
const DefaultMaxImportDepth = 16

var (
	// ErrImportDepth is returned when an import chain is deeper than MaxImportDepth.
	ErrImportDepth = errors.New("import depth exceeded")
	// ErrImportCycle is returned when a module imports itself, directly or not.
	ErrImportCycle = errors.New("import cycle")
)

// Options configures a Preprocessor.
type Options struct {
	// MaxImportDepth is the deepest import chain that is expanded (0 = default).
	MaxImportDepth int
	// Loader resolves #import and #include paths. Nil means every import is
	// unresolved.
	Loader Loader
	// Flags are boolean build-time conditions, e.g. DEBUG.
	Flags map[string]bool
	// Defines are object-like macros set by the caller. They take precedence over
	// #define lines in the source.
	Defines map[string]string
}

// Result is the expanded source with everything noticed along the way.
type Result struct {
	Source      string
	Imports     []string
	Diagnostics []diagnostics.Diagnostic
}

// Preprocessor runs the directive pass. It holds no per-call state and may be
// shared between goroutines.
type Preprocessor struct {
	opts Options
}

// New returns a preprocessor with the given options.
func New(opts Options) *Preprocessor {
	if opts.MaxImportDepth <= 0 {
		opts.MaxImportDepth = DefaultMaxImportDepth
	}
	return &Preprocessor{opts: opts}
}

// Process is shorthand for New(opts).Process(source).
func Process(source string, opts Options) (*Result, error) {
	return New(opts).Process(source)
}

// handled lists the directives this package consumes. Everything else
// (#version, #extension, #pragma, ...) is passed through for the front ends.
var handled = map[string]bool{
	"if": true, "ifdef": true, "ifndef": true, "elif": true, "else": true, "endif": true,
	"define": true, "undef": true, "import": true, "include": true,
}

// NeedsPreprocessing reports whether source contains a directive this package
// handles. Directives inside comments do not count.
func NeedsPreprocessing(source string) bool {
	if !strings.Contains(source, "#") {
		return false
	}
	for _, t := range lexer.Tokenize(source) {
		if t.Kind != lexer.Directive {
			continue
		}
		if kw, _ := directive(t.Text); handled[kw] {
			return true
		}
	}
	return false
}

// Process expands source. The returned error is non-nil only when import
// expansion was cut short (ErrImportDepth or ErrImportCycle); the Result is
// still complete up to that point and carries the matching Error diagnostic.
func (pp *Preprocessor) Process(source string) (*Result, error) {
	r := &run{
		opts:    pp.opts,
		defines: make(map[string]string, len(pp.opts.Defines)),
		seen:    make(map[string]bool),
		unknown: make(map[string]bool),
	}
	for k, v := range pp.opts.Defines {
		r.defines[k] = v
	}
	var sb strings.Builder
	r.file("", source, 0, &sb)
	return &Result{Source: sb.String(), Imports: r.imports, Diagnostics: r.diags}, r.err
}

// frame is one level of #if nesting.
type frame struct {
	parent  bool // enclosing block is emitted
	active  bool // this branch is emitted
	taken   bool // some branch of this block was already chosen
	sawElse bool
	line    int
}

type run struct {
	opts    Options
	defines map[string]string
	frames  []frame
	stack   []string
	seen    map[string]bool
	unknown map[string]bool
	imports []string
	diags   []diagnostics.Diagnostic
	halted  bool
	err     error
}

func (r *run) add(d diagnostics.Diagnostic) { r.diags = append(r.diags, d) }

func (r *run) active() bool {
	n := len(r.frames)
	return n == 0 || r.frames[n-1].active
}

// file expands one module into sb. Conditional blocks may not span modules.
func (r *run) file(name, src string, depth int, sb *strings.Builder) {
	r.stack = append(r.stack, name)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	base := len(r.frames)
	for _, t := range lexer.Tokenize(src) {
		switch {
		case t.Kind == lexer.Directive:
			r.directive(name, t, base, depth, sb)
		case !r.active():
			sb.WriteString(blank(t.Text))
		case t.Kind == lexer.Ident:
			sb.WriteString(r.expand(t.Text, nil))
		default:
			sb.WriteString(t.Text)
		}
	}
	if len(r.frames) > base {
		open := r.frames[base]
		r.add(diagnostics.Warningf(diagnostics.CodeUnbalanced,
			"%d conditional block(s) not closed by #endif%s", len(r.frames)-base, in(name)).
			At(open.line, 1, 0))
		r.frames = r.frames[:base]
	}
}

func (r *run) directive(name string, t lexer.Token, base, depth int, sb *strings.Builder) {
	kw, rest := directive(t.Text)
	rest = stripComment(rest)
	at := func(d diagnostics.Diagnostic) diagnostics.Diagnostic {
		return d.At(t.Line, t.Column, len(firstLine(t.Text)))
	}
	top := func() *frame {
		if len(r.frames) == base {
			r.add(at(diagnostics.Warningf(diagnostics.CodeUnbalanced, "#%s without #if%s", kw, in(name))))
			return nil
		}
		return &r.frames[len(r.frames)-1]
	}

	switch kw {
	case "if":
		r.push(t, func() bool { return r.condition(rest, t, name) })
	case "ifdef":
		r.push(t, func() bool { return r.defined(word(rest)) })
	case "ifndef":
		r.push(t, func() bool { return !r.defined(word(rest)) })
	case "elif":
		f := top()
		if f == nil {
			break
		}
		if f.sawElse {
			r.add(at(diagnostics.Warningf(diagnostics.CodeUnbalanced, "#elif after #else")))
		}
		v := f.parent && !f.taken && r.condition(rest, t, name)
		f.active = v
		f.taken = f.taken || v
	case "else":
		f := top()
		if f == nil {
			break
		}
		if f.sawElse {
			r.add(at(diagnostics.Warningf(diagnostics.CodeUnbalanced, "duplicate #else")))
		}
		f.active = f.parent && !f.taken
		f.taken, f.sawElse = true, true
	case "endif":
		if top() != nil {
			r.frames = r.frames[:len(r.frames)-1]
		}
	case "define":
		if r.active() && !r.define(rest, t) {
			sb.WriteString(t.Text)
			return
		}
	case "undef":
		if r.active() {
			delete(r.defines, word(rest))
		}
	case "import", "include":
		if r.active() {
			r.include(name, rest, t, depth, sb)
		}
	default:
		if r.active() {
			sb.WriteString(t.Text)
			return
		}
	}
	sb.WriteString(blank(t.Text))
}

func (r *run) push(t lexer.Token, cond func() bool) {
	parent := r.active()
	v := parent && cond()
	r.frames = append(r.frames, frame{parent: parent, active: v, taken: v, line: t.Line})
}

func (r *run) defined(name string) bool {
	if r.opts.Flags[name] {
		return true
	}
	_, ok := r.defines[name]
	return ok
}

// define records an object-like macro. It returns false when the line must be
// kept as written.
func (r *run) define(rest string, t lexer.Token) bool {
	name, value := splitWord(rest)
	at := func(d diagnostics.Diagnostic) diagnostics.Diagnostic {
		return d.At(t.Line, t.Column, len(firstLine(t.Text)))
	}
	if name == "" {
		r.add(at(diagnostics.Warningf(diagnostics.CodeMacroUnsupported, "#define without a name")))
		return true
	}
	if strings.HasPrefix(value, "(") {
		r.add(at(diagnostics.Warningf(diagnostics.CodeMacroUnsupported,
			"function-like macro %s is not expanded", name).
			WithSuggestion("rewrite " + name + " as a function")))
		return false
	}
	if _, ok := r.opts.Defines[name]; ok {
		r.add(at(diagnostics.Infof(diagnostics.CodeDefine, "macro %s is set by the caller; keeping the caller's value", name)))
		return true
	}
	r.defines[name] = strings.TrimSpace(value)
	r.add(at(diagnostics.Infof(diagnostics.CodeDefine, "macro %s defined", name)))
	return true
}

// expand substitutes object-like macros in name, recursively. guard holds the
// macros currently being expanded so self-references stay literal.
func (r *run) expand(name string, guard []string) string {
	v, ok := r.defines[name]
	if !ok || slices.Contains(guard, name) {
		return name
	}
	guard = append(guard, name)
	var sb strings.Builder
	for _, t := range lexer.Tokenize(v) {
		if t.Kind == lexer.Ident {
			sb.WriteString(r.expand(t.Text, guard))
			continue
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func (r *run) include(name, rest string, t lexer.Token, depth int, sb *strings.Builder) {
	at := func(d diagnostics.Diagnostic) diagnostics.Diagnostic {
		return d.At(t.Line, t.Column, len(firstLine(t.Text)))
	}
	path, ok := importPath(rest)
	if !ok {
		r.add(at(diagnostics.Warningf(diagnostics.CodeImportError, "malformed import %q%s", strings.TrimSpace(rest), in(name))))
		return
	}
	if r.halted {
		return
	}
	if depth+1 > r.opts.MaxImportDepth {
		r.add(at(diagnostics.Errorf(diagnostics.CodeImportDepth,
			"import %q exceeds the maximum depth of %d%s", path, r.opts.MaxImportDepth, in(name)).
			WithSuggestion("flatten the import chain or raise the maximum import depth")))
		r.halted = true
		r.err = fmt.Errorf("%w: %s at depth %d", ErrImportDepth, path, depth+1)
		return
	}
	if slices.Contains(r.stack, path) {
		chain := strings.Join(append(slices.Clone(r.stack[1:]), path), " -> ")
		r.add(at(diagnostics.Errorf(diagnostics.CodeImportCycle, "import cycle: %s", chain)))
		if r.err == nil {
			r.err = fmt.Errorf("%w: %s", ErrImportCycle, chain)
		}
		return
	}
	if r.seen[path] {
		r.add(at(diagnostics.Infof(diagnostics.CodeImportDuplicate, "%q already imported; skipped", path)))
		return
	}
	r.seen[path] = true
	if r.opts.Loader == nil {
		r.add(at(diagnostics.Warningf(diagnostics.CodeImportError, "cannot resolve %q: no module loader configured", path)))
		return
	}
	src, err := r.opts.Loader.Load(path)
	if err != nil {
		r.add(at(diagnostics.Warningf(diagnostics.CodeImportError, "cannot resolve %q: %v", path, err)))
		return
	}
	r.imports = append(r.imports, path)
	var sub strings.Builder
	r.file(path, src, depth+1, &sub)
	sb.WriteString(strings.TrimSuffix(sub.String(), "\n"))
}

// directive splits a directive token into its keyword and the rest of the line.
func directive(text string) (string, string) {
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	return splitWord(text)
}

// splitWord returns the leading identifier of s and the untrimmed remainder.
func splitWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && isIdent(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func word(s string) string {
	w, _ := splitWord(s)
	return w
}

func isIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// importPath accepts "path", <path>, a bare path, and WESL module paths
// (a::b → a/b).
func importPath(rest string) (string, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(rest), ";")
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, `"`):
		end := strings.IndexByte(s[1:], '"')
		if end < 0 {
			return "", false
		}
		s = s[1 : end+1]
	case strings.HasPrefix(s, "<"):
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return "", false
		}
		s = s[1:end]
	default:
		if f := strings.Fields(s); len(f) > 0 {
			s = f[0]
		}
		s = strings.ReplaceAll(s, "::", "/")
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func stripComment(s string) string {
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "/*"); i >= 0 {
		s = s[:i]
	}
	return s
}

// blank keeps only the newlines of s.
func blank(s string) string {
	return strings.Repeat("\n", strings.Count(s, "\n"))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func in(name string) string {
	if name == "" {
		return ""
	}
	return " in " + name
}
