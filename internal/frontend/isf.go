package frontend

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/registry"
	"github.com/shaderconv/converter/internal/shader"
)

// ErrHeader is returned when an ISF header is present but cannot be decoded.
var ErrHeader = errors.New("malformed ISF header")

type isfFrontEnd struct{}

func init() {
	registry.Default.Register(isfFrontEnd{})
}

func (isfFrontEnd) Format() shader.Format { return shader.FormatISF }

// header locates the JSON comment block of an ISF source.
type header struct {
	start     int // offset of "/*"
	jsonStart int // offset of "{"
	jsonEnd   int // offset just past the matching "}"
	end       int // offset just past "*/"
	ambiguous string
}

// findHeader returns the first balanced /*{ ... }*/ block. ok is false when no
// opener exists. A non-empty ambiguous reason is set when delimiters could be
// matched in more than one way; the first balanced match is still used.
func findHeader(src string) (h header, ok bool, err error) {
	open := -1
	for from := 0; from < len(src); {
		i := strings.Index(src[from:], "/*")
		if i < 0 {
			break
		}
		i += from
		j := i + 2
		for j < len(src) && isSpace(src[j]) {
			j++
		}
		if j < len(src) && src[j] == '{' {
			open = i
			h.jsonStart = j
			break
		}
		from = i + 2
	}
	if open < 0 {
		if strings.Contains(src, "}*/") {
			h.ambiguous = "closing header delimiter found without an opening one"
		}
		return h, false, nil
	}
	h.start = open
	if strings.Contains(src[:open], "}*/") {
		h.ambiguous = "closing header delimiter appears before the opening one"
	}

	depth, inString := 0, false
	closeAt := -1
	for k := h.jsonStart; k < len(src) && closeAt < 0; k++ {
		c := src[k]
		switch {
		case inString && c == '\\':
			k++
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				closeAt = k
			}
		case c == '/' && k+1 < len(src) && src[k+1] == '*':
			if h.ambiguous == "" {
				h.ambiguous = "nested comment opener inside the header"
			}
		case c == '*' && k+1 < len(src) && src[k+1] == '/':
			// The comment closes before the JSON object balances.
			h.jsonEnd = k
			h.end = k + 2
			return h, true, nil
		}
	}
	if closeAt < 0 {
		return h, true, errors.New("header comment is not terminated")
	}
	h.jsonEnd = closeAt + 1
	k := h.jsonEnd
	for k < len(src) && isSpace(src[k]) {
		k++
	}
	if strings.HasPrefix(src[k:], "*/") {
		h.end = k + 2
	} else {
		next := strings.Index(src[k:], "*/")
		if next < 0 {
			return h, true, errors.New("header comment is not terminated")
		}
		h.end = k + next + 2
		h.ambiguous = "text between the JSON object and the closing delimiter"
	}
	if h.ambiguous == "" && strings.Contains(src[h.end:], "/*{") {
		h.ambiguous = "more than one header block; the first one is used"
	}
	return h, true, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// position converts a byte offset into a 1-based line and column.
func position(src string, off int) (line, col int) {
	if off > len(src) {
		off = len(src)
	}
	line = 1 + strings.Count(src[:off], "\n")
	col = off - strings.LastIndex(src[:off], "\n")
	return line, col
}

func (isfFrontEnd) Parse(source string) (*shader.Parsed, []diagnostics.Diagnostic, error) {
	var diags []diagnostics.Diagnostic
	p := &shader.Parsed{Format: shader.FormatISF, BodyLine: 1}

	h, found, err := findHeader(source)
	if h.ambiguous != "" {
		line, col := position(source, h.start)
		diags = append(diags, diagnostics.Warningf(diagnostics.CodeHeaderAmbiguous,
			"ambiguous header delimiters: %s", h.ambiguous).At(line, col, 2))
	}
	if err != nil {
		line, col := position(source, h.start)
		diags = append(diags, diagnostics.Errorf(diagnostics.CodeHeaderJSON, "%v", err).
			At(line, col, 2).WithSuggestion("Close the header with }*/"))
		return nil, diags, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if !found {
		diags = append(diags, diagnostics.Infof(diagnostics.CodeHeaderMissing,
			"no /*{ ... }*/ header block; the whole source is treated as the body"))
		p.Body = source
		return p, diags, nil
	}

	raw := source[h.jsonStart:h.jsonEnd]
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		line, col := jsonErrorPosition(source, h.jsonStart, err)
		diags = append(diags, diagnostics.Errorf(diagnostics.CodeHeaderJSON,
			"header is not valid JSON: %v", err).At(line, col, 1).
			WithSuggestion("Check the header for missing values, commas or quotes"))
		return nil, diags, fmt.Errorf("%w: %v", ErrHeader, err)
	}

	hp := headerParser{src: source, raw: raw, base: h.jsonStart, diags: &diags}
	fields = upperKeys(fields)
	hp.metadata(fields, &p.Metadata)
	p.Inputs = hp.inputs(fields["INPUTS"])
	p.Passes = hp.passes(fields["PASSES"])
	p.Imported = hp.imported(fields["IMPORTED"])
	diags = append(diags, shader.Validate(p.Inputs)...)

	if n := len(p.Passes); n > 1 || (n == 1 && p.Passes[0].Target != "") || len(p.Imported) > 0 {
		diags = append(diags, diagnostics.Infof(diagnostics.CodeMultipass,
			"%d pass(es) and %d imported image(s) are bound as textures; the body is converted once",
			n, len(p.Imported)))
	}

	p.Body = source[h.end:]
	p.BodyLine, _ = position(source, h.end)
	return p, diags, nil
}

func jsonErrorPosition(src string, base int, err error) (int, int) {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return position(src, base+int(se.Offset)-1)
	}
	return position(src, base)
}

func upperKeys(m map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

type headerParser struct {
	src   string
	raw   string
	base  int
	diags *[]diagnostics.Diagnostic
}

func (hp headerParser) at(off int) (int, int) {
	return position(hp.src, hp.base+off)
}

// fieldWarning reports a header field with an unexpected JSON type.
func (hp headerParser) fieldWarning(key, want string) {
	off := strings.Index(hp.raw, `"`+key+`"`)
	if off < 0 {
		off = 0
	}
	line, col := hp.at(off)
	*hp.diags = append(*hp.diags, diagnostics.Warningf(diagnostics.CodeHeaderField,
		"header field %s should be %s; ignored", key, want).At(line, col, len(key)+2))
}

func (hp headerParser) str(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	s, ok := asString(raw)
	if !ok {
		hp.fieldWarning(key, "a string")
	}
	return s
}

// asString accepts strings and numbers (ISFVSN is sometimes written as 2).
func asString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func asBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0, true
	}
	return false, false
}

func (hp headerParser) metadata(fields map[string]json.RawMessage, md *shader.Metadata) {
	md.Name = hp.str(fields, "NAME")
	md.Description = hp.str(fields, "DESCRIPTION")
	md.Credit = hp.str(fields, "CREDIT")
	md.DeclaredVersion = hp.str(fields, "ISFVSN")
	md.Vsn = hp.str(fields, "VSN")
	if raw, ok := fields["CATEGORIES"]; ok {
		if err := json.Unmarshal(raw, &md.Categories); err != nil {
			md.Categories = nil
			hp.fieldWarning("CATEGORIES", "an array of strings")
		}
	}
}

func (hp headerParser) inputs(raw json.RawMessage) []shader.InputDeclaration {
	if len(raw) == 0 {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		hp.fieldWarning("INPUTS", "an array of objects")
		return nil
	}
	out := make([]shader.InputDeclaration, 0, len(entries))
	for i, e := range entries {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(e, &obj); err != nil {
			*hp.diags = append(*hp.diags, diagnostics.Errorf(diagnostics.CodeInputInvalid,
				"INPUTS[%d] is not an object", i))
			continue
		}
		if in, ok := hp.input(i, upperKeys(obj)); ok {
			out = append(out, in)
		}
	}
	return out
}

func (hp headerParser) input(i int, obj map[string]json.RawMessage) (shader.InputDeclaration, bool) {
	var in shader.InputDeclaration
	name, ok := asString(obj["NAME"])
	if !ok || name == "" {
		*hp.diags = append(*hp.diags, diagnostics.Errorf(diagnostics.CodeInputInvalid,
			"INPUTS[%d] has no NAME", i).WithSuggestion("Give every input a NAME string"))
		return in, false
	}
	in.Name = name
	loc := hp.locate(name)
	in.Location = loc
	report := func(d diagnostics.Diagnostic) {
		if loc != nil {
			d = d.At(loc.Line, loc.Column, loc.Length)
		}
		*hp.diags = append(*hp.diags, d)
	}

	typ, _ := asString(obj["TYPE"])
	kind, known := shader.ParseKind(typ)
	if !known {
		report(diagnostics.Warningf(diagnostics.CodeUnknownInputType,
			"input %q has unknown TYPE %q; treated as float", name, typ).
			WithSuggestion("Use one of float, bool, long, color, point2D, image, audio, audioFFT, event"))
	}
	in.Kind = kind

	if raw, ok := obj["DEFAULT"]; ok {
		v, err := shader.DefaultValue(kind, raw)
		switch {
		case errors.Is(err, shader.ErrNoDefault):
		case err != nil:
			report(diagnostics.Warningf(diagnostics.CodeInvalidDefault,
				"input %q: %v", name, err))
		default:
			in.Default = v
		}
	}
	for _, key := range []string{"MIN", "MAX"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if !kind.IsNumeric() {
			report(diagnostics.Infof(diagnostics.CodeBoundIgnored,
				"%s of %s input %q is ignored", key, kind, name))
			continue
		}
		f, err := shader.NumberValue(raw)
		if err != nil {
			report(diagnostics.Warningf(diagnostics.CodeInvalidRange, "input %q %s: %v", name, key, err))
			continue
		}
		if key == "MIN" {
			in.Min = &f
		} else {
			in.Max = &f
		}
	}
	in.Label, _ = asString(obj["LABEL"])
	if raw, ok := obj["VALUES"]; ok {
		var vals []float64
		if err := json.Unmarshal(raw, &vals); err == nil {
			for _, v := range vals {
				in.Values = append(in.Values, int64(v))
			}
		}
	}
	if raw, ok := obj["LABELS"]; ok {
		_ = json.Unmarshal(raw, &in.Labels)
	}
	return in, true
}

// locate finds the "NAME": "name" pair of an input inside the header.
func (hp headerParser) locate(name string) *diagnostics.Location {
	quoted, _ := json.Marshal(name)
	re, err := regexp.Compile(`"(?i:name)"\s*:\s*` + regexp.QuoteMeta(string(quoted)))
	if err != nil {
		return nil
	}
	m := re.FindStringIndex(hp.raw)
	if m == nil {
		return nil
	}
	valueOff := m[1] - len(quoted)
	line, col := hp.at(valueOff)
	return &diagnostics.Location{Line: line, Column: col, Length: len(quoted)}
}

func (hp headerParser) passes(raw json.RawMessage) []shader.Pass {
	if len(raw) == 0 {
		return nil
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		hp.fieldWarning("PASSES", "an array of objects")
		return nil
	}
	out := make([]shader.Pass, 0, len(entries))
	for _, e := range entries {
		e = upperKeys(e)
		var p shader.Pass
		p.Target, _ = asString(e["TARGET"])
		p.Persistent, _ = asBool(e["PERSISTENT"])
		p.Float, _ = asBool(e["FLOAT"])
		p.Width, _ = asString(e["WIDTH"])
		p.Height, _ = asString(e["HEIGHT"])
		out = append(out, p)
	}
	return out
}

// imported accepts both the ISF v2 dictionary form and the v1 array form.
func (hp headerParser) imported(raw json.RawMessage) []shader.ImportedImage {
	if len(raw) == 0 {
		return nil
	}
	var dict map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &dict); err == nil {
		out := make([]shader.ImportedImage, 0, len(dict))
		for name, v := range dict {
			path, _ := asString(upperKeys(v)["PATH"])
			out = append(out, shader.ImportedImage{Name: name, Path: path})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		hp.fieldWarning("IMPORTED", "an object or array")
		return nil
	}
	out := make([]shader.ImportedImage, 0, len(list))
	for _, v := range list {
		v = upperKeys(v)
		name, _ := asString(v["NAME"])
		path, _ := asString(v["PATH"])
		if name != "" {
			out = append(out, shader.ImportedImage{Name: name, Path: path})
		}
	}
	return out
}
