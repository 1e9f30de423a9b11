package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
)

// Type is the GLSL value type a node produces.
type Type int

const (
	TypeFloat Type = iota
	TypeVec2
	TypeVec4
)

func (t Type) String() string {
	switch t {
	case TypeVec2:
		return "vec2"
	case TypeVec4:
		return "vec4"
	default:
		return "float"
	}
}

// ErrType is returned when connected nodes produce incompatible types.
var ErrType = errors.New("node type mismatch")

// ValidationError carries every problem Validate found.
type ValidationError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *ValidationError) Error() string {
	msg := "invalid node graph: " + e.Diagnostics[0].Message
	if n := len(e.Diagnostics) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// Var is the GLSL variable holding the value of node id.
func Var(id string) string {
	var sb strings.Builder
	sb.WriteString("n_")
	for _, r := range id {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// TypeOf infers the type node id produces.
func (g *Graph) TypeOf(id string) (Type, error) {
	return g.typeOf(id, make(map[string]bool))
}

func (g *Graph) typeOf(id string, visiting map[string]bool) (Type, error) {
	n := g.NodeByID(id)
	if n == nil {
		return TypeFloat, fmt.Errorf("node not found: %s", id)
	}
	if visiting[id] {
		return TypeFloat, ErrCycle
	}
	visiting[id] = true
	defer delete(visiting, id)

	port := func(p string) (Type, error) {
		in, ok := g.Input(id, p)
		if !ok {
			return TypeFloat, fmt.Errorf("port %s.%s is not connected", id, p)
		}
		return g.typeOf(in.ID, visiting)
	}

	switch n.Kind {
	case KindConstant, KindTime:
		return TypeFloat, nil
	case KindUV:
		return TypeVec2, nil
	case KindInput:
		switch typ := str(n, "type"); typ {
		case "", "float":
			return TypeFloat, nil
		case "point2D":
			return TypeVec2, nil
		case "color":
			return TypeVec4, nil
		default:
			return TypeFloat, fmt.Errorf("input node %s has unsupported type %q", id, typ)
		}
	case KindImageSample, KindColor, KindOutput:
		return TypeVec4, nil
	case KindSin, KindCos, KindTan, KindSqrt:
		return port("x")
	case KindAdd, KindSubtract, KindMultiply, KindDivide, KindMin, KindMax, KindPow, KindMix:
		a, err := port("a")
		if err != nil {
			return a, err
		}
		b, err := port("b")
		if err != nil {
			return b, err
		}
		if n.Kind == KindPow && a != b {
			return a, fmt.Errorf("pow node %s: %w: %s and %s", id, ErrType, a, b)
		}
		t, err := combine(a, b)
		if err != nil {
			return t, fmt.Errorf("%s node %s: %w", n.Kind, id, err)
		}
		if n.Kind == KindMix {
			return t, g.scalarOr(id, "t", t, visiting)
		}
		return t, nil
	case KindStep:
		x, err := port("x")
		if err != nil {
			return x, err
		}
		return x, g.scalarOr(id, "edge", x, visiting)
	case KindClamp, KindSmoothStep:
		x, err := port("x")
		if err != nil {
			return x, err
		}
		if err := g.scalarOr(id, "lo", x, visiting); err != nil {
			return x, err
		}
		return x, g.scalarOr(id, "hi", x, visiting)
	}
	return TypeFloat, fmt.Errorf("node %s has unknown kind %q", id, n.Kind)
}

// scalarOr checks that port of node id is a float or matches t.
func (g *Graph) scalarOr(id, port string, t Type, visiting map[string]bool) error {
	in, ok := g.Input(id, port)
	if !ok {
		return fmt.Errorf("port %s.%s is not connected", id, port)
	}
	pt, err := g.typeOf(in.ID, visiting)
	if err != nil {
		return err
	}
	if pt != TypeFloat && pt != t {
		return fmt.Errorf("port %s.%s: %w: %s, expected float or %s", id, port, ErrType, pt, t)
	}
	return nil
}

func combine(a, b Type) (Type, error) {
	switch {
	case a == b, b == TypeFloat:
		return a, nil
	case a == TypeFloat:
		return b, nil
	}
	return a, fmt.Errorf("%w: %s and %s", ErrType, a, b)
}

// GenerateCode returns the GLSL statement that computes node n. The output
// node assigns gl_FragColor; every other node declares its Var.
func GenerateCode(n *Node, g *Graph) (string, error) {
	typ, err := g.TypeOf(n.ID)
	if err != nil {
		return "", err
	}
	in := func(p string) string {
		src, ok := g.Input(n.ID, p)
		if !ok {
			return ""
		}
		return Var(src.ID)
	}

	var expr string
	switch n.Kind {
	case KindConstant:
		expr = literal(num(n, "value", 0))
	case KindTime:
		expr = "TIME"
	case KindUV:
		expr = "isf_FragNormCoord"
	case KindInput:
		expr = str(n, "name")
	case KindImageSample:
		uv := in("uv")
		if uv == "" {
			uv = "isf_FragNormCoord"
		} else if t, _ := g.TypeOf(inputID(g, n.ID, "uv")); t != TypeVec2 {
			return "", fmt.Errorf("image_sample node %s: %w: uv is %s", n.ID, ErrType, t)
		}
		expr = fmt.Sprintf("IMG_NORM_PIXEL(%s, %s)", str(n, "name"), uv)
	case KindAdd:
		expr = in("a") + " + " + in("b")
	case KindSubtract:
		expr = in("a") + " - " + in("b")
	case KindMultiply:
		expr = in("a") + " * " + in("b")
	case KindDivide:
		expr = in("a") + " / " + in("b")
	case KindMin, KindMax, KindPow, KindStep, KindMix, KindClamp, KindSmoothStep,
		KindSin, KindCos, KindTan, KindSqrt:
		args := make([]string, 0, 3)
		for _, p := range ports[n.Kind] {
			args = append(args, in(p))
		}
		expr = string(n.Kind) + "(" + strings.Join(args, ", ") + ")"
	case KindColor:
		expr = fmt.Sprintf("vec4(%s, %s, %s, %s)",
			literal(num(n, "r", 0)), literal(num(n, "g", 0)), literal(num(n, "b", 0)), literal(num(n, "a", 1)))
	case KindOutput:
		src := inputID(g, n.ID, "color")
		t, err := g.TypeOf(src)
		if err != nil {
			return "", err
		}
		return "gl_FragColor = " + toVec4(Var(src), t) + ";", nil
	default:
		return "", fmt.Errorf("node %s has unknown kind %q", n.ID, n.Kind)
	}
	return fmt.Sprintf("%s %s = %s;", typ, Var(n.ID), expr), nil
}

func inputID(g *Graph, id, port string) string {
	if n, ok := g.Input(id, port); ok {
		return n.ID
	}
	return ""
}

func toVec4(v string, t Type) string {
	switch t {
	case TypeVec2:
		return fmt.Sprintf("vec4(%s, 0.0, 1.0)", v)
	case TypeFloat:
		return fmt.Sprintf("vec4(vec3(%s), 1.0)", v)
	}
	return v
}

// isfInput is one INPUTS entry of the generated header.
type isfInput struct {
	Name    string   `json:"NAME"`
	Type    string   `json:"TYPE"`
	Label   string   `json:"LABEL,omitempty"`
	Default any      `json:"DEFAULT,omitempty"`
	Min     *float64 `json:"MIN,omitempty"`
	Max     *float64 `json:"MAX,omitempty"`
}

type isfHeader struct {
	Name        string     `json:"NAME,omitempty"`
	Description string     `json:"DESCRIPTION,omitempty"`
	Version     string     `json:"ISFVSN"`
	Inputs      []isfInput `json:"INPUTS"`
}

// Compile validates g and generates an ISF fragment shader computing it.
func Compile(g *Graph) (string, error) {
	if errs := Validate(g); len(errs) > 0 {
		return "", &ValidationError{Diagnostics: errs}
	}
	ordered, _, err := Resolve(g)
	if err != nil {
		return "", err
	}

	hdr := isfHeader{Name: g.Name, Description: g.Description, Version: "2", Inputs: []isfInput{}}
	seen := make(map[string]string)
	var body strings.Builder
	for _, id := range ordered {
		n := g.NodeByID(id)
		if in, ok := headerInput(n); ok {
			switch typ, dup := seen[in.Name]; {
			case !dup:
				seen[in.Name] = in.Type
				hdr.Inputs = append(hdr.Inputs, in)
			case typ != in.Type:
				return "", fmt.Errorf("%w: input %q is used as %s and %s", ErrType, in.Name, typ, in.Type)
			}
		}
		stmt, err := GenerateCode(n, g)
		if err != nil {
			return "", err
		}
		body.WriteString("    " + stmt + "\n")
	}

	raw, err := json.MarshalIndent(hdr, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode ISF header: %w", err)
	}
	return "/*" + string(raw) + "*/\n\nvoid main() {\n" + body.String() + "}\n", nil
}

func headerInput(n *Node) (isfInput, bool) {
	switch n.Kind {
	case KindImageSample:
		return isfInput{Name: str(n, "name"), Type: "image", Label: n.Label}, true
	case KindInput:
		in := isfInput{Name: str(n, "name"), Type: str(n, "type"), Label: n.Label, Default: n.Properties["default"]}
		if in.Type == "" {
			in.Type = "float"
		}
		if v, ok := number(n.Properties["min"]); ok {
			in.Min = &v
		}
		if v, ok := number(n.Properties["max"]); ok {
			in.Max = &v
		}
		return in, true
	}
	return isfInput{}, false
}

func str(n *Node, key string) string {
	s, _ := n.Properties[key].(string)
	return s
}

func num(n *Node, key string, def float64) float64 {
	if v, ok := number(n.Properties[key]); ok {
		return v
	}
	return def
}

func number(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func literal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
