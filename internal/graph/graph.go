// Package graph compiles a visual shader node graph into ISF source that the
// converter can translate.
package graph

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shaderconv/converter/internal/diagnostics"
)

// Kind is the node kind. The set is closed; see GenerateCode.
type Kind string

const (
	KindConstant    Kind = "constant"
	KindTime        Kind = "time"
	KindUV          Kind = "uv"
	KindInput       Kind = "input"
	KindImageSample Kind = "image_sample"
	KindAdd         Kind = "add"
	KindSubtract    Kind = "subtract"
	KindMultiply    Kind = "multiply"
	KindDivide      Kind = "divide"
	KindMin         Kind = "min"
	KindMax         Kind = "max"
	KindPow         Kind = "pow"
	KindStep        Kind = "step"
	KindMix         Kind = "mix"
	KindClamp       Kind = "clamp"
	KindSmoothStep  Kind = "smoothstep"
	KindSin         Kind = "sin"
	KindCos         Kind = "cos"
	KindTan         Kind = "tan"
	KindSqrt        Kind = "sqrt"
	KindColor       Kind = "color"
	KindOutput      Kind = "output"
)

// ports lists the input ports of each kind.
var ports = map[Kind][]string{
	KindConstant:    nil,
	KindTime:        nil,
	KindUV:          nil,
	KindInput:       nil,
	KindImageSample: {"uv"},
	KindAdd:         {"a", "b"},
	KindSubtract:    {"a", "b"},
	KindMultiply:    {"a", "b"},
	KindDivide:      {"a", "b"},
	KindMin:         {"a", "b"},
	KindMax:         {"a", "b"},
	KindPow:         {"a", "b"},
	KindStep:        {"edge", "x"},
	KindMix:         {"a", "b", "t"},
	KindClamp:       {"x", "lo", "hi"},
	KindSmoothStep:  {"lo", "hi", "x"},
	KindSin:         {"x"},
	KindCos:         {"x"},
	KindTan:         {"x"},
	KindSqrt:        {"x"},
	KindColor:       nil,
	KindOutput:      {"color"},
}

// optional ports may be left unconnected.
var optional = map[Kind]map[string]bool{
	KindImageSample: {"uv": true},
}

// Graph is the root structure of a node graph document.
type Graph struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// Node is a single operation in the graph.
type Node struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Label      string         `json:"label,omitempty"`
	Position   Position       `json:"position"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Position holds x,y coordinates (used by the editor UI).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge feeds the output of Source into the Port of Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Port   string `json:"port,omitempty"`
}

// Parse decodes a JSON graph document.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return &g, nil
}

// Validate checks the structure of g. Edges without a port are assigned the
// target's only port when it has exactly one.
func Validate(g *Graph) []diagnostics.Diagnostic {
	if g == nil {
		return []diagnostics.Diagnostic{diagnostics.Errorf(diagnostics.CodeGraphSchema, "graph is nil")}
	}
	var errs []diagnostics.Diagnostic

	seen := make(map[string]bool)
	outputs := 0
	for i := range g.Nodes {
		n := &g.Nodes[i]
		switch {
		case n.ID == "":
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphSchema,
				"node at index %d has empty id", i).WithSuggestion("Set node.id"))
		case seen[n.ID]:
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphSchema,
				"duplicate node id: %s", n.ID).WithSuggestion("Use unique ids for each node"))
		default:
			seen[n.ID] = true
		}
		if _, ok := ports[n.Kind]; !ok {
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphSchema,
				"node %s has unknown kind %q", n.ID, n.Kind))
			continue
		}
		if n.Properties == nil {
			n.Properties = make(map[string]any)
		}
		switch n.Kind {
		case KindOutput:
			outputs++
		case KindInput, KindImageSample:
			name, _ := n.Properties["name"].(string)
			switch {
			case name == "":
				errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphSchema,
					"%s node %s needs a name property", n.Kind, n.ID))
			case !ident(name):
				errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphSchema,
					"%s node %s: name %q is not an identifier", n.Kind, n.ID, name).
					WithSuggestion("Use letters, digits and underscores only"))
			}
		}
	}
	if outputs != 1 {
		errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphSchema,
			"graph needs exactly one output node, found %d", outputs))
	}

	fed := make(map[string]bool)
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Source == "" || e.Target == "" {
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphEdge,
				"edge at index %d must have source and target", i).
				WithSuggestion("Set edge.source and edge.target to node ids"))
			continue
		}
		if !seen[e.Source] {
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphEdge,
				"edge source node not found: %s", e.Source))
			continue
		}
		target := g.NodeByID(e.Target)
		if target == nil {
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphEdge,
				"edge target node not found: %s", e.Target))
			continue
		}
		ps := ports[target.Kind]
		if e.Port == "" && len(ps) == 1 {
			e.Port = ps[0]
		}
		if !slices.Contains(ps, e.Port) {
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphEdge,
				"%s node %s has no port %q", target.Kind, target.ID, e.Port).
				WithSuggestion(fmt.Sprintf("Use one of %v", ps)))
			continue
		}
		key := e.Target + "." + e.Port
		if fed[key] {
			errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphEdge,
				"port %s is fed by more than one edge", key))
		}
		fed[key] = true
	}

	for _, n := range g.Nodes {
		for _, p := range ports[n.Kind] {
			if !fed[n.ID+"."+p] && !optional[n.Kind][p] {
				errs = append(errs, diagnostics.Errorf(diagnostics.CodeGraphEdge,
					"port %s.%s is not connected", n.ID, p))
			}
		}
	}
	return errs
}

func ident(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Input returns the node feeding port of the node id.
func (g *Graph) Input(id, port string) (*Node, bool) {
	for _, e := range g.Edges {
		if e.Target == id && e.Port == port {
			n := g.NodeByID(e.Source)
			return n, n != nil
		}
	}
	return nil, false
}
