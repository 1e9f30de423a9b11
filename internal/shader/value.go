package shader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ErrNoDefault is returned for kinds that never carry a default (textures).
var ErrNoDefault = errors.New("kind does not take a default value")

// ValueType returns the cty type a default of kind k converts to.
func (k InputKind) ValueType() (cty.Type, error) {
	switch k {
	case KindFloat, KindLong:
		return cty.Number, nil
	case KindBool, KindEvent:
		return cty.Bool, nil
	case KindPoint2D, KindColor:
		return cty.List(cty.Number), nil
	}
	return cty.NilType, ErrNoDefault
}

// vectorLen is the component count of vector kinds; 0 for scalars.
func (k InputKind) vectorLen() int {
	switch k {
	case KindPoint2D:
		return 2
	case KindColor:
		return 4
	}
	return 0
}

// DefaultValue decodes a raw JSON DEFAULT into a typed value for kind k.
// Numbers are accepted for bools (non-zero is true), as older ISF files do.
func DefaultValue(k InputKind, raw json.RawMessage) (cty.Value, error) {
	want, err := k.ValueType()
	if err != nil {
		return cty.NilVal, err
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		return cty.NilVal, nil
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decode default: %w", err)
	}
	v, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decode default: %w", err)
	}
	if want == cty.Bool && v.Type() == cty.Number && !v.IsNull() {
		f, _ := v.AsBigFloat().Float64()
		return cty.BoolVal(f != 0), nil
	}
	out, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("default is not a %s: %w", k, err)
	}
	if n := k.vectorLen(); n > 0 && !out.IsNull() {
		if got := out.LengthInt(); got != n {
			return cty.NilVal, fmt.Errorf("default for %s needs %d components, got %d", k, n, got)
		}
	}
	return out, nil
}

// NumberValue decodes a raw JSON MIN/MAX bound.
func NumberValue(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("bound is not a number: %w", err)
	}
	return f, nil
}

// GoValue converts a cty value to plain Go values (float64, bool, string, []any)
// for JSON/YAML reports. Null and unknown values become nil.
func GoValue(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case ty == cty.Bool:
		return v.True()
	case ty == cty.String:
		return v.AsString()
	case ty.IsListType() || ty.IsTupleType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			out = append(out, GoValue(e))
		}
		return out
	}
	return nil
}

type inputView struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     string   `json:"kind" yaml:"kind"`
	Default  any      `json:"default,omitempty" yaml:"default,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Values   []int64  `json:"values,omitempty" yaml:"values,omitempty"`
	Labels   []string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Inferred bool     `json:"inferred,omitempty" yaml:"inferred,omitempty"`
}

func (in InputDeclaration) view() inputView {
	return inputView{
		Name:     in.Name,
		Kind:     in.Kind.String(),
		Default:  GoValue(in.Default),
		Min:      in.Min,
		Max:      in.Max,
		Label:    in.Label,
		Values:   in.Values,
		Labels:   in.Labels,
		Inferred: in.Inferred,
	}
}

// MarshalJSON encodes the declaration with its default as a plain JSON value.
func (in InputDeclaration) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.view())
}

// MarshalYAML is the YAML counterpart of MarshalJSON.
func (in InputDeclaration) MarshalYAML() (any, error) {
	return in.view(), nil
}
