package shader

import (
	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/zclconf/go-cty/cty"
)

// Validate checks declaration-level consistency of parsed inputs: names present,
// MIN not above MAX, numeric defaults inside their range. Identifier collisions are
// the mapper's job since they only exist after sanitization.
func Validate(inputs []InputDeclaration) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for i := range inputs {
		in := &inputs[i]
		if in.Name == "" {
			out = append(out, locate(diagnostics.Errorf(diagnostics.CodeInputInvalid,
				"input at index %d has an empty name", i), in.Location).
				WithSuggestion("Set INPUTS[].NAME"))
			continue
		}
		if in.Min != nil && in.Max != nil && *in.Min > *in.Max {
			out = append(out, locate(diagnostics.Warningf(diagnostics.CodeInvalidRange,
				"input %q has MIN %g above MAX %g", in.Name, *in.Min, *in.Max), in.Location).
				WithSuggestion("Swap MIN and MAX"))
			continue
		}
		if !in.HasDefault() || in.Default.Type() != cty.Number {
			continue
		}
		def, _ := in.Default.AsBigFloat().Float64()
		if (in.Min != nil && def < *in.Min) || (in.Max != nil && def > *in.Max) {
			out = append(out, locate(diagnostics.Warningf(diagnostics.CodeInvalidRange,
				"default %g of input %q lies outside its range", def, in.Name), in.Location))
		}
	}
	return out
}

func locate(d diagnostics.Diagnostic, loc *diagnostics.Location) diagnostics.Diagnostic {
	if loc == nil {
		return d
	}
	return d.At(loc.Line, loc.Column, loc.Length)
}
