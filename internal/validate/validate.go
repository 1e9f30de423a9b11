// Package validate checks generated WGSL with naga and optionally compiles it
// to SPIR-V. Problems come back as diagnostics located in the generated text.
package validate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"
	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/shader"
)

// EntryPoint is an entry point naga found in the module.
type EntryPoint struct {
	Name  string       `json:"name" yaml:"name"`
	Stage shader.Stage `json:"stage" yaml:"stage"`
}

// Report is the outcome of Check.
type Report struct {
	EntryPoints []EntryPoint
	Diagnostics []diagnostics.Diagnostic
	Module      *ir.Module
}

// Valid reports whether naga accepted the module.
func (r Report) Valid() bool { return r.Module != nil && !hasErrors(r.Diagnostics) }

// Check parses, lowers and validates src. want lists the entry points the
// rewriter produced; any naga disagrees with is reported as a Warning.
func Check(src string, want []string, stage shader.Stage) Report {
	var rep Report
	ast, err := naga.Parse(src)
	if err != nil {
		rep.Diagnostics = append(rep.Diagnostics, sourceDiagnostics("parse", err)...)
		return rep
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		rep.Diagnostics = append(rep.Diagnostics, sourceDiagnostics("lower", err)...)
		return rep
	}
	rep.Module = module

	verrs, err := naga.Validate(module)
	if err != nil {
		rep.Diagnostics = append(rep.Diagnostics, diagnostics.Errorf(diagnostics.CodeValidationFailed,
			"validate generated WGSL: %v", err))
	}
	for _, ve := range verrs {
		rep.Diagnostics = append(rep.Diagnostics, diagnostics.Errorf(diagnostics.CodeValidationFailed,
			"generated WGSL is invalid: %s", ve.Error()))
	}

	for _, ep := range module.EntryPoints {
		rep.EntryPoints = append(rep.EntryPoints, EntryPoint{Name: ep.Name, Stage: stageOf(ep.Stage)})
	}
	for _, name := range want {
		i := slices.IndexFunc(rep.EntryPoints, func(ep EntryPoint) bool { return ep.Name == name })
		switch {
		case i < 0:
			rep.Diagnostics = append(rep.Diagnostics, diagnostics.Warningf(diagnostics.CodeEntryPointDrift,
				"entry point %q is missing from the validated module", name))
		case rep.EntryPoints[i].Stage != stage:
			rep.Diagnostics = append(rep.Diagnostics, diagnostics.Warningf(diagnostics.CodeEntryPointDrift,
				"entry point %q is a %s shader, expected %s", name, rep.EntryPoints[i].Stage, stage))
		}
	}
	return rep
}

// SPIRV compiles src to a SPIR-V binary.
func SPIRV(src string) ([]byte, error) {
	out, err := naga.CompileWithOptions(src, naga.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("compile SPIR-V: %w", err)
	}
	return out, nil
}

// sourceDiagnostics turns a naga error into one diagnostic per located
// problem. Locations are in the generated WGSL.
func sourceDiagnostics(phase string, err error) []diagnostics.Diagnostic {
	var many *wgsl.SourceErrors
	if errors.As(err, &many) && many != nil && len(*many) > 0 {
		out := make([]diagnostics.Diagnostic, 0, len(*many))
		for _, se := range *many {
			out = append(out, located(phase, se.Message, se.Span.Start.Line, se.Span.Start.Column))
		}
		return out
	}
	var one *wgsl.SourceError
	if errors.As(err, &one) {
		return []diagnostics.Diagnostic{located(phase, one.Message, one.Span.Start.Line, one.Span.Start.Column)}
	}
	var pe *wgsl.ParseError
	if errors.As(err, &pe) && pe != nil {
		return []diagnostics.Diagnostic{located(phase, pe.Message, pe.Token.Line, pe.Token.Column)}
	}
	// the parser collects errors by value and wraps the first one
	var pv wgsl.ParseError
	if errors.As(err, &pv) {
		return []diagnostics.Diagnostic{located(phase, pv.Message, pv.Token.Line, pv.Token.Column)}
	}
	return []diagnostics.Diagnostic{diagnostics.Errorf(diagnostics.CodeValidationFailed,
		"%s generated WGSL: %v", phase, err)}
}

func located(phase, msg string, line, col int) diagnostics.Diagnostic {
	return diagnostics.Errorf(diagnostics.CodeValidationFailed,
		"%s generated WGSL at %d:%d: %s", phase, line, col, msg).At(line, col, 0)
}

func stageOf(s ir.ShaderStage) shader.Stage {
	switch s {
	case ir.StageVertex:
		return shader.StageVertex
	case ir.StageCompute:
		return shader.StageCompute
	}
	return shader.StageFragment
}

func hasErrors(ds []diagnostics.Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == diagnostics.Error {
			return true
		}
	}
	return false
}
