// Package converter is the public entry point: it runs the preprocessor, the
// format front end, the type mapper and the body rewriter in order and
// assembles the WGSL module.
package converter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	_ "github.com/shaderconv/converter/internal/frontend" // register front ends
	"github.com/shaderconv/converter/internal/layout"
	"github.com/shaderconv/converter/internal/logger"
	"github.com/shaderconv/converter/internal/manifest"
	"github.com/shaderconv/converter/internal/preprocess"
	"github.com/shaderconv/converter/internal/registry"
	"github.com/shaderconv/converter/internal/rewrite"
	"github.com/shaderconv/converter/internal/shader"
	"github.com/shaderconv/converter/internal/validate"
	"github.com/shaderconv/converter/internal/wgsl"
)

// Converter turns shader sources into WGSL. It keeps no per-call state; one
// Converter may serve concurrent calls.
type Converter struct {
	opts Options
	reg  *registry.Registry
	log  *slog.Logger
	pp   *preprocess.Preprocessor
}

// New returns a new converter with the given options.
func New(opts Options) *Converter {
	if opts.MaxImportDepth <= 0 {
		opts.MaxImportDepth = preprocess.DefaultMaxImportDepth
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default
	}
	return &Converter{
		opts: opts,
		reg:  registry.Default,
		log:  log,
		pp: preprocess.New(preprocess.Options{
			MaxImportDepth: opts.MaxImportDepth,
			Loader:         opts.Loader,
			Flags:          opts.Flags,
			Defines:        opts.Defines,
		}),
	}
}

// Convert is shorthand for New(opts).Convert(source, format).
func Convert(source string, format shader.Format, opts Options) (*Result, error) {
	return New(opts).Convert(source, format)
}

// Convert converts source. Files are named after the shader's header name.
func (c *Converter) Convert(source string, format shader.Format) (*Result, error) {
	return c.ConvertNamed("", source, format)
}

// ConvertNamed converts source; name (usually the input file path) names the
// emitted files. It returns a *Failure when the source cannot be parsed, or
// when Strict is set and any Error was recorded. Otherwise the result is
// returned even if it carries Errors.
func (c *Converter) ConvertNamed(name, source string, format shader.Format) (*Result, error) {
	run := &conversion{
		c: c,
		res: &Result{
			Format:      format,
			State:       StateIdle,
			Diagnostics: &diagnostics.Ledger{},
		},
	}
	return run.convert(name, source)
}

// conversion is the state of one Convert call.
type conversion struct {
	c   *Converter
	res *Result
}

func (cv *conversion) enter(s State) {
	cv.res.State = s
	cv.res.History = append(cv.res.History, Transition{State: s, Diagnostics: cv.res.Diagnostics.Len()})
	cv.c.log.Debug("conversion state",
		"format", cv.res.Format.String(),
		"state", s.String(),
		"diagnostics", cv.res.Diagnostics.Len())
}

// fail moves to Failed. Only the parsing stage calls it.
func (cv *conversion) fail(d diagnostics.Diagnostic, err error) (*Result, error) {
	cv.enter(StateFailed)
	return nil, &Failure{Diagnostic: d, Diagnostics: cv.res.Diagnostics, State: StateFailed, Err: err}
}

func (cv *conversion) convert(name, source string) (*Result, error) {
	c, res, ledger := cv.c, cv.res, cv.res.Diagnostics

	// 1. Parsing, preceded by the preprocessor when the source needs it
	cv.enter(StateParsing)
	if strings.TrimSpace(source) == "" {
		d := diagnostics.Errorf(diagnostics.CodeEmptySource, "source is empty")
		ledger.Add(d)
		return cv.fail(d, ErrParse)
	}
	if preprocess.NeedsPreprocessing(source) || len(c.opts.Defines) > 0 {
		pre, err := c.pp.Process(source)
		ledger.Add(pre.Diagnostics...)
		res.Imports = pre.Imports
		source = pre.Source
		if err != nil {
			c.log.Warn("import expansion halted", "format", res.Format.String(), "error", err)
		}
	}

	fe, ok := c.reg.Get(res.Format)
	if !ok {
		d := diagnostics.Errorf(diagnostics.CodeUnknownFormat, "no front end for format %s", res.Format)
		ledger.Add(d)
		return cv.fail(d, ErrUnknownFormat)
	}
	parsed, diags, err := fe.Parse(source)
	ledger.Add(diags...)
	if err != nil {
		d, ok := ledger.FirstError()
		if !ok {
			d = diagnostics.Errorf(diagnostics.CodeHeaderJSON, "%v", err)
			ledger.Add(d)
		}
		return cv.fail(d, fmt.Errorf("%w: %w", ErrParse, err))
	}
	res.Metadata = parsed.Metadata
	res.Inputs = parsed.Inputs
	res.Passes = parsed.Passes

	// 2. Mapping inputs onto the uniform buffer and texture bindings
	cv.enter(StateMapping)
	lay, diags := layout.Build(parsed)
	ledger.Add(diags...)
	res.UniformLayout = lay.Fields
	res.Textures = lay.Textures
	res.UniformSize = lay.Size

	// 3. Rewriting the body
	cv.enter(StateRewriting)
	out := rewrite.New(rewrite.Config{
		Format:   parsed.Format,
		Layout:   lay,
		Aliases:  parsed.Aliases,
		BodyLine: parsed.BodyLine,
	}).Rewrite(parsed.Body)
	ledger.Add(out.Diagnostics...)
	res.Stage = out.Stage
	res.EntryPoints = out.EntryPoints
	if out.Stage == shader.StageCompute {
		wg := out.Workgroup
		res.Workgroup = &wg
	}

	// 4. Assembly
	if name == "" {
		name = parsed.Metadata.Name
	}
	b := wgsl.NewBuilder(name, c.opts.EmitManifest)
	res.Name = b.Name()
	b.SetLayout(lay)
	b.SetBody(out.Source)
	res.TargetSource = b.Source()

	if c.opts.Validate {
		rep := validate.Check(res.TargetSource, out.EntryPoints, out.Stage)
		ledger.Add(rep.Diagnostics...)
	}
	if c.opts.SPIRV && !ledger.HasErrors() {
		spv, err := validate.SPIRV(res.TargetSource)
		if err != nil {
			ledger.Add(diagnostics.Errorf(diagnostics.CodeValidationFailed, "%v", err))
		} else {
			b.SetSPIRV(spv)
		}
	}
	if c.opts.EmitManifest {
		label := parsed.Metadata.Name
		if label == "" {
			label = res.Name
		}
		b.SetManifest(manifest.New(manifest.Source{
			Name:        label,
			Parsed:      parsed,
			Layout:      lay,
			Stage:       out.Stage,
			EntryPoints: out.EntryPoints,
			Workgroup:   out.Workgroup,
		}).Bytes())
	}
	res.Files = b.Build()
	cv.enter(StateDone)

	if c.opts.Strict && ledger.HasErrors() {
		d, _ := ledger.FirstError()
		return nil, &Failure{Diagnostic: d, Diagnostics: ledger, State: StateDone, Err: ErrStrict}
	}
	return res, nil
}
