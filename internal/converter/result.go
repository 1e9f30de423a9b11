package converter

import (
	"errors"
	"fmt"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/layout"
	"github.com/shaderconv/converter/internal/shader"
)

// State is a step of the conversion state machine:
// Idle → Parsing → Mapping → Rewriting → Done, with Failed reachable from
// Parsing only.
type State int

const (
	StateIdle State = iota
	StateParsing
	StateMapping
	StateRewriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsing:
		return "parsing"
	case StateMapping:
		return "mapping"
	case StateRewriting:
		return "rewriting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	// ErrParse is returned when the source cannot be parsed at all.
	ErrParse = errors.New("parse failed")
	// ErrUnknownFormat is returned for a format with no registered front end.
	ErrUnknownFormat = errors.New("unknown source format")
	// ErrStrict is returned in strict mode when the conversion produced errors.
	ErrStrict = errors.New("conversion produced errors")
)

// Failure is the error returned when a conversion yields no result. It
// unwraps to ErrParse, ErrUnknownFormat or ErrStrict.
type Failure struct {
	// Diagnostic is the Error that caused the failure.
	Diagnostic  diagnostics.Diagnostic
	Diagnostics *diagnostics.Ledger
	State       State
	Err         error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v: %s", f.Err, f.Diagnostic)
}

func (f *Failure) Unwrap() error { return f.Err }

// Transition records the ledger size when a state was entered.
type Transition struct {
	State       State `json:"state" yaml:"state"`
	Diagnostics int   `json:"diagnostics" yaml:"diagnostics"`
}

// Result is the outcome of a conversion. A result with Error diagnostics is
// still returned in non-strict mode; TargetSource then holds the best-effort
// output.
type Result struct {
	Name          string                    `json:"name" yaml:"name"`
	Format        shader.Format             `json:"format" yaml:"format"`
	TargetSource  string                    `json:"target_source" yaml:"target_source"`
	Metadata      shader.Metadata           `json:"metadata" yaml:"metadata"`
	Inputs        []shader.InputDeclaration `json:"inputs" yaml:"inputs"`
	UniformLayout []layout.UniformField     `json:"uniform_layout" yaml:"uniform_layout"`
	UniformSize   int                       `json:"uniform_size" yaml:"uniform_size"`
	Textures      []layout.TextureBinding   `json:"textures,omitempty" yaml:"textures,omitempty"`
	EntryPoints   []string                  `json:"entry_points" yaml:"entry_points"`
	Stage         shader.Stage              `json:"stage" yaml:"stage"`
	Workgroup     *[3]int                   `json:"workgroup_size,omitempty" yaml:"workgroup_size,omitempty"`
	Passes        []shader.Pass             `json:"passes,omitempty" yaml:"passes,omitempty"`
	Imports       []string                  `json:"imports,omitempty" yaml:"imports,omitempty"`
	Diagnostics   *diagnostics.Ledger       `json:"diagnostics" yaml:"diagnostics"`
	State         State                     `json:"state" yaml:"state"`
	History       []Transition              `json:"-" yaml:"-"`
	// Files maps file name to content: <name>.wgsl, plus <name>.hcl and
	// <name>.spv when requested.
	Files map[string][]byte `json:"-" yaml:"-"`
}

// Success reports whether the conversion finished without Error diagnostics.
func (r *Result) Success() bool {
	return r.State == StateDone && !r.Diagnostics.HasErrors()
}

// Layout returns the uniform layout and textures as one value.
func (r *Result) Layout() layout.Layout {
	return layout.Layout{Fields: r.UniformLayout, Textures: r.Textures, Size: r.UniformSize}
}
