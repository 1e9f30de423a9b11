package shader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/zclconf/go-cty/cty"
)

// Format is a source shading language accepted by the converter.
type Format int

const (
	FormatISF Format = iota
	FormatGLSL
	FormatHLSL
)

func (f Format) String() string {
	switch f {
	case FormatISF:
		return "isf"
	case FormatGLSL:
		return "glsl"
	case FormatHLSL:
		return "hlsl"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name (isf, glsl, hlsl; case-insensitive) to a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "isf", "fs":
		return FormatISF, true
	case "glsl", "frag", "vert", "comp":
		return FormatGLSL, true
	case "hlsl", "fx":
		return FormatHLSL, true
	}
	return 0, false
}

// MarshalText encodes the format by name.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText accepts any name ParseFormat does.
func (f *Format) UnmarshalText(b []byte) error {
	v, ok := ParseFormat(string(b))
	if !ok {
		return fmt.Errorf("unknown shader format %q", string(b))
	}
	*f = v
	return nil
}

// FormatFromPath guesses the format from a file extension (.fs → isf,
// .frag/.glsl/.vert/.comp → glsl, .hlsl/.fx → hlsl).
func FormatFromPath(path string) (Format, bool) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Stage is a shader pipeline stage.
type Stage int

const (
	StageFragment Stage = iota
	StageVertex
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageCompute:
		return "compute"
	default:
		return "fragment"
	}
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Metadata holds the descriptive fields of a shader header. Absent fields are empty.
type Metadata struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Credit          string   `json:"credit,omitempty" yaml:"credit,omitempty"`
	Categories      []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	DeclaredVersion string   `json:"declared_version,omitempty" yaml:"declared_version,omitempty"`
	Vsn             string   `json:"vsn,omitempty" yaml:"vsn,omitempty"`
}

// InputKind is the declared type of a shader input.
type InputKind int

const (
	KindFloat InputKind = iota
	KindBool
	KindColor
	KindPoint2D
	KindLong
	KindImage
	KindAudio
	KindAudioFFT
	KindEvent
	KindCube
)

// Kinds lists every known input kind.
var Kinds = []InputKind{
	KindFloat, KindBool, KindColor, KindPoint2D, KindLong,
	KindImage, KindAudio, KindAudioFFT, KindEvent, KindCube,
}

// String returns the ISF spelling of the kind.
func (k InputKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindColor:
		return "color"
	case KindPoint2D:
		return "point2D"
	case KindLong:
		return "long"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindAudioFFT:
		return "audioFFT"
	case KindEvent:
		return "event"
	case KindCube:
		return "cube"
	default:
		return "unknown"
	}
}

// ParseKind maps an ISF TYPE string to a kind. Matching is case-insensitive and
// accepts the aliases seen in the wild (int, vec2, vec4, texture).
func ParseKind(s string) (InputKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float":
		return KindFloat, true
	case "bool":
		return KindBool, true
	case "color", "vec4":
		return KindColor, true
	case "point2d", "vec2":
		return KindPoint2D, true
	case "long", "int":
		return KindLong, true
	case "image", "texture":
		return KindImage, true
	case "audio":
		return KindAudio, true
	case "audiofft":
		return KindAudioFFT, true
	case "event":
		return KindEvent, true
	case "cube":
		return KindCube, true
	}
	return KindFloat, false
}

// IsNumeric reports whether MIN/MAX bounds apply to the kind.
func (k InputKind) IsNumeric() bool { return k == KindFloat || k == KindLong }

// IsTexture reports whether the kind is bound as a texture rather than a buffer field.
func (k InputKind) IsTexture() bool {
	switch k {
	case KindImage, KindAudio, KindAudioFFT, KindCube:
		return true
	}
	return false
}

// InputDeclaration is one declared (or inferred) shader input. It is never
// mutated after the front end creates it.
type InputDeclaration struct {
	Name     string
	Kind     InputKind
	Default  cty.Value // cty.NilVal when the header has no DEFAULT
	Min      *float64
	Max      *float64
	Label    string
	Values   []int64
	Labels   []string
	Inferred bool
	Location *diagnostics.Location
}

// HasDefault reports whether a DEFAULT was declared.
func (in InputDeclaration) HasDefault() bool { return !in.Default.IsNull() }

// Pass is one ISF render pass.
type Pass struct {
	Target     string `json:"target,omitempty" yaml:"target,omitempty"`
	Persistent bool   `json:"persistent,omitempty" yaml:"persistent,omitempty"`
	Float      bool   `json:"float,omitempty" yaml:"float,omitempty"`
	Width      string `json:"width,omitempty" yaml:"width,omitempty"`
	Height     string `json:"height,omitempty" yaml:"height,omitempty"`
}

// ImportedImage is an entry of the ISF IMPORTED dictionary.
type ImportedImage struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Parsed is the format-agnostic output of a front end: metadata, inputs and the
// residual body with format-specific built-ins still in place.
type Parsed struct {
	Format   Format
	Metadata Metadata
	Inputs   []InputDeclaration
	Passes   []Pass
	Imported []ImportedImage
	Body     string
	// BodyLine is the 1-based line of the original source where Body starts.
	BodyLine int
	// Aliases maps uniform names the front end recognized as standard built-ins
	// (iTime, u_resolution, ...) to the built-in field they stand for.
	Aliases map[string]string
	// Preserved lists uniforms with no input equivalent, such as matrices,
	// that are still read by the body.
	Preserved []Uniform
}

// Uniform is a source uniform kept in the uniform buffer under its WGSL type.
type Uniform struct {
	Name     string
	Type     string
	Location *diagnostics.Location
}
