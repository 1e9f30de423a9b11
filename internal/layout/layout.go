// Package layout maps shader inputs onto a WGSL uniform buffer and texture
// bindings. Offsets follow the WGSL uniform address-space alignment rules.
package layout

import (
	"fmt"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/shader"
)

// UniformGroup is the bind group every generated binding lives in.
const UniformGroup = 0

// UniformBinding is the binding index of the uniform buffer itself.
const UniformBinding = 0

// UniformField is one member of the generated Uniforms struct.
type UniformField struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	// TargetType is the WGSL type the body sees; StorageType is what the buffer
	// holds. They differ only for bool, which WGSL forbids in uniform buffers.
	TargetType  string `json:"target_type" yaml:"target_type"`
	StorageType string `json:"storage_type" yaml:"storage_type"`
	Offset      int    `json:"offset" yaml:"offset"`
	Size        int    `json:"size" yaml:"size"`
	Align       int    `json:"align" yaml:"align"`
	Group       int    `json:"group" yaml:"group"`
	Binding     int    `json:"binding" yaml:"binding"`
	Builtin     bool   `json:"builtin,omitempty" yaml:"builtin,omitempty"`
	// Kind is the input kind the field was mapped from; empty for built-ins
	// and preserved uniforms.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Preserved marks a source uniform that has no input equivalent but is
	// kept in the buffer so the body can still read it.
	Preserved bool `json:"preserved,omitempty" yaml:"preserved,omitempty"`
}

// TextureOrigin says where a texture binding came from.
type TextureOrigin string

const (
	OriginInput    TextureOrigin = "input"
	OriginPass     TextureOrigin = "pass"
	OriginImported TextureOrigin = "imported"
)

// TextureBinding is a texture plus the sampler bound right after it.
type TextureBinding struct {
	Name           string        `json:"name" yaml:"name"`
	Source         string        `json:"source" yaml:"source"`
	Sampler        string        `json:"sampler" yaml:"sampler"`
	TargetType     string        `json:"target_type" yaml:"target_type"`
	Origin         TextureOrigin `json:"origin" yaml:"origin"`
	Group          int           `json:"group" yaml:"group"`
	Binding        int           `json:"binding" yaml:"binding"`
	SamplerBinding int           `json:"sampler_binding" yaml:"sampler_binding"`
}

// Layout is the complete resource interface of a converted shader.
type Layout struct {
	Fields   []UniformField   `json:"fields" yaml:"fields"`
	Textures []TextureBinding `json:"textures,omitempty" yaml:"textures,omitempty"`
	// Size is the uniform buffer size, rounded up to 16 bytes.
	Size int `json:"size" yaml:"size"`
}

// Builtin is a standard uniform appended after the user fields.
type Builtin struct {
	Name string
	Type string
}

// Builtins lists the standard uniforms in their fixed order.
var Builtins = []Builtin{
	{"time", "f32"},
	{"timeDelta", "f32"},
	{"frame", "i32"},
	{"fps", "f32"},
	{"progress", "f32"},
	{"renderSize", "vec2<f32>"},
	{"aspectRatio", "f32"},
}

type typeLayout struct {
	size, align int
}

var primitiveLayout = map[string]typeLayout{
	"f32":       {4, 4},
	"i32":       {4, 4},
	"u32":       {4, 4},
	"vec2<f32>": {8, 8},
	"vec2<i32>": {8, 8},
	"vec3<f32>": {12, 16},
	"vec4<f32>": {16, 16},
	"vec3<i32>": {12, 16},
	"vec4<i32>": {16, 16},

	"mat2x2<f32>": {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
}

func roundUpAlign(alignment, value int) int {
	if alignment <= 1 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// TypeFor returns the WGSL type of a buffer-backed kind and the type stored in
// the buffer. ok is false for texture kinds and unknown kinds.
func TypeFor(k shader.InputKind) (target, storage string, ok bool) {
	switch k {
	case shader.KindFloat:
		return "f32", "f32", true
	case shader.KindBool:
		return "bool", "u32", true
	case shader.KindLong, shader.KindEvent:
		return "i32", "i32", true
	case shader.KindPoint2D:
		return "vec2<f32>", "vec2<f32>", true
	case shader.KindColor:
		return "vec4<f32>", "vec4<f32>", true
	}
	return "", "", false
}

// TextureTypeFor returns the WGSL texture type of a texture kind.
func TextureTypeFor(k shader.InputKind) (string, bool) {
	switch k {
	case shader.KindImage, shader.KindAudio, shader.KindAudioFFT:
		return "texture_2d<f32>", true
	case shader.KindCube:
		return "texture_cube<f32>", true
	}
	return "", false
}

// mapper assigns names, offsets and bindings in declaration order.
type mapper struct {
	lay     Layout
	offset  int
	binding int
	owners  map[string]string
	diags   []diagnostics.Diagnostic
}

func newMapper() *mapper {
	m := &mapper{binding: UniformBinding + 1, owners: make(map[string]string)}
	for _, b := range Builtins {
		m.owners[b.Name] = "built-in " + b.Name
	}
	return m
}

// claim reserves name for owner; it reports a collision when already taken.
func (m *mapper) claim(name, owner string, loc *diagnostics.Location) bool {
	prev, taken := m.owners[name]
	if !taken {
		m.owners[name] = owner
		return true
	}
	d := diagnostics.Errorf(diagnostics.CodeCollision,
		"%s sanitizes to %q, which is already used by %s; it is skipped", owner, name, prev).
		WithSuggestion("Rename one of the inputs")
	if loc != nil {
		d = d.At(loc.Line, loc.Column, loc.Length)
	}
	m.diags = append(m.diags, d)
	return false
}

func (m *mapper) field(name, source, target, storage string, builtin bool) *UniformField {
	tl := primitiveLayout[storage]
	m.offset = roundUpAlign(tl.align, m.offset)
	m.lay.Fields = append(m.lay.Fields, UniformField{
		Name:        name,
		Source:      source,
		TargetType:  target,
		StorageType: storage,
		Offset:      m.offset,
		Size:        tl.size,
		Align:       tl.align,
		Group:       UniformGroup,
		Binding:     UniformBinding,
		Builtin:     builtin,
	})
	m.offset += tl.size
	return &m.lay.Fields[len(m.lay.Fields)-1]
}

func (m *mapper) texture(name, source, typ string, origin TextureOrigin) {
	m.lay.Textures = append(m.lay.Textures, TextureBinding{
		Name:           name,
		Source:         source,
		Sampler:        SamplerName(name),
		TargetType:     typ,
		Origin:         origin,
		Group:          UniformGroup,
		Binding:        m.binding,
		SamplerBinding: m.binding + 1,
	})
	m.binding += 2
}

func (m *mapper) input(in shader.InputDeclaration) {
	name := Sanitize(in.Name)
	owner := fmt.Sprintf("input %q", in.Name)
	if typ, ok := TextureTypeFor(in.Kind); ok {
		if m.claim(name, owner, in.Location) && m.claim(SamplerName(name), owner, in.Location) {
			m.texture(name, in.Name, typ, OriginInput)
		}
		return
	}
	target, storage, ok := TypeFor(in.Kind)
	if !ok {
		d := diagnostics.Errorf(diagnostics.CodeUnmappedKind,
			"input %q has kind %s with no WGSL mapping; it is skipped", in.Name, in.Kind)
		if in.Location != nil {
			d = d.At(in.Location.Line, in.Location.Column, in.Location.Length)
		}
		m.diags = append(m.diags, d)
		return
	}
	if m.claim(name, owner, in.Location) {
		m.field(name, in.Name, target, storage, false).Kind = in.Kind.String()
	}
}

// preserved adds a uniform the front end could not turn into an input.
func (m *mapper) preserved(u shader.Uniform) {
	if _, ok := primitiveLayout[u.Type]; !ok {
		d := diagnostics.Errorf(diagnostics.CodeUnsupportedDecl,
			"uniform %q has WGSL type %s, which has no uniform buffer layout", u.Name, u.Type)
		if u.Location != nil {
			d = d.At(u.Location.Line, u.Location.Column, u.Location.Length)
		}
		m.diags = append(m.diags, d)
		return
	}
	name := Sanitize(u.Name)
	if m.claim(name, fmt.Sprintf("uniform %q", u.Name), u.Location) {
		m.field(name, u.Name, u.Type, u.Type, false).Preserved = true
	}
}

func (m *mapper) finish() (Layout, []diagnostics.Diagnostic) {
	for _, b := range Builtins {
		m.field(b.Name, "", b.Type, b.Type, true)
	}
	m.lay.Size = roundUpAlign(16, m.offset)
	return m.lay, m.diags
}

// MapTypes builds the uniform layout for inputs. User fields come first in
// declaration order, then the built-ins. Texture inputs become separate
// bindings. Unmappable and colliding inputs are skipped with an Error each.
func MapTypes(inputs []shader.InputDeclaration) (Layout, []diagnostics.Diagnostic) {
	m := newMapper()
	for _, in := range inputs {
		m.input(in)
	}
	return m.finish()
}

// Build is MapTypes plus the preserved uniforms, the ISF pass targets and the
// imported images. Targets and imported images are bound as extra 2D textures
// after the input textures.
func Build(p *shader.Parsed) (Layout, []diagnostics.Diagnostic) {
	m := newMapper()
	for _, in := range p.Inputs {
		m.input(in)
	}
	for _, u := range p.Preserved {
		m.preserved(u)
	}
	for i, pass := range p.Passes {
		if pass.Target == "" {
			continue
		}
		name := Sanitize(pass.Target)
		owner := fmt.Sprintf("pass %d target %q", i, pass.Target)
		if _, dup := m.owners[name]; dup && m.isPassTarget(name) {
			continue
		}
		if m.claim(name, owner, nil) && m.claim(SamplerName(name), owner, nil) {
			m.texture(name, pass.Target, "texture_2d<f32>", OriginPass)
		}
	}
	for _, img := range p.Imported {
		name := Sanitize(img.Name)
		owner := fmt.Sprintf("imported image %q", img.Name)
		if m.claim(name, owner, nil) && m.claim(SamplerName(name), owner, nil) {
			m.texture(name, img.Name, "texture_2d<f32>", OriginImported)
		}
	}
	return m.finish()
}

func (m *mapper) isPassTarget(name string) bool {
	for _, t := range m.lay.Textures {
		if t.Name == name && t.Origin == OriginPass {
			return true
		}
	}
	return false
}

// Field returns the field named name.
func (l Layout) Field(name string) (UniformField, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return UniformField{}, false
}

// UserFields returns the non built-in fields.
func (l Layout) UserFields() []UniformField {
	var out []UniformField
	for _, f := range l.Fields {
		if !f.Builtin {
			out = append(out, f)
		}
	}
	return out
}
