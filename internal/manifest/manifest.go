// Package manifest writes and reads the HCL parameter manifest emitted next to
// a converted shader. The manifest tells a host which uniforms and textures to
// bind and what each user input defaults to.
package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/shaderconv/converter/internal/layout"
	"github.com/shaderconv/converter/internal/shader"
	"github.com/zclconf/go-cty/cty"
)

// Manifest is the decoded form of a <name>.hcl file.
type Manifest struct {
	Shader Shader `hcl:"shader,block"`
}

// Shader is the top-level shader block.
type Shader struct {
	Name          string    `hcl:"name,label"`
	Description   string    `hcl:"description,optional"`
	Credit        string    `hcl:"credit,optional"`
	Categories    []string  `hcl:"categories,optional"`
	Version       string    `hcl:"version,optional"`
	Format        string    `hcl:"format"`
	Stage         string    `hcl:"stage"`
	EntryPoints   []string  `hcl:"entry_points,optional"`
	WorkgroupSize []int     `hcl:"workgroup_size,optional"`
	UniformSize   int       `hcl:"uniform_size"`
	Inputs        []Input   `hcl:"input,block"`
	Builtins      []Builtin `hcl:"builtin,block"`
	Uniforms      []Uniform `hcl:"uniform,block"`
	Textures      []Texture `hcl:"texture,block"`
	Passes        []Pass    `hcl:"pass,block"`
}

// Input describes one user input and where it lands in the generated module.
type Input struct {
	Name    string    `hcl:"name,label"`
	Kind    string    `hcl:"kind"`
	Field   string    `hcl:"field,optional"`
	Type    string    `hcl:"type,optional"`
	Offset  *int      `hcl:"offset,optional"`
	Default cty.Value `hcl:"default,optional"`
	Min     *float64  `hcl:"min,optional"`
	Max     *float64  `hcl:"max,optional"`
	Label   string    `hcl:"label,optional"`
	Values  []int64   `hcl:"values,optional"`
	Labels  []string  `hcl:"labels,optional"`
}

// Builtin is a standard uniform the host fills every frame.
type Builtin struct {
	Name   string `hcl:"name,label"`
	Type   string `hcl:"type"`
	Offset int    `hcl:"offset"`
}

// Uniform is a source uniform with no input equivalent that the host still
// has to fill.
type Uniform struct {
	Name   string `hcl:"name,label"`
	Source string `hcl:"source"`
	Type   string `hcl:"type"`
	Offset int    `hcl:"offset"`
}

// Texture is a texture binding and its sampler.
type Texture struct {
	Name           string `hcl:"name,label"`
	Source         string `hcl:"source"`
	Origin         string `hcl:"origin"`
	Type           string `hcl:"type"`
	Binding        int    `hcl:"binding"`
	Sampler        string `hcl:"sampler"`
	SamplerBinding int    `hcl:"sampler_binding"`
}

// Pass is an ISF render pass.
type Pass struct {
	Target     string `hcl:"target,optional"`
	Persistent bool   `hcl:"persistent,optional"`
	Float      bool   `hcl:"float,optional"`
	Width      string `hcl:"width,optional"`
	Height     string `hcl:"height,optional"`
}

// Source is what a conversion knows when the manifest is generated.
type Source struct {
	Name        string
	Parsed      *shader.Parsed
	Layout      layout.Layout
	Stage       shader.Stage
	EntryPoints []string
	Workgroup   [3]int
}

// New builds the manifest of a converted shader.
func New(src Source) *Manifest {
	p := src.Parsed
	if p == nil {
		p = &shader.Parsed{}
	}
	s := Shader{
		Name:        src.Name,
		Description: p.Metadata.Description,
		Credit:      p.Metadata.Credit,
		Categories:  p.Metadata.Categories,
		Version:     p.Metadata.Vsn,
		Format:      p.Format.String(),
		Stage:       src.Stage.String(),
		EntryPoints: src.EntryPoints,
		UniformSize: src.Layout.Size,
	}
	if src.Stage == shader.StageCompute {
		s.WorkgroupSize = src.Workgroup[:]
	}
	for _, in := range p.Inputs {
		s.Inputs = append(s.Inputs, input(in, src.Layout))
	}
	for _, f := range src.Layout.Fields {
		switch {
		case f.Builtin:
			s.Builtins = append(s.Builtins, Builtin{Name: f.Name, Type: f.TargetType, Offset: f.Offset})
		case f.Preserved:
			s.Uniforms = append(s.Uniforms, Uniform{Name: f.Name, Source: f.Source, Type: f.TargetType, Offset: f.Offset})
		}
	}
	for _, t := range src.Layout.Textures {
		s.Textures = append(s.Textures, Texture{
			Name:           t.Name,
			Source:         t.Source,
			Origin:         string(t.Origin),
			Type:           t.TargetType,
			Binding:        t.Binding,
			Sampler:        t.Sampler,
			SamplerBinding: t.SamplerBinding,
		})
	}
	for _, ps := range p.Passes {
		s.Passes = append(s.Passes, Pass(ps))
	}
	return &Manifest{Shader: s}
}

func input(in shader.InputDeclaration, lay layout.Layout) Input {
	out := Input{
		Name:    in.Name,
		Kind:    in.Kind.String(),
		Default: in.Default,
		Min:     in.Min,
		Max:     in.Max,
		Label:   in.Label,
		Values:  in.Values,
		Labels:  in.Labels,
	}
	for _, f := range lay.Fields {
		if !f.Builtin && f.Source == in.Name {
			offset := f.Offset
			out.Field, out.Type, out.Offset = f.Name, f.TargetType, &offset
			return out
		}
	}
	for _, t := range lay.Textures {
		if t.Origin == layout.OriginInput && t.Source == in.Name {
			out.Field, out.Type = t.Name, t.TargetType
			return out
		}
	}
	return out
}

// Bytes renders the manifest as HCL.
func (m *Manifest) Bytes() []byte {
	f := hclwrite.NewEmptyFile()
	s := m.Shader
	body := f.Body().AppendNewBlock("shader", []string{s.Name}).Body()

	setString(body, "description", s.Description)
	setString(body, "credit", s.Credit)
	setStrings(body, "categories", s.Categories)
	setString(body, "version", s.Version)
	body.SetAttributeValue("format", cty.StringVal(s.Format))
	body.SetAttributeValue("stage", cty.StringVal(s.Stage))
	setStrings(body, "entry_points", s.EntryPoints)
	setInts(body, "workgroup_size", s.WorkgroupSize)
	setInt(body, "uniform_size", s.UniformSize)

	for _, in := range s.Inputs {
		body.AppendNewline()
		b := body.AppendNewBlock("input", []string{in.Name}).Body()
		b.SetAttributeValue("kind", cty.StringVal(in.Kind))
		setString(b, "field", in.Field)
		setString(b, "type", in.Type)
		if in.Offset != nil {
			setInt(b, "offset", *in.Offset)
		}
		setValue(b, "default", in.Default)
		setFloat(b, "min", in.Min)
		setFloat(b, "max", in.Max)
		setString(b, "label", in.Label)
		setInts(b, "values", in.Values)
		setStrings(b, "labels", in.Labels)
	}
	for _, bi := range s.Builtins {
		body.AppendNewline()
		b := body.AppendNewBlock("builtin", []string{bi.Name}).Body()
		b.SetAttributeValue("type", cty.StringVal(bi.Type))
		setInt(b, "offset", bi.Offset)
	}
	for _, u := range s.Uniforms {
		body.AppendNewline()
		b := body.AppendNewBlock("uniform", []string{u.Name}).Body()
		b.SetAttributeValue("source", cty.StringVal(u.Source))
		b.SetAttributeValue("type", cty.StringVal(u.Type))
		setInt(b, "offset", u.Offset)
	}
	for _, t := range s.Textures {
		body.AppendNewline()
		b := body.AppendNewBlock("texture", []string{t.Name}).Body()
		b.SetAttributeValue("source", cty.StringVal(t.Source))
		b.SetAttributeValue("origin", cty.StringVal(t.Origin))
		b.SetAttributeValue("type", cty.StringVal(t.Type))
		setInt(b, "binding", t.Binding)
		b.SetAttributeValue("sampler", cty.StringVal(t.Sampler))
		setInt(b, "sampler_binding", t.SamplerBinding)
	}
	for _, ps := range s.Passes {
		body.AppendNewline()
		b := body.AppendNewBlock("pass", nil).Body()
		setString(b, "target", ps.Target)
		setBool(b, "persistent", ps.Persistent)
		setBool(b, "float", ps.Float)
		setString(b, "width", ps.Width)
		setString(b, "height", ps.Height)
	}
	return f.Bytes()
}

// Decode parses a manifest. filename is only used in error messages and must
// end in .hcl.
func Decode(filename string, src []byte) (*Manifest, error) {
	var m Manifest
	if err := hclsimple.Decode(filename, src, nil, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
