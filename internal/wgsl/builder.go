// Package wgsl assembles the files of a converted shader: the WGSL module
// itself and the optional manifest and SPIR-V binary written next to it.
package wgsl

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/shaderconv/converter/internal/layout"
)

// DefaultName is used when a shader has neither a header name nor a file name.
const DefaultName = "shader"

// Builder collects the pieces of one converted shader.
type Builder struct {
	name         string
	layout       layout.Layout
	body         string
	manifest     []byte
	spirv        []byte
	emitManifest bool
}

// NewBuilder returns a builder whose files are named after name.
func NewBuilder(name string, emitManifest bool) *Builder {
	return &Builder{
		name:         FileStem(name),
		emitManifest: emitManifest,
	}
}

// Name returns the file stem every emitted file shares.
func (b *Builder) Name() string { return b.name }

// SetLayout sets the resource interface declared ahead of the body.
func (b *Builder) SetLayout(l layout.Layout) {
	b.layout = l
}

// SetBody sets the rewritten shader body.
func (b *Builder) SetBody(body string) {
	b.body = body
}

// SetManifest sets the <name>.hcl content (optional).
func (b *Builder) SetManifest(content []byte) {
	b.manifest = content
}

// SetSPIRV sets the <name>.spv content (optional).
func (b *Builder) SetSPIRV(content []byte) {
	b.spirv = content
}

// Source returns the complete WGSL module: the Uniforms struct, then its
// binding, then the texture bindings, then the body.
func (b *Builder) Source() string {
	var buf bytes.Buffer
	buf.Write(UniformsStruct(b.layout))
	buf.WriteString("\n")
	buf.Write(Bindings(b.layout))
	body := strings.TrimLeft(b.body, "\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// Build returns a map of filename -> content for all emitted files.
func (b *Builder) Build() map[string][]byte {
	out := make(map[string][]byte)
	out[b.name+".wgsl"] = []byte(b.Source())
	if b.emitManifest && len(b.manifest) > 0 {
		out[b.name+".hcl"] = b.manifest
	}
	if len(b.spirv) > 0 {
		out[b.name+".spv"] = b.spirv
	}
	return out
}

var sourceExt = map[string]bool{
	".fs": true, ".isf": true, ".frag": true, ".vert": true, ".comp": true,
	".glsl": true, ".hlsl": true, ".fx": true, ".wgsl": true,
}

// FileStem turns a shader or file name into a safe file stem:
// "shaders/Color Bars.fs" becomes "Color_Bars".
func FileStem(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if ext := filepath.Ext(name); sourceExt[strings.ToLower(ext)] {
		name = strings.TrimSuffix(name, ext)
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == '_', r == '-', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	stem := strings.Trim(sb.String(), "_")
	if stem == "" {
		return DefaultName
	}
	return stem
}
