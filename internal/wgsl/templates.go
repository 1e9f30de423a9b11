package wgsl

import (
	"bytes"
	"fmt"

	"github.com/shaderconv/converter/internal/layout"
)

// UniformsStruct returns the Uniforms struct declaration. Members use their
// storage type, so bool inputs appear as u32.
func UniformsStruct(l layout.Layout) []byte {
	var buf bytes.Buffer
	buf.WriteString("struct Uniforms {\n")
	for _, f := range l.Fields {
		fmt.Fprintf(&buf, "    %s: %s,", f.Name, f.StorageType)
		if f.StorageType != f.TargetType {
			fmt.Fprintf(&buf, " // %s", f.TargetType)
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

// Bindings returns the uniform buffer binding followed by every texture and
// its sampler.
func Bindings(l layout.Layout) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "@group(%d) @binding(%d) var<uniform> uniforms: Uniforms;\n",
		layout.UniformGroup, layout.UniformBinding)
	for _, t := range l.Textures {
		fmt.Fprintf(&buf, "@group(%d) @binding(%d) var %s: %s;\n", t.Group, t.Binding, t.Name, t.TargetType)
		fmt.Fprintf(&buf, "@group(%d) @binding(%d) var %s: sampler;\n", t.Group, t.SamplerBinding, t.Sampler)
	}
	return buf.Bytes()
}
