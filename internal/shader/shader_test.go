package shader

import (
	"encoding/json"
	"testing"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want InputKind
		ok   bool
	}{
		{"float", KindFloat, true},
		{"FLOAT", KindFloat, true},
		{"point2D", KindPoint2D, true},
		{"vec2", KindPoint2D, true},
		{"color", KindColor, true},
		{"long", KindLong, true},
		{"int", KindLong, true},
		{"image", KindImage, true},
		{"audioFFT", KindAudioFFT, true},
		{"event", KindEvent, true},
		{"cube", KindCube, true},
		{"matrix", KindFloat, false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
	for _, k := range Kinds {
		back, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, back)
	}
}

func TestFormatFromPath(t *testing.T) {
	f, ok := FormatFromPath("shaders/Blur.fs")
	require.True(t, ok)
	assert.Equal(t, FormatISF, f)
	f, ok = FormatFromPath("a.frag")
	require.True(t, ok)
	assert.Equal(t, FormatGLSL, f)
	f, ok = FormatFromPath("a.hlsl")
	require.True(t, ok)
	assert.Equal(t, FormatHLSL, f)
	_, ok = FormatFromPath("a.txt")
	assert.False(t, ok)
}

func TestDefaultValue(t *testing.T) {
	v, err := DefaultValue(KindFloat, json.RawMessage(`1.5`))
	require.NoError(t, err)
	assert.Equal(t, 1.5, GoValue(v))

	v, err = DefaultValue(KindBool, json.RawMessage(`1.0`))
	require.NoError(t, err)
	assert.True(t, v.True())

	v, err = DefaultValue(KindColor, json.RawMessage(`[1.0, 0.5, 0.25, 1]`))
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 0.5, 0.25, 1.0}, GoValue(v))

	_, err = DefaultValue(KindPoint2D, json.RawMessage(`[1, 2, 3]`))
	assert.Error(t, err)

	_, err = DefaultValue(KindFloat, json.RawMessage(`"fast"`))
	assert.Error(t, err)

	_, err = DefaultValue(KindImage, json.RawMessage(`1`))
	assert.ErrorIs(t, err, ErrNoDefault)

	v, err = DefaultValue(KindFloat, json.RawMessage(`null`))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestValidate(t *testing.T) {
	lo, hi := 2.0, 1.0
	zero, one := 0.0, 1.0
	inputs := []InputDeclaration{
		{Name: "ok", Kind: KindFloat, Default: cty.NumberFloatVal(0.5), Min: &zero, Max: &one},
		{Name: "", Kind: KindFloat},
		{Name: "swapped", Kind: KindFloat, Min: &lo, Max: &hi},
		{Name: "outside", Kind: KindFloat, Default: cty.NumberFloatVal(3), Min: &zero, Max: &one},
	}
	ds := Validate(inputs)
	require.Len(t, ds, 3)
	assert.Equal(t, diagnostics.Error, ds[0].Severity)
	assert.Equal(t, diagnostics.CodeInputInvalid, ds[0].Code)
	assert.Equal(t, diagnostics.CodeInvalidRange, ds[1].Code)
	assert.Equal(t, diagnostics.CodeInvalidRange, ds[2].Code)
}

func TestInputDeclarationJSON(t *testing.T) {
	min := 0.0
	in := InputDeclaration{Name: "speed", Kind: KindFloat, Default: cty.NumberFloatVal(2), Min: &min}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"speed","kind":"float","default":2,"min":0}`, string(data))

	data, err = json.Marshal(InputDeclaration{Name: "tex", Kind: KindImage})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"tex","kind":"image"}`, string(data))
}
