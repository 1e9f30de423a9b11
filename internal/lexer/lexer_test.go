package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeIsLossless(t *testing.T) {
	sources := []string{
		"void main(){ gl_FragColor = vec4(1.0); }",
		"#version 330\n#define PI 3.14159\nfloat x = .5e-3f; // done\n",
		"/* unterminated comment",
		"float a = b >= c && d != 0x1Fu ? 1. : 2.0;",
		"Texture2D tex : register(t0); \"str\" $",
		"",
	}
	for _, src := range sources {
		assert.Equal(t, src, Join(Tokenize(src)), src)
	}
}

func TestTokenKinds(t *testing.T) {
	toks := Significant(Tokenize("vec3 c = vec3(1.0, 2, .5) * brightness;"))
	kinds := make([]Kind, len(toks))
	texts := make([]string, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
		texts[i] = tok.Text
	}
	assert.Equal(t, []string{"vec3", "c", "=", "vec3", "(", "1.0", ",", "2", ",", ".5", ")", "*", "brightness", ";"}, texts)
	assert.Equal(t, Ident, kinds[0])
	assert.Equal(t, Number, kinds[5])
	assert.Equal(t, Punct, kinds[4])
}

func TestDirectivesOnlyAtLineStart(t *testing.T) {
	toks := Significant(Tokenize("  #ifdef DEBUG\nx = a # b;\n#endif"))
	require.NotEmpty(t, toks)
	assert.Equal(t, Directive, toks[0].Kind)
	assert.Equal(t, "#ifdef DEBUG", toks[0].Text)
	assert.Equal(t, Directive, toks[len(toks)-1].Kind)
	for _, tok := range toks[1 : len(toks)-1] {
		assert.NotEqual(t, Directive, tok.Kind, tok.Text)
	}
}

func TestDirectiveContinuation(t *testing.T) {
	toks := Tokenize("#define ADD(a, b) \\\n  ((a) + (b))\nfoo")
	require.Len(t, toks, 3)
	assert.Equal(t, Directive, toks[0].Kind)
	assert.Equal(t, 3, toks[2].Line)
}

func TestPositions(t *testing.T) {
	toks := Significant(Tokenize("a\n  bb = 1;"))
	require.Len(t, toks, 4)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 3, toks[1].Column)
	assert.Equal(t, 4, toks[1].Offset)
}

func TestMemberAccessOnNumber(t *testing.T) {
	toks := Significant(Tokenize("1.x"))
	require.Len(t, toks, 3)
	assert.Equal(t, "1", toks[0].Text)
	assert.True(t, toks[1].Is("."))
}

func TestTwoCharOperators(t *testing.T) {
	toks := Significant(Tokenize("a += b++ -> c :: d"))
	var ops []string
	for _, tok := range toks {
		if tok.Kind == Punct {
			ops = append(ops, tok.Text)
		}
	}
	assert.Equal(t, []string{"+=", "++", "->", "::"}, ops)
}
