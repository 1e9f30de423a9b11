package lexer

// Kind classifies a token.
type Kind int

const (
	Ident Kind = iota
	Number
	Punct
	Whitespace
	Comment
	// Directive is a whole preprocessor line starting with '#', continuations included.
	Directive
	// String is a double-quoted literal; shading languages rarely have them but
	// #include arguments and HLSL annotations do.
	String
	// Other is any byte sequence the lexer does not understand. It is kept so the
	// stream stays lossless.
	Other
)

func (k Kind) String() string {
	switch k {
	case Ident:
		return "ident"
	case Number:
		return "number"
	case Punct:
		return "punct"
	case Whitespace:
		return "whitespace"
	case Comment:
		return "comment"
	case Directive:
		return "directive"
	case String:
		return "string"
	default:
		return "other"
	}
}

// Token is one lexeme with its 1-based position in the source.
type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Column int
	Offset int
}

// Trivia reports whether the token carries no meaning for the rewriter.
func (t Token) Trivia() bool { return t.Kind == Whitespace || t.Kind == Comment }

// Is reports whether t is the punctuation or identifier s.
func (t Token) Is(s string) bool {
	return (t.Kind == Punct || t.Kind == Ident) && t.Text == s
}
