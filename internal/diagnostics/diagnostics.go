package diagnostics

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Error means the affected field or body cannot be trusted.
	Error Severity = iota
	// Warning means a best-effort substitution or inference occurred.
	Warning
	// Info is notable but expected behavior.
	Info
)

// String returns the lowercase severity name (error, warning, info).
func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Char returns the one-letter tag used by Format.
func (s Severity) Char() byte {
	switch s {
	case Error:
		return 'E'
	case Warning:
		return 'W'
	default:
		return 'I'
	}
}

// MarshalText encodes the severity by name so JSON and YAML reports stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	case "info":
		*s = Info
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// Location points at a span of the source that produced a diagnostic. Line and
// Column are 1-based.
type Location struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
	Length int `json:"length,omitempty" yaml:"length,omitempty"`
}

// Diagnostic is a single structured message produced during a conversion.
type Diagnostic struct {
	Severity   Severity  `json:"severity" yaml:"severity"`
	Code       string    `json:"code" yaml:"code"`
	Message    string    `json:"message" yaml:"message"`
	Location   *Location `json:"location,omitempty" yaml:"location,omitempty"`
	Suggestion string    `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Errorf returns an Error diagnostic with a formatted message.
func Errorf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Error, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Warningf returns a Warning diagnostic with a formatted message.
func Warningf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Warning, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Infof returns an Info diagnostic with a formatted message.
func Infof(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Info, Code: code, Message: fmt.Sprintf(format, args...)}
}

// At returns a copy of d located at line:column spanning length bytes.
func (d Diagnostic) At(line, column, length int) Diagnostic {
	if line <= 0 {
		return d
	}
	d.Location = &Location{Line: line, Column: column, Length: length}
	return d
}

// WithSuggestion returns a copy of d carrying a suggested fix.
func (d Diagnostic) WithSuggestion(s string) Diagnostic {
	d.Suggestion = s
	return d
}

// String renders the diagnostic on one line, e.g. "error[ISF_HEADER_JSON] 1:3: ...".
func (d Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s[%s]", d.Severity, d.Code)
	if d.Location != nil {
		fmt.Fprintf(&sb, " %d:%d", d.Location.Line, d.Location.Column)
	}
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}
