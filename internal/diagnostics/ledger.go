package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Summary holds per-severity counts of a ledger.
type Summary struct {
	Errors   int `json:"errors" yaml:"errors"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Infos    int `json:"infos" yaml:"infos"`
	Total    int `json:"total" yaml:"total"`
}

// Report is the serializable view of a ledger.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Summary     Summary      `json:"summary" yaml:"summary"`
}

// Ledger is the ordered, append-only collection of diagnostics accumulated during
// one conversion. The zero value is ready to use. A Ledger is owned by a single
// conversion and is not safe for concurrent use.
type Ledger struct {
	items   []Diagnostic
	summary Summary
}

// Add appends diagnostics in order.
func (l *Ledger) Add(ds ...Diagnostic) {
	for _, d := range ds {
		switch d.Severity {
		case Error:
			l.summary.Errors++
		case Warning:
			l.summary.Warnings++
		default:
			l.summary.Infos++
		}
		l.summary.Total++
		l.items = append(l.items, d)
	}
}

// Merge appends every diagnostic of other.
func (l *Ledger) Merge(other *Ledger) {
	if other == nil {
		return
	}
	l.Add(other.items...)
}

// Len returns the number of recorded diagnostics.
func (l *Ledger) Len() int { return len(l.items) }

// All returns a copy of the diagnostics in insertion order.
func (l *Ledger) All() []Diagnostic {
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

// BySeverity returns the diagnostics of the given severity in insertion order.
func (l *Ledger) BySeverity(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.items {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// ByCode returns the diagnostics carrying code in insertion order.
func (l *Ledger) ByCode(code string) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.items {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many diagnostics have severity s.
func (l *Ledger) Count(s Severity) int {
	switch s {
	case Error:
		return l.summary.Errors
	case Warning:
		return l.summary.Warnings
	default:
		return l.summary.Infos
	}
}

// HasErrors reports whether any Error was recorded.
func (l *Ledger) HasErrors() bool { return l.summary.Errors > 0 }

// FirstError returns the first Error diagnostic, if any.
func (l *Ledger) FirstError() (Diagnostic, bool) {
	for _, d := range l.items {
		if d.Severity == Error {
			return d, true
		}
	}
	return Diagnostic{}, false
}

// Summary returns the aggregate counts.
func (l *Ledger) Summary() Summary { return l.summary }

// Report returns the serializable view of the ledger.
func (l *Ledger) Report() Report {
	return Report{Diagnostics: l.All(), Summary: l.summary}
}

// MarshalJSON encodes the ledger as its Report.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Report())
}

// MarshalYAML encodes the ledger as its Report.
func (l *Ledger) MarshalYAML() (any, error) {
	return l.Report(), nil
}

// UnmarshalJSON rebuilds a ledger from its Report; the summary is recomputed.
func (l *Ledger) UnmarshalJSON(b []byte) error {
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	*l = Ledger{}
	l.Add(r.Diagnostics...)
	return nil
}

// Format renders a human readable listing. file, when non-empty, prefixes every
// location.
func (l *Ledger) Format(file string) string {
	if len(l.items) == 0 {
		return "No diagnostics found.\n"
	}
	var sb strings.Builder
	s := l.summary
	fmt.Fprintf(&sb, "Found %d diagnostic(s): %d error(s), %d warning(s), %d info(s)\n\n",
		s.Total, s.Errors, s.Warnings, s.Infos)
	for _, d := range l.items {
		fmt.Fprintf(&sb, "[%c] ", d.Severity.Char())
		switch {
		case d.Location != nil && file != "":
			fmt.Fprintf(&sb, "%s:%d:%d ", file, d.Location.Line, d.Location.Column)
		case d.Location != nil:
			fmt.Fprintf(&sb, "%d:%d ", d.Location.Line, d.Location.Column)
		case file != "":
			fmt.Fprintf(&sb, "%s ", file)
		}
		fmt.Fprintf(&sb, "%s - %s\n", d.Code, d.Message)
		if d.Suggestion != "" {
			fmt.Fprintf(&sb, "  suggestion: %s\n", d.Suggestion)
		}
	}
	return sb.String()
}
