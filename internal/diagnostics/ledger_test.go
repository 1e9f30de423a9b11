package diagnostics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCounts(t *testing.T) {
	var l Ledger
	assert.False(t, l.HasErrors())
	assert.Equal(t, 0, l.Len())

	l.Add(Errorf("E1", "bad %s", "thing").At(10, 5, 3))
	l.Add(Warningf("W1", "meh"), Infof("I1", "fyi"), Infof("I2", "fyi again"))

	assert.True(t, l.HasErrors())
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, Summary{Errors: 1, Warnings: 1, Infos: 2, Total: 4}, l.Summary())
	assert.Equal(t, 2, l.Count(Info))
	assert.Len(t, l.BySeverity(Warning), 1)
	assert.Len(t, l.ByCode("I2"), 1)

	first, ok := l.FirstError()
	require.True(t, ok)
	assert.Equal(t, "bad thing", first.Message)
	require.NotNil(t, first.Location)
	assert.Equal(t, Location{Line: 10, Column: 5, Length: 3}, *first.Location)
}

func TestLedgerIsAppendOnly(t *testing.T) {
	var l Ledger
	prev := l.Len()
	for i := 0; i < 5; i++ {
		l.Add(Infof("I", "step %d", i))
		assert.GreaterOrEqual(t, l.Len(), prev)
		prev = l.Len()
	}
	all := l.All()
	all[0].Message = "mutated"
	assert.Equal(t, "step 0", l.All()[0].Message)
}

func TestLedgerMerge(t *testing.T) {
	var a, b Ledger
	a.Add(Infof("A", "a"))
	b.Add(Errorf("B", "b"), Warningf("C", "c"))
	a.Merge(&b)
	a.Merge(nil)
	assert.Equal(t, []string{"A", "B", "C"}, codes(a.All()))
	assert.Equal(t, 1, a.Summary().Errors)
}

func TestLedgerJSON(t *testing.T) {
	var l Ledger
	l.Add(Errorf("ISF_HEADER_JSON", "broken").At(1, 3, 0).WithSuggestion("fix the JSON"))

	data, err := json.Marshal(&l)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"error"`)
	assert.Contains(t, string(data), `"errors":1`)

	var back Ledger
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, l.All(), back.All())
	assert.Equal(t, l.Summary(), back.Summary())
}

func TestLedgerFormat(t *testing.T) {
	var empty Ledger
	assert.Equal(t, "No diagnostics found.\n", empty.Format(""))

	var l Ledger
	l.Add(Errorf("TEST_ERROR", "Test error message").At(10, 5, 3).WithSuggestion("try again"))
	l.Add(Infof("NOTE", "no location"))
	out := l.Format("test.glsl")
	assert.Contains(t, out, "Found 2 diagnostic(s): 1 error(s), 0 warning(s), 1 info(s)")
	assert.Contains(t, out, "[E] test.glsl:10:5 TEST_ERROR - Test error message")
	assert.Contains(t, out, "  suggestion: try again")
	assert.Contains(t, out, "[I] test.glsl NOTE - no location")
}

func TestSeverityText(t *testing.T) {
	for _, s := range []Severity{Error, Warning, Info} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Severity
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	var s Severity
	assert.Error(t, s.UnmarshalText([]byte("fatal")))
}

func TestDiagnosticString(t *testing.T) {
	d := Warningf("STAGE_DEFAULTED", "no stage").At(2, 7, 1)
	assert.Equal(t, "warning[STAGE_DEFAULTED] 2:7: no stage", d.String())
	assert.Nil(t, Infof("X", "y").At(0, 0, 0).Location)
}

func codes(ds []Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Code
	}
	return out
}
