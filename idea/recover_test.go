package idea

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/wayforward/agents"
)

func TestRecoverRecordIsAccepted(t *testing.T) {
	record := map[string]any{"title": "Solar"}
	d, strategy := Recover(agents.RecordOutput(record), "desc")
	assert.Equal(t, StrategyRecord, strategy)
	assert.Equal(t, Draft{"title": "Solar"}, d)

	d["title"] = "changed"
	assert.Equal(t, "Solar", record["title"])
}

func TestRecoverStrategies(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		strategy Strategy
		title    string
	}{
		{"strict json", ` {"title": "Strict"} `, StrategyStrictJSON, "Strict"},
		{"embedded json", "Here is the form:\n{\"title\": \"Embedded\"}\nThanks!", StrategyBraceFragment, "Embedded"},
		{"single quotes", "Result: {'title': 'Quoted', 'market_estimate': 5}", StrategyBraceFragment, "Quoted"},
		{"code fence", "```json\n{\"title\": \"Fenced\"}\n```", StrategyBraceFragment, "Fenced"},
		{"final answer marker", "I tried {broken stuff\nFinal answer: {'title': 'Marked'}", StrategyFinalAnswer, "Marked"},
		{"python literal", `{'title': "Bob's kiosk", 'verified': True, 'market_estimate': None}`, StrategyLiteral, "Bob's kiosk"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, strategy := Recover(agents.TextOutput(tc.text), "desc")
			assert.Equal(t, tc.strategy, strategy)
			assert.Equal(t, tc.title, d["title"])
		})
	}
}

func TestRecoverLiteralValues(t *testing.T) {
	d, strategy := Recover(agents.TextOutput(`{'title': "Bob's kiosk", 'verified': True, 'market_estimate': None, tags: [a, b]}`), "desc")
	require.Equal(t, StrategyLiteral, strategy)
	assert.Equal(t, true, d["verified"])
	assert.Nil(t, d["market_estimate"])
	assert.Equal(t, []any{"a", "b"}, d["tags"])
}

func TestRecoverLiteralNestedKeysEncode(t *testing.T) {
	d, strategy := Recover(agents.TextOutput(`{'title': 'X', 'meta': {1: 'a', nested: [{2: b}]}}`), "desc")
	require.Equal(t, StrategyLiteral, strategy)
	assert.Equal(t, map[string]any{"1": "a", "nested": []any{map[string]any{"2": "b"}}}, d["meta"])

	data, err := json.Marshal(Normalize(d))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"meta":{"1":"a"`)
}

func TestRecoverPrecedenceEarlierObjectWins(t *testing.T) {
	text := "Draft: {\"title\": \"First\"}\nMore thinking...\nFinal answer: {\"title\": \"Second\"}"
	d, strategy := Recover(agents.TextOutput(text), "desc")
	assert.Equal(t, StrategyBraceFragment, strategy)
	assert.Equal(t, "First", d["title"])

	whole := `{"title": "Whole", "note": "Final answer: {\"title\": \"Inner\"}"}`
	d, strategy = Recover(agents.TextOutput(whole), "desc")
	assert.Equal(t, StrategyStrictJSON, strategy)
	assert.Equal(t, "Whole", d["title"])
}

func TestRecoverFallback(t *testing.T) {
	desc := "xyz completely unparseable <<>> agent babble"
	d, strategy := Recover(agents.TextOutput(desc), desc)
	assert.Equal(t, StrategyFallback, strategy)
	assert.Equal(t, Draft{"title": FallbackTitle, "problem_statement": desc}, d)

	full := Normalize(d)
	assertWellFormed(t, full)
	assert.Equal(t, FallbackTitle, full["title"])
	assert.Equal(t, desc, full["problem_statement"])
	assert.Equal(t, int64(0), full[MarketEstimateField])
}

func TestRecoverEmptyOutputFallsBack(t *testing.T) {
	d, strategy := Recover(agents.Output{}, "an idea")
	assert.Equal(t, StrategyFallback, strategy)
	assert.Equal(t, "an idea", d["problem_statement"])
}

func TestRecoverNonObjectJSONFallsBack(t *testing.T) {
	for _, text := range []string{"null", "[1,2]", `"just a string"`} {
		_, strategy := Recover(agents.TextOutput(text), "d")
		assert.Equal(t, StrategyFallback, strategy, text)
	}
}

func TestEchoTruncationBoundary(t *testing.T) {
	desc := strings.Repeat("a", 100) + strings.Repeat("b", 50)
	require.Len(t, desc, 150)
	assert.Equal(t, strings.Repeat("a", 100)+"...", Echo(desc))
	assert.Equal(t, strings.Repeat("a", 100)+"...", Fallback(desc)["problem_statement"])

	exact := strings.Repeat("c", 100)
	assert.Equal(t, exact, Echo(exact))

	runes := strings.Repeat("é", 120)
	assert.Equal(t, strings.Repeat("é", 100)+"...", Echo(runes))
}
