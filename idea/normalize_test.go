package idea

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertWellFormed(t *testing.T, d Draft) {
	t.Helper()
	for _, name := range RequiredFields() {
		v, ok := d[name]
		require.Truef(t, ok, "missing required field %s", name)
		f, _ := Lookup(name)
		switch f.Kind {
		case KindInt:
			n, ok := v.(int64)
			assert.Truef(t, ok, "%s should be int64, got %T", name, v)
			assert.GreaterOrEqual(t, n, int64(0))
		case KindList:
			_, ok := v.([]string)
			assert.Truef(t, ok, "%s should be []string, got %T", name, v)
		default:
			_, ok := v.(string)
			assert.Truef(t, ok, "%s should be string, got %T", name, v)
		}
	}
}

func TestNormalizeFillsRequiredFields(t *testing.T) {
	d := Normalize(Draft{"title": "Solar kiosks"})
	assertWellFormed(t, d)
	assert.Equal(t, "Solar kiosks", d["title"])
	assert.Equal(t, "", d["why_now"])
	assert.Equal(t, int64(0), d[MarketEstimateField])
	assert.Equal(t, []string{}, d["technologies"])
	_, hasOptional := d["skills_required"]
	assert.False(t, hasOptional)
}

func TestNormalizeNilRequiredBecomesDefault(t *testing.T) {
	d := Normalize(Draft{"title": nil, "sources": nil, "market_estimate": nil})
	assert.Equal(t, "", d["title"])
	assert.Equal(t, []string{}, d["sources"])
	assert.Equal(t, int64(0), d[MarketEstimateField])
}

func TestNormalizeListCoercion(t *testing.T) {
	for _, f := range Fields {
		if f.Kind != KindList {
			continue
		}
		t.Run(f.Name, func(t *testing.T) {
			d := Normalize(Draft{f.Name: "a, b , c"})
			assert.Equal(t, []string{"a", "b", "c"}, d[f.Name])
		})
	}
}

func TestNormalizeListShapes(t *testing.T) {
	d := Normalize(Draft{
		"technologies":  []any{" Go ", 42, nil, ""},
		"sources":       "",
		"contacts":      []string{"x", " "},
		"similar_ideas": 3.5,
	})
	assert.Equal(t, []string{"Go", "42"}, d["technologies"])
	assert.Equal(t, []string{}, d["sources"])
	assert.Equal(t, []string{"x"}, d["contacts"])
	assert.Equal(t, []string{"3.5"}, d["similar_ideas"])
}

func TestNormalizeMarketEstimate(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int64
	}{
		{"dollar string", "$1,234", 1234},
		{"int", 1234, 1234},
		{"float", float64(1234), 1234},
		{"letters", "abc", 0},
		{"nil", nil, 0},
		{"negative", -50, 0},
		{"fraction", 99.9, 99},
		{"bool", true, 0},
		{"overflow", strings.Repeat("9", 40), 9223372036854775807},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Normalize(Draft{MarketEstimateField: tc.in})
			assert.Equal(t, tc.want, d[MarketEstimateField])
		})
	}
}

func TestNormalizeStringifiesScalars(t *testing.T) {
	d := Normalize(Draft{
		"title":       42,
		"competition": []any{"Acme", "Globex"},
		"status":      map[string]any{"stage": "prototype"},
		"solution":    1.5,
		"other":       false,
	})
	assert.Equal(t, "42", d["title"])
	assert.Equal(t, "Acme, Globex", d["competition"])
	assert.Equal(t, `{"stage":"prototype"}`, d["status"])
	assert.Equal(t, "1.5", d["solution"])
	assert.Equal(t, "false", d["other"])
}

func TestNormalizeKeepsUnknownKeysAndInput(t *testing.T) {
	in := Draft{"title": "T", "sources": "a,b", "thought": "extra"}
	out := Normalize(in)
	assert.Equal(t, "extra", out["thought"])
	assert.Equal(t, "a,b", in["sources"])
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []Draft{
		{},
		{"title": "Solar", "market_estimate": "$12,000", "technologies": "solar, iot"},
		{"market_estimate": 3.7, "sources": []any{"x", 1, nil}, "competition": []any{"a"}},
		{"title": nil, "skills_required": "go ,, rust", "author": 7, "custom": map[string]any{"k": 1}},
		Fallback(strings.Repeat("long description ", 20)),
	}
	for i, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("input %d: normalize not idempotent (-once +twice):\n%s", i, diff)
		}
	}
}
