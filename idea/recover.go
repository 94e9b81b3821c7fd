package idea

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/wayforward/agents"
	"github.com/lexcodex/wayforward/internal/parse"
)

// Strategy names the recovery step that produced a draft.
type Strategy string

const (
	StrategyRecord        Strategy = "record"
	StrategyStrictJSON    Strategy = "strict_json"
	StrategyBraceFragment Strategy = "brace_fragment"
	StrategyFinalAnswer   Strategy = "final_answer"
	StrategyLiteral       Strategy = "literal"
	StrategyFallback      Strategy = "fallback"
	StrategyEmpty         Strategy = "empty_description"
	StrategyPanic         Strategy = "panic"
)

type textStrategy struct {
	name  Strategy
	parse func(text string) (map[string]any, bool)
}

// textStrategies run in order; the first success wins.
var textStrategies = []textStrategy{
	{StrategyStrictJSON, strictJSON},
	{StrategyBraceFragment, braceFragment},
	{StrategyFinalAnswer, finalAnswerFragment},
	{StrategyLiteral, permissiveLiteral},
}

// Recover turns a coordinator output into a record, falling back to the
// minimal description echo when no strategy succeeds.
func Recover(out agents.Output, description string) (Draft, Strategy) {
	if out.IsRecord() {
		return copyRecord(out.Record), StrategyRecord
	}
	for _, s := range textStrategies {
		if record, ok := s.parse(out.Text); ok {
			return Draft(record), s.name
		}
	}
	return Fallback(description), StrategyFallback
}

func copyRecord(record map[string]any) Draft {
	d := make(Draft, len(record))
	for k, v := range record {
		d[k] = v
	}
	return d
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func strictJSON(text string) (map[string]any, bool) {
	return decodeObject(strings.TrimSpace(text))
}

// braceFragment tries the greedy first-{ to last-} span, then the first
// balanced object, each as written and with single quotes swapped for double.
func braceFragment(text string) (map[string]any, bool) {
	if fragment := parse.ExtractJSON(text); fragment != "" {
		if obj, ok := decodeQuoteTolerant(fragment); ok {
			return obj, true
		}
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, false
	}
	if obj, ok := firstObject(text[start:]); ok {
		return obj, true
	}
	return firstObject(normalizeQuotes(text[start:]))
}

func finalAnswerFragment(text string) (map[string]any, bool) {
	rest, ok := parse.AfterFinalAnswer(text)
	if !ok {
		return nil, false
	}
	fragment := parse.ExtractJSON(rest)
	if fragment == "" {
		return nil, false
	}
	return decodeQuoteTolerant(fragment)
}

func decodeQuoteTolerant(fragment string) (map[string]any, bool) {
	if obj, ok := decodeObject(fragment); ok {
		return obj, true
	}
	return decodeObject(normalizeQuotes(fragment))
}

// firstObject decodes one JSON object from the start of text and ignores
// whatever follows it.
func firstObject(text string) (map[string]any, bool) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func normalizeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `"`)
}

var (
	codeFence   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```$")
	pythonNone  = regexp.MustCompile(`([:\[,]\s*)None(\s*[,}\]])`)
	pythonTrue  = regexp.MustCompile(`([:\[,]\s*)True(\s*[,}\]])`)
	pythonFalse = regexp.MustCompile(`([:\[,]\s*)False(\s*[,}\]])`)
)

// permissiveLiteral reads a brace-delimited literal with YAML flow syntax,
// which tolerates single quotes and unquoted keys. Python style
// None/True/False are mapped first.
func permissiveLiteral(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, false
	}
	trimmed = pythonNone.ReplaceAllString(trimmed, "${1}null${2}")
	trimmed = pythonTrue.ReplaceAllString(trimmed, "${1}true${2}")
	trimmed = pythonFalse.ReplaceAllString(trimmed, "${1}false${2}")

	var obj map[string]any
	if err := yaml.Unmarshal([]byte(trimmed), &obj); err != nil || obj == nil {
		return nil, false
	}
	for k, v := range obj {
		obj[k] = stringKeys(v)
	}
	return obj, true
}

// stringKeys rewrites nested YAML maps, which may carry non-string keys, into
// JSON-encodable map[string]any.
func stringKeys(v any) any {
	switch value := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(value))
		for k, item := range value {
			m[fmt.Sprint(k)] = stringKeys(item)
		}
		return m
	case map[string]any:
		for k, item := range value {
			value[k] = stringKeys(item)
		}
		return value
	case []any:
		for i, item := range value {
			value[i] = stringKeys(item)
		}
		return value
	default:
		return v
	}
}
