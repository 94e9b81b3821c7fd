package agents

import "strings"

// Output is what a coordinator run produced: either a structured record or
// raw text. Exactly one side is meaningful; Record wins when set.
type Output struct {
	Record map[string]any
	Text   string
}

// RecordOutput wraps a structured final answer.
func RecordOutput(record map[string]any) Output { return Output{Record: record} }

// TextOutput wraps a free-form final answer.
func TextOutput(text string) Output { return Output{Text: text} }

// IsRecord reports whether the output is already structured.
func (o Output) IsRecord() bool { return o.Record != nil }

// Empty reports whether the run produced nothing usable.
func (o Output) Empty() bool {
	return o.Record == nil && strings.TrimSpace(o.Text) == ""
}
