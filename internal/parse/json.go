// Package parse holds the small text helpers agents use to read model output.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

var finalAnswerPattern = regexp.MustCompile(`(?i)final\s*answer\s*:`)

// ExtractJSON returns the greedy first-{ to last-} fragment of raw, or "" when
// there is none.
func ExtractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return ""
}

// Object decodes the embedded JSON object in raw, if any.
func Object(raw string) (map[string]interface{}, bool) {
	fragment := ExtractJSON(raw)
	if fragment == "" {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(fragment), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// AfterFinalAnswer returns the text following a case-insensitive
// "Final answer:" marker.
func AfterFinalAnswer(raw string) (string, bool) {
	loc := finalAnswerPattern.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(raw[loc[1]:]), true
}

// String reads a string-valued key, accepting the first key present.
func String(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// Clip shortens s to max bytes on a rune boundary.
func Clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
