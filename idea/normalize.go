package idea

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize enforces the form contract on d and returns a new draft; d is not
// modified. Required fields are always present, list fields are []string and
// market_estimate is a non-negative int64. Normalize(Normalize(d)) equals
// Normalize(d).
func Normalize(d Draft) Draft {
	out := make(Draft, len(d)+len(Fields))
	for k, v := range d {
		out[k] = v
	}
	for _, f := range Fields {
		v, present := out[f.Name]
		if !present || v == nil {
			if f.Required {
				out[f.Name] = f.zero()
			}
			continue
		}
		switch f.Kind {
		case KindInt:
			out[f.Name] = coerceEstimate(v)
		case KindList:
			out[f.Name] = coerceList(v)
		default:
			out[f.Name] = coerceString(v)
		}
	}
	return out
}

// coerceList accepts comma-joined text or a list of anything.
func coerceList(v any) []string {
	items := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	switch val := v.(type) {
	case string:
		for _, part := range strings.Split(val, ",") {
			add(part)
		}
	case []string:
		for _, s := range val {
			add(s)
		}
	case []any:
		for _, item := range val {
			if item == nil {
				continue
			}
			add(coerceString(item))
		}
	default:
		add(coerceString(val))
	}
	return items
}

// coerceString renders scalars with their natural form and composites as
// JSON; lists of strings read as comma-joined text.
func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if item != nil {
				parts = append(parts, coerceString(item))
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(encoded)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// coerceEstimate strips non-digits from text; numbers are truncated and
// clamped to [0, MaxInt64]. Anything else is 0.
func coerceEstimate(v any) int64 {
	switch val := v.(type) {
	case string:
		return digitsToInt(val)
	case json.Number:
		return digitsToInt(string(val))
	case int:
		return clampInt(int64(val))
	case int32:
		return clampInt(int64(val))
	case int64:
		return clampInt(val)
	case uint:
		return clampUint(uint64(val))
	case uint64:
		return clampUint(val)
	case float32:
		return clampFloat(float64(val))
	case float64:
		return clampFloat(val)
	default:
		return 0
	}
}

func digitsToInt(s string) int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

func clampInt(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func clampUint(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}

func clampFloat(f float64) int64 {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(f)
	}
}
