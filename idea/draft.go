// Package idea turns free-text idea descriptions into submission form drafts.
package idea

import (
	"fmt"
	"strings"
)

// Draft is the structured submission form. Values are strings, int64
// (market_estimate) or []string once normalized; unknown keys pass through.
type Draft map[string]any

// Kind is the shape a form field is normalized to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindList:
		return "list"
	default:
		return "string"
	}
}

// Field describes one form field.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
}

// MarketEstimateField is the only integer field.
const MarketEstimateField = "market_estimate"

// Fields is the form catalog in display order.
var Fields = []Field{
	{"title", KindString, true, "A concise title for the idea"},
	{"humanity_challenge", KindString, true, "The main challenge the idea addresses (must match one of the predefined challenges)"},
	{"category", KindString, true, "The category of the idea"},
	{"sub_category", KindString, true, "A more specific category"},
	{"geographic_focus", KindString, true, "The geographic scope (local, regional, global, etc.)"},
	{"time_horizon", KindString, true, "The timeframe for implementation"},
	{"problem_statement", KindString, true, "A clear statement of the problem being solved"},
	{"solution", KindString, true, "A description of the proposed solution"},
	{"why_now", KindString, true, "Why this idea is relevant and timely now"},
	{MarketEstimateField, KindInt, true, "Estimated market size in dollars (numeric value)"},
	{"business_model", KindString, true, "How the idea will generate revenue or sustain itself"},
	{"technologies", KindList, true, "List of technologies used"},
	{"competition", KindString, true, "Description of competing solutions"},
	{"status", KindString, true, "Current status of the idea (early-stage, prototype, etc.)"},
	{"type_of_author", KindString, false, "Type of person/entity submitting the idea"},
	{"author", KindString, false, "Name of the author"},
	{"sources", KindList, true, "List of sources or references"},

	{"ideal_customer_profile", KindString, false, "Description of the ideal customer"},
	{"skills_required", KindList, false, "List of skills needed to implement the idea"},
	{"potential_investors", KindList, false, "List of potential investors"},
	{"potential_customers", KindList, false, "List of potential customers"},
	{"contacts", KindList, false, "List of relevant contacts"},
	{"collaboration_groups", KindList, false, "List of groups to collaborate with"},
	{"similar_ideas", KindList, false, "List of similar ideas"},
	{"other", KindString, false, "Any other relevant information"},
}

var fieldIndex = func() map[string]Field {
	idx := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		idx[f.Name] = f
	}
	return idx
}()

// Lookup returns the catalog entry for name.
func Lookup(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// RequiredFields lists required field names in catalog order.
func RequiredFields() []string {
	var names []string
	for _, f := range Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// zero returns the empty value a field defaults to.
func (f Field) zero() any {
	switch f.Kind {
	case KindInt:
		return int64(0)
	case KindList:
		return []string{}
	default:
		return ""
	}
}

// Titles used when no extraction took place.
const (
	FallbackTitle         = "Generated from description"
	EmptyDescriptionTitle = "Please provide a description"
)

const echoLimit = 100

// Echo returns the first 100 characters of description, with "..." when it
// was cut.
func Echo(description string) string {
	runes := []rune(description)
	if len(runes) <= echoLimit {
		return description
	}
	return string(runes[:echoLimit]) + "..."
}

// Fallback is the minimal record returned when nothing could be recovered.
func Fallback(description string) Draft {
	return Draft{
		"title":             FallbackTitle,
		"problem_statement": Echo(description),
	}
}

// EmptyDescription is the complete draft returned for a blank description.
func EmptyDescription() Draft {
	return Normalize(Draft{"title": EmptyDescriptionTitle})
}

// String renders the draft in catalog order, for logs and the CLI.
func (d Draft) String() string {
	var sb strings.Builder
	for _, f := range Fields {
		v, ok := d[f.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%s: %v\n", f.Name, v)
	}
	return sb.String()
}
