package idea

import (
	"fmt"
	"strings"
)

const formPreamble = `You are an expert AI assistant that helps users fill out idea submission forms.
Your goal is to analyze the user's idea description and extract relevant information to populate the form fields.
Use the workers provided when needed:
- web_search_agent: searches the web for information
- market_estimate_agent: estimates the market size of the idea
`

const formRules = `
Analyze the user's description thoroughly and extract as much information as possible.
If information for a field is not provided, use the workers available to you to find the information.
Never make up information, only base your answers on the information provided by the user or your workers.
For list fields, provide items as a comma-separated list.
For the market_estimate field, provide a numeric value.
Your final answer must be a single JSON object whose keys are the form field names.
`

// FormPrompt builds the coordinator instruction for one description.
func FormPrompt(description string) string {
	var sb strings.Builder
	sb.WriteString(formPreamble)
	sb.WriteString("\nThe form has the following fields:\n")
	writeFields(&sb, func(f Field) bool { return f.Required || f.Name == "type_of_author" || f.Name == "author" })
	sb.WriteString("\nOptional fields:\n")
	writeFields(&sb, func(f Field) bool { return !f.Required && f.Name != "type_of_author" && f.Name != "author" })
	sb.WriteString(formRules)
	sb.WriteString("Here is the idea description: ")
	sb.WriteString(description)
	return sb.String()
}

func writeFields(sb *strings.Builder, include func(Field) bool) {
	for _, f := range Fields {
		if include(f) {
			fmt.Fprintf(sb, "- %s: %s\n", f.Name, f.Description)
		}
	}
}

// ImprovementPrompt asks for a cleaned-up description without new content.
func ImprovementPrompt(text string) string {
	return `You are an expert at improving idea descriptions to make them clearer and more structured.

I'll provide you with a raw idea description that may contain typos, ambiguities, or unclear explanations.
Your task is to improve this description while:

1. Maintaining the original idea's core concepts and intent
2. Fixing typos and grammatical errors
3. Clarifying ambiguous statements
4. Structuring the content in a logical flow
5. Making the description more readable for an AI agent that will later analyze it
6. NOT adding new features or assumptions that weren't implied in the original text
7. NOT changing the fundamental nature of the idea

Here is the raw idea description:

` + "```\n" + text + "\n```" + `

Provide ONLY the improved version without any explanations, introductions, or additional commentary.`
}
