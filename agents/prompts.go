package agents

import (
	"fmt"
	"strings"
)

const coordinatorProtocol = `You coordinate worker agents to fill in a form. You have no tools of your own.
Reply with exactly one JSON object per turn, in one of these shapes:

Delegate one task to a worker:
{"thought": "why", "worker": "<worker name>", "task": "<self-contained instruction>", "field": "<form field it fills>"}

Think without acting:
{"thought": "what you concluded"}

Finish with the completed form:
{"thought": "why", "final_answer": {<form fields>}}

Rules:
- Only delegate to the workers listed above, one task at a time.
- Try to produce a value for every required field.
- If a field cannot be filled after two attempts, leave it blank. Never make up information.`

const planPrompt = "Before delegating, write a short numbered plan of which fields you will fill and which worker you will ask for each. Reply with {\"thought\": \"<plan>\"}."

const finalizePrompt = `You have reached the step limit. Respond now with ONLY {"final_answer": {<form fields>}} using what you have gathered.
Leave unknown fields blank. Do not delegate again.`

func coordinatorSystemPrompt(workers []Worker, maxSteps int) string {
	var sb strings.Builder
	sb.WriteString("Available workers:\n")
	for _, w := range workers {
		fmt.Fprintf(&sb, "- %s: %s\n", w.Name(), w.Description())
	}
	sb.WriteString("\n")
	sb.WriteString(coordinatorProtocol)
	fmt.Fprintf(&sb, "\n\nYou have at most %d steps.", maxSteps)
	return sb.String()
}

func replanPrompt(step, maxSteps, delegations int, filled []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Progress check: step %d of %d, %d delegations so far.", step, maxSteps, delegations)
	if len(filled) > 0 {
		fmt.Fprintf(&sb, " Fields researched: %s.", strings.Join(filled, ", "))
	}
	sb.WriteString(" Re-evaluate your remaining plan against this progress, drop anything that is not working, and reply with {\"thought\": \"<revised plan>\"}.")
	return sb.String()
}

func delegationLimitObservation(worker, subject string, limit int) string {
	return fmt.Sprintf("Delegation limit reached: %s was already asked about %q %d times. Leave this field blank and move on.", worker, subject, limit)
}
