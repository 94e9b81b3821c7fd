package react

import (
	"fmt"
	"strings"

	"github.com/lexcodex/wayforward/framework"
)

const decisionProtocol = `Reply with exactly one JSON object per turn.
To call a tool:
{"thought": "why", "tool": "<tool name>", "arguments": {...}}
To finish:
{"thought": "why", "final_answer": "<concise answer>"}`

const continuePrompt = "Continue. Either call one of your tools or give your final_answer."

const summarizePrompt = `You have run out of steps. Using only the observations above, give your best final answer now as plain text.
If you found nothing useful, say briefly what you tried. Do not call tools and do not invent facts.`

func systemPrompt(a *Agent, native bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a worker agent. %s\n", a.name, a.description)
	fmt.Fprintf(&sb, "You have at most %d steps. Never make up information; rely only on your tools.\n\n", a.Options.MaxSteps)
	if native {
		sb.WriteString("Call tools when you need them. When you are done, answer in plain text without tool calls.")
		return sb.String()
	}
	sb.WriteString("Available tools:\n\n")
	sb.WriteString(framework.RenderToolsToPrompt(a.Tools.All()))
	sb.WriteString("\n\n")
	sb.WriteString(decisionProtocol)
	return sb.String()
}

func taskPrompt(task *framework.Task) string {
	if task.Name == "" {
		return "Task: " + task.Instruction
	}
	return fmt.Sprintf("Task (%s): %s", task.Name, task.Instruction)
}
