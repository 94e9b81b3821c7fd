package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/wayforward/idea"
	"github.com/lexcodex/wayforward/persistence"
)

var (
	colorPrimary   = lipgloss.Color("39")
	colorSecondary = lipgloss.Color("86")
	colorSuccess   = lipgloss.Color("42")
	colorWarning   = lipgloss.Color("220")
	colorDim       = lipgloss.Color("241")

	formBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	okStyle = lipgloss.NewStyle().
		Foreground(colorSuccess)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)

// renderDraft lays the draft out in catalog order. Empty fields are shown
// dimmed so the gaps are visible.
func renderDraft(d idea.Draft) string {
	var sb strings.Builder
	title, _ := d["title"].(string)
	if title == "" {
		title = "(untitled idea)"
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")
	for _, f := range idea.Fields {
		if f.Name == "title" {
			continue
		}
		v, ok := d[f.Name]
		if !ok {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render(humanize(f.Name)))
		sb.WriteString("\n")
		sb.WriteString(renderValue(v))
		sb.WriteString("\n")
	}
	return formBoxStyle.Render(strings.TrimRight(sb.String(), "\n"))
}

func renderValue(v any) string {
	switch value := v.(type) {
	case []string:
		if len(value) == 0 {
			return dimStyle.Render("-")
		}
		lines := make([]string, len(value))
		for i, item := range value {
			lines[i] = "• " + item
		}
		return strings.Join(lines, "\n")
	case string:
		if value == "" {
			return dimStyle.Render("-")
		}
		return value
	case int64:
		if value == 0 {
			return dimStyle.Render("-")
		}
		return fmt.Sprintf("$%d", value)
	default:
		return fmt.Sprint(value)
	}
}

// renderSummary is the one-line footer under a rendered draft.
func renderSummary(res *idea.Result) string {
	style := okStyle
	if res.Outcome() != idea.OutcomeOK {
		style = warnStyle
	}
	return fmt.Sprintf("%s %s",
		style.Render(res.Outcome()),
		dimStyle.Render(fmt.Sprintf("strategy=%s steps=%d delegations=%d in %s run=%s",
			res.Strategy, res.Steps, res.Delegations, res.Duration.Round(time.Millisecond), res.RunID)))
}

// renderRuns prints recent runs one per line, newest first.
func renderRuns(runs []persistence.Run, stats *persistence.Stats) string {
	if len(runs) == 0 {
		return dimStyle.Render("no runs recorded")
	}
	var sb strings.Builder
	for _, run := range runs {
		style := okStyle
		if run.Degraded {
			style = warnStyle
		}
		title, _ := run.Draft["title"].(string)
		fmt.Fprintf(&sb, "%s  %s  %-9s %-16s %s\n",
			dimStyle.Render(run.CreatedAt.Local().Format("2006-01-02 15:04")),
			dimStyle.Render(shortID(run.ID)),
			style.Render(run.Outcome),
			run.Strategy,
			title)
	}
	if stats != nil {
		fmt.Fprintf(&sb, "%s", dimStyle.Render(fmt.Sprintf("%d runs, %d degraded", stats.Total, stats.Degraded)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func humanize(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
