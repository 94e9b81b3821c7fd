package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/idea"
)

// eventChannel is a telemetry sink feeding the progress view. Events are
// dropped rather than blocking the agents when the view falls behind.
type eventChannel chan framework.Event

var _ framework.Telemetry = eventChannel(nil)

func (c eventChannel) Emit(event framework.Event) {
	switch event.Type {
	case framework.EventDelegation, framework.EventReplan, framework.EventToolCall, framework.EventStepCeiling:
	default:
		return
	}
	select {
	case c <- event:
	default:
	}
}

type agentEventMsg struct{ Event framework.Event }

type analysisDoneMsg struct{ Result *idea.Result }

// progressModel shows a spinner and the latest agent activity while an
// analysis runs. ctrl+c cancels the run; the analyzer still returns a draft.
type progressModel struct {
	spinner  spinner.Model
	events   <-chan framework.Event
	analyze  func(ctx context.Context) *idea.Result
	ctx      context.Context
	cancel   context.CancelFunc
	status   string
	activity []string
	result   *idea.Result
}

const activityLines = 4

func newProgressModel(ctx context.Context, events <-chan framework.Event, analyze func(ctx context.Context) *idea.Result) *progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = labelStyle
	ctx, cancel := context.WithCancel(ctx)
	return &progressModel{
		spinner: sp,
		events:  events,
		analyze: analyze,
		ctx:     ctx,
		cancel:  cancel,
		status:  "planning",
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenEvents(), m.run())
}

func (m *progressModel) run() tea.Cmd {
	return func() tea.Msg {
		return analysisDoneMsg{Result: m.analyze(m.ctx)}
	}
}

func (m *progressModel) listenEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return nil
		}
		return agentEventMsg{Event: evt}
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.status = "cancelling"
			m.cancel()
		}
		return m, nil
	case agentEventMsg:
		m.record(msg.Event)
		return m, m.listenEvents()
	case analysisDoneMsg:
		m.result = msg.Result
		m.cancel()
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *progressModel) record(evt framework.Event) {
	var line string
	switch evt.Type {
	case framework.EventDelegation:
		worker, _ := evt.Metadata["worker"].(string)
		field, _ := evt.Metadata["field"].(string)
		m.status = "delegating to " + worker
		line = fmt.Sprintf("→ %s %s", worker, field)
	case framework.EventReplan:
		m.status = "re-planning"
		line = fmt.Sprintf("↻ re-plan at step %v", evt.Metadata["step"])
	case framework.EventToolCall:
		line = "  " + evt.Message
	case framework.EventStepCeiling:
		m.status = "finalizing"
		line = "! step limit reached"
	default:
		return
	}
	m.activity = append(m.activity, line)
	if len(m.activity) > activityLines {
		m.activity = m.activity[len(m.activity)-activityLines:]
	}
}

func (m *progressModel) View() string {
	if m.result != nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Analyzing idea: %s\n", m.spinner.View(), m.status)
	for _, line := range m.activity {
		sb.WriteString(dimStyle.Render(line))
		sb.WriteString("\n")
	}
	return sb.String()
}

// runWithProgress drives the analysis under a spinner written to out.
func runWithProgress(ctx context.Context, out io.Writer, events <-chan framework.Event, analyze func(ctx context.Context) *idea.Result) (*idea.Result, error) {
	model := newProgressModel(ctx, events, analyze)
	program := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return nil, err
	}
	pm, ok := final.(*progressModel)
	if !ok || pm.result == nil {
		return nil, fmt.Errorf("analysis did not finish")
	}
	return pm.result, nil
}
