// Package react implements the bounded Reason+Act loop used by worker agents.
package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/internal/metrics"
	"github.com/lexcodex/wayforward/internal/parse"
)

const (
	keyStep         = "react.step"
	keyDecision     = "react.decision"
	keyNext         = "react.next"
	keyAnswer       = "react.answer"
	keyExhausted    = "react.exhausted"
	keyObservations = "react.observations"
	keyMessages     = "react.messages"
	keyModelError   = "react.model_error"

	nextThink     = "think"
	nextSummarize = "summarize"
	nextDone      = "done"
)

// Options bounds and instruments one worker.
type Options struct {
	MaxSteps        int
	LLM             framework.LLMOptions
	NativeToolCalls bool
	Telemetry       framework.Telemetry
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Agent is a ReAct worker scoped to a fixed tool registry. Each Execute call
// owns its state; an Agent value may be reused across delegations.
type Agent struct {
	Model   framework.LanguageModel
	Tools   *framework.ToolRegistry
	Options Options

	name        string
	description string
}

// New builds a worker. A non-positive MaxSteps falls back to 4.
func New(name, description string, model framework.LanguageModel, tools *framework.ToolRegistry, opts Options) *Agent {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 4
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if tools == nil {
		tools = framework.NewToolRegistry()
	}
	return &Agent{Model: model, Tools: tools, Options: opts, name: name, description: description}
}

// Name is the stable name the coordinator addresses this worker by.
func (a *Agent) Name() string { return a.name }

// Description tells the coordinator what the worker is for.
func (a *Agent) Description() string { return a.description }

// Capabilities derives capabilities from the registered tool categories.
func (a *Agent) Capabilities() []framework.Capability {
	seen := map[framework.Capability]bool{}
	var caps []framework.Capability
	for _, tool := range a.Tools.All() {
		var c framework.Capability
		switch tool.Category() {
		case "research":
			c = framework.CapabilityResearch
		case "market":
			c = framework.CapabilityEstimate
		default:
			continue
		}
		if !seen[c] {
			seen[c] = true
			caps = append(caps, c)
		}
	}
	return caps
}

// Delegate runs one task to completion and returns the worker's answer. Only
// context cancellation is reported as an error; every other failure still
// yields best-effort text.
func (a *Agent) Delegate(ctx context.Context, taskName, description string) (string, error) {
	task := &framework.Task{
		ID:          uuid.NewString(),
		Name:        taskName,
		Type:        taskType(a.Capabilities()),
		Instruction: description,
	}
	state := framework.NewContext()
	res, err := a.Execute(ctx, task, state)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		a.Options.Logger.Warn("worker run failed", zap.String("worker", a.name), zap.Error(err))
		return digest(task, state, err.Error()), nil
	}
	answer, _ := res.Data["answer"].(string)
	if strings.TrimSpace(answer) == "" {
		answer = digest(task, state, "empty answer")
	}
	return answer, nil
}

func taskType(caps []framework.Capability) framework.TaskType {
	for _, c := range caps {
		if c == framework.CapabilityEstimate {
			return framework.TaskTypeEstimation
		}
	}
	return framework.TaskTypeResearch
}

// Execute runs the task through the workflow graph.
func (a *Agent) Execute(ctx context.Context, task *framework.Task, state *framework.Context) (*framework.Result, error) {
	if task == nil {
		return nil, errors.New("task is required")
	}
	if state == nil {
		state = framework.NewContext()
	}
	graph, err := a.BuildGraph(task)
	if err != nil {
		return nil, err
	}
	parent, _ := framework.TaskContextFrom(ctx)
	ctx = framework.WithTaskContext(ctx, framework.TaskContext{
		RunID:       parent.RunID,
		Agent:       a.name,
		ID:          task.ID,
		Type:        task.Type,
		Instruction: task.Instruction,
	})
	state.Set("task.id", task.ID)
	a.emit(framework.EventAgentStart, task.ID, "worker started", map[string]interface{}{"worker": a.name, "task": task.Name})

	_, err = graph.Execute(ctx, state)
	steps := state.GetInt(keyStep)
	exhausted, _ := state.Get(keyExhausted)
	exhaustedBool, _ := exhausted.(bool)
	a.Options.Metrics.ObserveAgentRun(a.name, steps, exhaustedBool)
	if err != nil {
		return nil, err
	}
	answer := state.GetString(keyAnswer)
	a.emit(framework.EventAgentFinish, task.ID, "worker finished", map[string]interface{}{
		"worker":    a.name,
		"steps":     steps,
		"exhausted": exhaustedBool,
	})
	return &framework.Result{
		NodeID:  "react_done",
		Success: true,
		Data: map[string]any{
			"answer":    answer,
			"steps":     steps,
			"exhausted": exhaustedBool,
		},
	}, nil
}

// BuildGraph constructs think → act → observe, looping until a final answer
// or the step ceiling, which diverts through summarize.
func (a *Agent) BuildGraph(task *framework.Task) (*framework.Graph, error) {
	if a.Model == nil {
		return nil, fmt.Errorf("react agent %s missing language model", a.name)
	}
	graph := framework.NewGraph()
	graph.SetTelemetry(a.Options.Telemetry)
	think := &thinkNode{id: "react_think", agent: a, task: task}
	act := &actNode{id: "react_act", agent: a}
	observe := &observeNode{id: "react_observe", agent: a}
	summarize := &summarizeNode{id: "react_summarize", agent: a, task: task}
	done := framework.NewTerminalNode("react_done")

	for _, node := range []framework.Node{think, act, observe, summarize, done} {
		if err := graph.AddNode(node); err != nil {
			return nil, err
		}
	}
	if err := graph.SetStart(think.ID()); err != nil {
		return nil, err
	}
	edges := []struct {
		from, to string
		cond     framework.ConditionFunc
	}{
		{think.ID(), act.ID(), nil},
		{act.ID(), observe.ID(), nil},
		{observe.ID(), think.ID(), routeIs(nextThink)},
		{observe.ID(), summarize.ID(), routeIs(nextSummarize)},
		{observe.ID(), done.ID(), routeIs(nextDone)},
		{summarize.ID(), done.ID(), nil},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e.from, e.to, e.cond); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

func routeIs(target string) framework.ConditionFunc {
	return func(_ *framework.Result, state *framework.Context) bool {
		return state.GetString(keyNext) == target
	}
}

func (a *Agent) llmOptions() *framework.LLMOptions {
	opts := a.Options.LLM
	return &opts
}

func (a *Agent) emit(eventType framework.EventType, taskID, message string, meta map[string]interface{}) {
	if a.Options.Telemetry == nil {
		return
	}
	a.Options.Telemetry.Emit(framework.Event{
		Type:      eventType,
		TaskID:    taskID,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	})
}

// decision is what the think step resolved the model output into.
type decision struct {
	Thought string
	Calls   []framework.ToolCall
	Final   string
	IsFinal bool
	Halted  bool
}

type thinkNode struct {
	id    string
	agent *Agent
	task  *framework.Task
}

func (n *thinkNode) ID() string               { return n.id }
func (n *thinkNode) Type() framework.NodeType { return framework.NodeTypeLLM }

func (n *thinkNode) Execute(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase("reasoning")
	step := state.Increment(keyStep)
	tools := n.agent.Tools.All()
	native := n.agent.Options.NativeToolCalls && len(tools) > 0
	messages := ensureMessages(state, n.agent, n.task, native)

	var resp *framework.LLMResponse
	var err error
	if native {
		resp, err = n.agent.Model.ChatWithTools(ctx, messages, tools, n.agent.llmOptions())
	} else {
		resp, err = n.agent.Model.Chat(ctx, messages, n.agent.llmOptions())
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		n.agent.Options.Logger.Warn("worker model call failed",
			zap.String("worker", n.agent.name), zap.Int("step", step), zap.Error(err))
		state.Set(keyModelError, err.Error())
		d := decision{Halted: true}
		state.Set(keyDecision, d)
		return &framework.Result{NodeID: n.id, Success: false, Error: err}, nil
	}

	d := resolveDecision(resp, n.agent.Tools)
	messages = append(messages, framework.Message{Role: "assistant", Content: resp.Text, ToolCalls: nativeCalls(resp, native)})
	saveMessages(state, messages)
	state.AddInteraction("assistant", resp.Text, map[string]interface{}{"node": n.id, "agent": n.agent.name, "step": step})
	state.Set(keyDecision, d)
	return &framework.Result{
		NodeID:  n.id,
		Success: true,
		Data:    map[string]interface{}{"final": d.IsFinal, "calls": len(d.Calls)},
	}, nil
}

// nativeCalls keeps tool call ids on the assistant message only when the
// provider issued them natively.
func nativeCalls(resp *framework.LLMResponse, native bool) []framework.ToolCall {
	if !native {
		return nil
	}
	return resp.ToolCalls
}

// resolveDecision reads native tool calls first, then the JSON decision
// protocol, then fenced tool-call blocks. Anything else is a final answer.
func resolveDecision(resp *framework.LLMResponse, tools *framework.ToolRegistry) decision {
	text := strings.TrimSpace(resp.Text)
	if len(resp.ToolCalls) > 0 {
		return decision{Thought: text, Calls: resp.ToolCalls}
	}
	if obj, ok := parse.Object(text); ok {
		thought := parse.String(obj, "thought")
		if final := finalFrom(obj); final != "" {
			return decision{Thought: thought, Final: final, IsFinal: true}
		}
		tool := parse.String(obj, "tool", "name", "action")
		if tool != "" && !strings.EqualFold(tool, "none") {
			args, _ := obj["arguments"].(map[string]interface{})
			if args == nil {
				args, _ = obj["args"].(map[string]interface{})
			}
			return decision{Thought: thought, Calls: []framework.ToolCall{{ID: uuid.NewString(), Name: tool, Args: args}}}
		}
		if thought != "" {
			return decision{Thought: thought}
		}
	}
	if calls := framework.ParseToolCallsFromText(text); len(calls) > 0 {
		return decision{Thought: text, Calls: calls}
	}
	if rest, ok := parse.AfterFinalAnswer(text); ok && rest != "" {
		return decision{Thought: text, Final: rest, IsFinal: true}
	}
	if text == "" {
		return decision{}
	}
	return decision{Thought: text, Final: text, IsFinal: true}
}

func finalFrom(obj map[string]interface{}) string {
	v, ok := obj["final_answer"]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(encoded)
	}
}

type actNode struct {
	id    string
	agent *Agent
}

func (n *actNode) ID() string               { return n.id }
func (n *actNode) Type() framework.NodeType { return framework.NodeTypeTool }

func (n *actNode) Execute(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase("acting")
	val, _ := state.Get(keyDecision)
	d, _ := val.(decision)
	if len(d.Calls) == 0 {
		return &framework.Result{NodeID: n.id, Success: true}, nil
	}
	native := n.agent.Options.NativeToolCalls && len(n.agent.Tools.All()) > 0
	messages := getMessages(state)
	taskID := state.GetString("task.id")
	for _, call := range d.Calls {
		n.agent.emit(framework.EventToolCall, taskID, call.Name, map[string]interface{}{"worker": n.agent.name, "args": call.Args})
		res := n.agent.Tools.Invoke(ctx, state, call)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		n.agent.Options.Metrics.ObserveToolCall(call.Name, res.Success)
		n.agent.emit(framework.EventToolResult, taskID, call.Name, map[string]interface{}{"worker": n.agent.name, "success": res.Success, "error": res.Error})
		content := renderObservation(res)
		appendObservation(state, fmt.Sprintf("%s%s: %s", call.Name, renderArgs(call.Args), parse.Clip(content, 600)))
		if native {
			messages = append(messages, framework.Message{Role: "tool", Name: call.Name, ToolCallID: call.ID, Content: content})
		} else {
			messages = append(messages, framework.Message{Role: "user", Content: fmt.Sprintf("Observation from %s:\n%s", call.Name, content)})
		}
		state.AddInteraction("tool", content, map[string]interface{}{"tool": call.Name, "success": res.Success})
	}
	saveMessages(state, messages)
	return &framework.Result{NodeID: n.id, Success: true, Data: map[string]interface{}{"calls": len(d.Calls)}}, nil
}

type observeNode struct {
	id    string
	agent *Agent
}

func (n *observeNode) ID() string               { return n.id }
func (n *observeNode) Type() framework.NodeType { return framework.NodeTypeObservation }

func (n *observeNode) Execute(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase("observing")
	val, _ := state.Get(keyDecision)
	d, _ := val.(decision)
	step := state.GetInt(keyStep)
	next := nextThink
	switch {
	case d.IsFinal:
		state.Set(keyAnswer, d.Final)
		next = nextDone
	case d.Halted, step >= n.agent.Options.MaxSteps:
		next = nextSummarize
	case len(d.Calls) == 0:
		// A thought with no action; nudge the model toward the protocol.
		messages := getMessages(state)
		messages = append(messages, framework.Message{Role: "user", Content: continuePrompt})
		saveMessages(state, messages)
	}
	state.Set(keyNext, next)
	return &framework.Result{NodeID: n.id, Success: true, Data: map[string]interface{}{"step": step, "next": next}}, nil
}

type summarizeNode struct {
	id    string
	agent *Agent
	task  *framework.Task
}

func (n *summarizeNode) ID() string               { return n.id }
func (n *summarizeNode) Type() framework.NodeType { return framework.NodeTypeLLM }

// Execute asks for a best-effort answer once the loop is out of steps. When
// that call fails too, the observations gathered so far are the answer.
func (n *summarizeNode) Execute(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase("summarizing")
	state.Set(keyExhausted, true)
	step := state.GetInt(keyStep)
	n.agent.emit(framework.EventStepCeiling, n.task.ID, "worker step ceiling reached", map[string]interface{}{
		"worker": n.agent.name, "steps": step, "max_steps": n.agent.Options.MaxSteps,
	})

	var answer string
	if modelErr := state.GetString(keyModelError); modelErr == "" {
		messages := append(getMessages(state), framework.Message{Role: "user", Content: summarizePrompt})
		resp, err := n.agent.Model.Chat(ctx, messages, n.agent.llmOptions())
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			n.agent.Options.Logger.Warn("worker summary failed", zap.String("worker", n.agent.name), zap.Error(err))
		case resp != nil:
			answer = strings.TrimSpace(resp.Text)
			if rest, ok := parse.AfterFinalAnswer(answer); ok && rest != "" {
				answer = rest
			}
		}
	}
	if answer == "" {
		reason := "step limit reached"
		if modelErr := state.GetString(keyModelError); modelErr != "" {
			reason = "model unavailable: " + modelErr
		}
		answer = digest(n.task, state, reason)
	}
	state.Set(keyAnswer, answer)
	return &framework.Result{NodeID: n.id, Success: true, Data: map[string]interface{}{"answer": answer}}, nil
}

// digest renders the observations collected so far. It is never empty.
func digest(task *framework.Task, state *framework.Context, reason string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Partial result (%s) for task %q.", reason, task.Name)
	obs := observations(state)
	if len(obs) == 0 {
		sb.WriteString(" No observations were gathered.")
		return sb.String()
	}
	sb.WriteString(" Observations:")
	for _, o := range obs {
		sb.WriteString("\n- ")
		sb.WriteString(o)
	}
	return sb.String()
}

func renderObservation(res *framework.ToolResult) string {
	payload := map[string]interface{}{"success": res.Success}
	if len(res.Data) > 0 {
		payload["data"] = res.Data
	}
	if res.Error != "" {
		payload["error"] = res.Error
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("success=%t data=%v error=%s", res.Success, res.Data, res.Error)
	}
	return string(encoded)
}

func renderArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "()"
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("(%v)", args)
	}
	return "(" + string(encoded) + ")"
}

func ensureMessages(state *framework.Context, a *Agent, task *framework.Task, native bool) []framework.Message {
	if messages := getMessages(state); len(messages) > 0 {
		return messages
	}
	messages := []framework.Message{
		{Role: "system", Content: systemPrompt(a, native)},
		{Role: "user", Content: taskPrompt(task)},
	}
	saveMessages(state, messages)
	return messages
}

func getMessages(state *framework.Context) []framework.Message {
	raw, ok := state.Get(keyMessages)
	if !ok {
		return nil
	}
	messages, ok := raw.([]framework.Message)
	if !ok || len(messages) == 0 {
		return nil
	}
	out := make([]framework.Message, len(messages))
	copy(out, messages)
	return out
}

func saveMessages(state *framework.Context, messages []framework.Message) {
	out := make([]framework.Message, len(messages))
	copy(out, messages)
	state.Set(keyMessages, out)
}

func appendObservation(state *framework.Context, obs string) {
	state.Set(keyObservations, append(observations(state), obs))
}

func observations(state *framework.Context) []string {
	raw, _ := state.Get(keyObservations)
	obs, _ := raw.([]string)
	out := make([]string, len(obs))
	copy(out, obs)
	return out
}
