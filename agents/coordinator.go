package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexcodex/wayforward/framework"
	"github.com/lexcodex/wayforward/internal/metrics"
	"github.com/lexcodex/wayforward/internal/parse"
)

// CoordinatorAgentName labels coordinator telemetry and metrics.
const CoordinatorAgentName = "coordinator"

const (
	keyStep        = "coordinator.step"
	keyNext        = "coordinator.next"
	keyMessages    = "coordinator.messages"
	keyDecision    = "coordinator.decision"
	keyFinal       = "coordinator.final"
	keyHasFinal    = "coordinator.has_final"
	keyLastPlan    = "coordinator.last_plan"
	keyAttempts    = "coordinator.attempts"
	keyDelegations = "coordinator.delegations"
	keyDegraded    = "coordinator.degraded"
	keyPartial     = "coordinator.partial"
	keyFilled      = "coordinator.filled"

	routePlan     = "plan"
	routeReason   = "reason"
	routeDelegate = "delegate"
	routeFinalize = "finalize"

	observationLimit = 4000
)

// Phases recorded on the run context.
const (
	PhaseInit       = "init"
	PhasePlanning   = "planning"
	PhaseReasoning  = "reasoning"
	PhaseDelegating = "delegating"
	PhaseFinalizing = "finalizing"
	PhaseDone       = "done"
)

// Coordinator drives one extraction by delegating named tasks to workers.
// It holds no tools. A Coordinator serves one run at a time; build a new
// one per analysis.
type Coordinator struct {
	Model     framework.LanguageModel
	Config    *Config
	Telemetry framework.Telemetry
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	workers map[string]Worker
	order   []Worker
}

// Outcome summarises a coordinator run. Output holds the best answer
// available even when Run also returns an error.
type Outcome struct {
	Output      Output
	Steps       int
	Degraded    bool
	Delegations int
	Transcript  string
}

// coordinatorDecision is one parsed reasoning step.
type coordinatorDecision struct {
	Thought string
	Worker  string
	Task    string
	Field   string
	Final   *Output
}

// NewCoordinator registers workers by name. Duplicate names are rejected.
func NewCoordinator(d Dependencies, workers ...Worker) (*Coordinator, error) {
	if d.Model == nil {
		return nil, errors.New("coordinator requires a language model")
	}
	c := &Coordinator{
		Model:     d.Model,
		Config:    d.config(),
		Telemetry: d.Telemetry,
		Metrics:   d.Metrics,
		Logger:    d.logger().Named(CoordinatorAgentName),
		workers:   make(map[string]Worker, len(workers)),
	}
	for _, w := range workers {
		if w == nil {
			continue
		}
		if _, exists := c.workers[w.Name()]; exists {
			return nil, fmt.Errorf("worker %s already registered", w.Name())
		}
		c.workers[w.Name()] = w
		c.order = append(c.order, w)
	}
	return c, nil
}

// Workers lists registered worker names in registration order.
func (c *Coordinator) Workers() []string {
	names := make([]string, 0, len(c.order))
	for _, w := range c.order {
		names = append(names, w.Name())
	}
	return names
}

// Run executes INIT → PLANNING → {DELEGATING ⇄ REASONING} → FINALIZING → DONE
// under the configured wall-clock timeout.
func (c *Coordinator) Run(ctx context.Context, instruction string) (*Outcome, error) {
	cfg := c.Config.Coordinator
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout.Std())
		defer cancel()
	}
	parent, _ := framework.TaskContextFrom(ctx)
	taskID := uuid.NewString()
	ctx = framework.WithTaskContext(ctx, framework.TaskContext{
		RunID:       parent.RunID,
		Agent:       CoordinatorAgentName,
		ID:          taskID,
		Type:        framework.TaskTypeExtraction,
		Instruction: instruction,
	})

	state := framework.NewContext()
	state.Set("task.id", taskID)
	state.SetExecutionPhase(PhaseInit)
	state.Set(keyMessages, []framework.Message{
		{Role: "system", Content: coordinatorSystemPrompt(c.order, cfg.MaxSteps)},
		{Role: "user", Content: instruction},
	})
	state.Set(keyLastPlan, -1)
	state.AddInteraction("user", instruction, map[string]interface{}{"agent": CoordinatorAgentName})

	c.emit(framework.EventAgentStart, taskID, "coordinator started", map[string]interface{}{"workers": c.Workers()})
	graph, err := c.buildGraph()
	if err != nil {
		return nil, err
	}
	_, runErr := graph.Execute(ctx, state)

	outcome := c.outcome(state)
	if runErr != nil {
		outcome.Degraded = true
		c.Logger.Warn("coordinator run interrupted",
			zap.Int("steps", outcome.Steps), zap.Error(runErr))
		runErr = fmt.Errorf("coordinator run: %w", runErr)
	}
	state.SetExecutionPhase(PhaseDone)
	c.Metrics.ObserveAgentRun(CoordinatorAgentName, outcome.Steps, outcome.Steps >= cfg.MaxSteps)
	c.emit(framework.EventAgentFinish, taskID, "coordinator finished", map[string]interface{}{
		"steps":       outcome.Steps,
		"degraded":    outcome.Degraded,
		"delegations": outcome.Delegations,
		"record":      outcome.Output.IsRecord(),
	})
	return outcome, runErr
}

// outcome collects whatever the run produced. Without a final answer the
// last answer-like model text stands in as a degraded answer; protocol
// replies (thoughts, delegations) never do.
func (c *Coordinator) outcome(state *framework.Context) *Outcome {
	out := &Outcome{
		Steps:       state.GetInt(keyStep),
		Delegations: state.GetInt(keyDelegations),
		Transcript:  state.Transcript(),
	}
	if degraded, ok := state.Get(keyDegraded); ok {
		out.Degraded, _ = degraded.(bool)
	}
	if final, ok := state.Get(keyFinal); ok {
		if o, ok := final.(Output); ok {
			out.Output = o
			return out
		}
	}
	out.Output = TextOutput(state.GetString(keyPartial))
	out.Degraded = true
	return out
}

func (c *Coordinator) buildGraph() (*framework.Graph, error) {
	graph := framework.NewGraph()
	graph.SetTelemetry(c.Telemetry)

	plan := framework.NewFuncNode("coordinator_plan", framework.NodeTypeLLM, c.plan)
	reason := framework.NewFuncNode("coordinator_reason", framework.NodeTypeLLM, c.reason)
	delegate := framework.NewFuncNode("coordinator_delegate", framework.NodeTypeDelegation, c.delegate)
	finalize := framework.NewFuncNode("coordinator_finalize", framework.NodeTypeLLM, c.finalize)
	done := framework.NewTerminalNode("coordinator_done")

	for _, node := range []framework.Node{plan, reason, delegate, finalize, done} {
		if err := graph.AddNode(node); err != nil {
			return nil, err
		}
	}
	if err := graph.SetStart(plan.ID()); err != nil {
		return nil, err
	}
	edges := []struct {
		from, to string
		cond     framework.ConditionFunc
	}{
		{plan.ID(), reason.ID(), nil},
		{reason.ID(), plan.ID(), routeTo(routePlan)},
		{reason.ID(), reason.ID(), routeTo(routeReason)},
		{reason.ID(), delegate.ID(), routeTo(routeDelegate)},
		{reason.ID(), finalize.ID(), routeTo(routeFinalize)},
		{delegate.ID(), plan.ID(), routeTo(routePlan)},
		{delegate.ID(), reason.ID(), routeTo(routeReason)},
		{delegate.ID(), finalize.ID(), routeTo(routeFinalize)},
		{finalize.ID(), done.ID(), nil},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e.from, e.to, e.cond); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

func routeTo(target string) framework.ConditionFunc {
	return func(_ *framework.Result, state *framework.Context) bool {
		return state.GetString(keyNext) == target
	}
}

// afterStep decides where the loop goes once a step has been spent.
func (c *Coordinator) afterStep(state *framework.Context) string {
	cfg := c.Config.Coordinator
	step := state.GetInt(keyStep)
	switch {
	case step >= cfg.MaxSteps:
		return routeFinalize
	case cfg.ReplanInterval > 0 && step%cfg.ReplanInterval == 0 && state.GetInt(keyLastPlan) != step:
		return routePlan
	default:
		return routeReason
	}
}

func (c *Coordinator) llmOptions() *framework.LLMOptions {
	m := c.Config.Model
	return &framework.LLMOptions{Model: m.Name, Temperature: m.Temperature, MaxTokens: m.MaxTokens}
}

// plan asks for the initial plan and, at each re-plan checkpoint, a revised
// one. A failed plan call is not fatal; reasoning proceeds without it.
func (c *Coordinator) plan(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase(PhasePlanning)
	step := state.GetInt(keyStep)
	state.Set(keyLastPlan, step)
	prompt := planPrompt
	if step > 0 {
		prompt = replanPrompt(step, c.Config.Coordinator.MaxSteps, state.GetInt(keyDelegations), filledFields(state))
		c.emit(framework.EventReplan, state.GetString("task.id"), "re-planning", map[string]interface{}{"step": step})
	}
	messages := append(getMessages(state), framework.Message{Role: "user", Content: prompt})
	resp, err := c.Model.Chat(ctx, messages, c.llmOptions())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.Logger.Warn("plan call failed", zap.Int("step", step), zap.Error(err))
		return &framework.Result{Success: false, Error: err}, nil
	}
	text := strings.TrimSpace(resp.Text)
	if obj, ok := parse.Object(text); ok {
		if thought := parse.String(obj, "thought", "plan"); thought != "" {
			text = thought
		}
	}
	messages = append(messages, framework.Message{Role: "assistant", Content: resp.Text})
	setMessages(state, messages)
	state.AddInteraction("plan", text, map[string]interface{}{"agent": CoordinatorAgentName, "step": step})
	return &framework.Result{Success: true, Data: map[string]interface{}{"plan": text}}, nil
}

// reason spends one step: one model call, resolved into a delegation, a
// thought, or a final answer.
func (c *Coordinator) reason(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase(PhaseReasoning)
	step := state.Increment(keyStep)
	messages := getMessages(state)
	resp, err := c.Model.Chat(ctx, messages, c.llmOptions())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.Logger.Warn("reasoning call failed", zap.Int("step", step), zap.Error(err))
		state.Set(keyDegraded, true)
		state.Set(keyNext, routeFinalize)
		return &framework.Result{Success: false, Error: err}, nil
	}

	text := strings.TrimSpace(resp.Text)
	messages = append(messages, framework.Message{Role: "assistant", Content: resp.Text})
	d := resolveCoordinatorDecision(text)
	if d.Final != nil {
		state.Set(keyPartial, text)
	}
	state.AddInteraction("assistant", text, map[string]interface{}{"agent": CoordinatorAgentName, "step": step})

	switch {
	case d.Final != nil:
		state.Set(keyFinal, *d.Final)
		state.Set(keyHasFinal, true)
		state.Set(keyNext, routeFinalize)
	case d.Worker != "":
		state.Set(keyDecision, d)
		state.Set(keyNext, routeDelegate)
	default:
		messages = append(messages, framework.Message{Role: "user", Content: "Continue: delegate the next task or give your final_answer."})
		state.Set(keyNext, c.afterStep(state))
	}
	setMessages(state, messages)
	return &framework.Result{Success: true, Data: map[string]interface{}{"step": step, "next": state.GetString(keyNext)}}, nil
}

// resolveCoordinatorDecision maps model text onto the decision protocol.
// Objects outside the protocol and plain prose are final text answers.
func resolveCoordinatorDecision(text string) coordinatorDecision {
	if text == "" {
		return coordinatorDecision{}
	}
	obj, ok := parse.Object(text)
	if !ok {
		out := TextOutput(text)
		return coordinatorDecision{Final: &out}
	}
	d := coordinatorDecision{Thought: parse.String(obj, "thought")}
	if raw, present := obj["final_answer"]; present && raw != nil {
		var out Output
		switch v := raw.(type) {
		case map[string]interface{}:
			out = RecordOutput(v)
		case string:
			out = TextOutput(v)
		default:
			out = TextOutput(fmt.Sprint(v))
		}
		d.Final = &out
		return d
	}
	if worker := parse.String(obj, "worker", "agent"); worker != "" {
		d.Worker = worker
		d.Task = parse.String(obj, "task", "instruction")
		d.Field = parse.String(obj, "field")
		return d
	}
	if d.Thought != "" && len(obj) == 1 {
		return d
	}
	out := TextOutput(text)
	d.Final = &out
	return d
}

// delegate runs the pending delegation. Every outcome, including unknown
// workers and exhausted attempts, becomes an observation.
func (c *Coordinator) delegate(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase(PhaseDelegating)
	raw, _ := state.Get(keyDecision)
	d, _ := raw.(coordinatorDecision)
	taskID := state.GetString("task.id")

	subject := d.Field
	if subject == "" {
		subject = strings.ToLower(strings.Join(strings.Fields(d.Task), " "))
	}
	task := d.Task
	if task == "" && d.Field != "" {
		task = fmt.Sprintf("Find the %s for the idea described above.", d.Field)
	}

	var observation string
	success := false
	worker, known := c.workers[d.Worker]
	attempts := attemptCounts(state)
	key := d.Worker + "|" + subject
	limit := c.Config.Coordinator.MaxDelegationAttempts

	switch {
	case !known:
		observation = fmt.Sprintf("%v: %s. Available workers: %s.", ErrUnknownWorker, d.Worker, strings.Join(c.Workers(), ", "))
	case task == "":
		observation = "Delegation ignored: no task was given."
	case attempts[key] >= limit:
		observation = delegationLimitObservation(d.Worker, subject, limit)
	default:
		attempts[key]++
		state.Set(keyAttempts, attempts)
		state.Increment(keyDelegations)
		taskName := d.Field
		if taskName == "" {
			taskName = "task"
		}
		c.emit(framework.EventDelegation, taskID, d.Worker, map[string]interface{}{
			"worker": d.Worker, "task": task, "field": d.Field, "attempt": attempts[key],
		})
		start := time.Now()
		answer, err := worker.Delegate(ctx, taskName, task)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			observation = fmt.Sprintf("%s failed: %v", d.Worker, err)
		} else {
			success = true
			observation = answer
			if d.Field != "" {
				markFilled(state, d.Field)
			}
		}
		c.Metrics.ObserveDelegation(d.Worker, success)
		c.Logger.Debug("delegation finished",
			zap.String("worker", d.Worker), zap.String("field", d.Field),
			zap.Bool("success", success), zap.Duration("elapsed", time.Since(start)))
	}

	content := fmt.Sprintf("Observation from %s:\n%s", d.Worker, parse.Clip(observation, observationLimit))
	setMessages(state, append(getMessages(state), framework.Message{Role: "user", Content: content}))
	state.AddInteraction("observation", observation, map[string]interface{}{"worker": d.Worker, "field": d.Field, "success": success})
	state.Set(keyNext, c.afterStep(state))
	return &framework.Result{Success: success, Data: map[string]interface{}{"worker": d.Worker}}, nil
}

// finalize forces one last answer when the loop ended without one. The run
// is degraded either way once it gets here without a final answer.
func (c *Coordinator) finalize(ctx context.Context, state *framework.Context) (*framework.Result, error) {
	state.SetExecutionPhase(PhaseFinalizing)
	if hasFinal, _ := state.Get(keyHasFinal); hasFinal == true {
		return &framework.Result{Success: true}, nil
	}
	step := state.GetInt(keyStep)
	state.Set(keyDegraded, true)
	c.emit(framework.EventStepCeiling, state.GetString("task.id"), "coordinator forced to finalize", map[string]interface{}{
		"steps": step, "max_steps": c.Config.Coordinator.MaxSteps,
	})

	messages := append(getMessages(state), framework.Message{Role: "user", Content: finalizePrompt})
	resp, err := c.Model.Chat(ctx, messages, c.llmOptions())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.Logger.Warn("forced finalize failed; keeping partial answer", zap.Error(err))
		state.Set(keyFinal, TextOutput(state.GetString(keyPartial)))
		return &framework.Result{Success: false, Error: err}, nil
	}
	text := strings.TrimSpace(resp.Text)
	state.AddInteraction("assistant", text, map[string]interface{}{"agent": CoordinatorAgentName, "phase": PhaseFinalizing})
	d := resolveCoordinatorDecision(text)
	switch {
	case d.Final != nil:
		state.Set(keyFinal, *d.Final)
	default:
		// thoughts and delegations are protocol, not answers
		state.Set(keyFinal, TextOutput(state.GetString(keyPartial)))
	}
	return &framework.Result{Success: true}, nil
}

func (c *Coordinator) emit(eventType framework.EventType, taskID, message string, meta map[string]interface{}) {
	if c.Telemetry == nil {
		return
	}
	c.Telemetry.Emit(framework.Event{
		Type:      eventType,
		TaskID:    taskID,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	})
}

func getMessages(state *framework.Context) []framework.Message {
	raw, _ := state.Get(keyMessages)
	messages, _ := raw.([]framework.Message)
	out := make([]framework.Message, len(messages))
	copy(out, messages)
	return out
}

func setMessages(state *framework.Context, messages []framework.Message) {
	out := make([]framework.Message, len(messages))
	copy(out, messages)
	state.Set(keyMessages, out)
}

func attemptCounts(state *framework.Context) map[string]int {
	raw, _ := state.Get(keyAttempts)
	existing, _ := raw.(map[string]int)
	out := make(map[string]int, len(existing))
	for k, v := range existing {
		out[k] = v
	}
	return out
}

func markFilled(state *framework.Context, field string) {
	filled := filledFields(state)
	for _, f := range filled {
		if f == field {
			return
		}
	}
	filled = append(filled, field)
	sort.Strings(filled)
	state.Set(keyFilled, filled)
}

func filledFields(state *framework.Context) []string {
	raw, _ := state.Get(keyFilled)
	filled, _ := raw.([]string)
	return append([]string(nil), filled...)
}
