package framework

import "context"

// Capability represents a high-level ability exposed by an agent.
type Capability string

const (
	CapabilityPlan     Capability = "plan"
	CapabilityDelegate Capability = "delegate"
	CapabilityResearch Capability = "research"
	CapabilityEstimate Capability = "estimate"
	CapabilityExtract  Capability = "extract"
)

// TaskType describes the type of work an agent should perform.
type TaskType string

const (
	TaskTypeExtraction TaskType = "extraction"
	TaskTypeResearch   TaskType = "research"
	TaskTypeEstimation TaskType = "estimation"
	TaskTypeAnalysis   TaskType = "analysis"
)

// Task encapsulates the information sent to an agent. Delegated sub-tasks are
// created per call and discarded once the agent answers; nothing keeps a
// reference to them after Execute returns.
type Task struct {
	ID          string
	Name        string
	Type        TaskType
	Instruction string
	Context     map[string]any
	Metadata    map[string]string
}

// Result captures the result of a graph or agent execution. Creating a shared
// struct keeps telemetry and tool adapters consistent because they can always
// expect a NodeID/Success/Data triple.
type Result struct {
	NodeID  string
	Success bool
	Data    map[string]any
	Error   error
}

// Agent defines the contract for all specialized agents. BuildGraph is exposed
// so orchestrators can inspect the workflow ahead of time before calling
// Execute.
type Agent interface {
	Execute(ctx context.Context, task *Task, state *Context) (*Result, error)
	Capabilities() []Capability
	BuildGraph(task *Task) (*Graph, error)
}
