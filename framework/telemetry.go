package framework

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType categorizes telemetry events.
type EventType string

const (
	EventGraphStart   EventType = "graph_start"
	EventGraphFinish  EventType = "graph_finish"
	EventNodeStart    EventType = "node_start"
	EventNodeFinish   EventType = "node_finish"
	EventNodeError    EventType = "node_error"
	EventAgentStart   EventType = "agent_start"
	EventAgentFinish  EventType = "agent_finish"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventDelegation   EventType = "delegation"
	EventReplan       EventType = "replan"
	EventStateChange  EventType = "state_change"
	EventStepCeiling  EventType = "step_ceiling"
	EventLLMPrompt    EventType = "llm_prompt"
	EventLLMResponse  EventType = "llm_response"
)

// Event captures structured telemetry data.
type Event struct {
	Type      EventType              `json:"type"`
	NodeID    string                 `json:"node_id,omitempty"`
	TaskID    string                 `json:"task_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Telemetry captures execution traces emitted by the graph runtime and the
// agents. Tests typically swap in a recording sink.
type Telemetry interface {
	Emit(event Event)
}

// MultiplexTelemetry broadcasts events to multiple sinks.
type MultiplexTelemetry struct {
	Sinks []Telemetry
}

// Emit forwards the event to all registered sinks.
func (m MultiplexTelemetry) Emit(event Event) {
	for _, s := range m.Sinks {
		if s != nil {
			s.Emit(event)
		}
	}
}

// ZapTelemetry writes events as structured log entries. Node transitions are
// logged at debug level; errors and step-ceiling hits at warn.
type ZapTelemetry struct {
	Logger *zap.Logger
}

// Emit logs the event.
func (t ZapTelemetry) Emit(event Event) {
	if t.Logger == nil {
		return
	}
	level := zapcore.DebugLevel
	switch event.Type {
	case EventNodeError, EventStepCeiling:
		level = zapcore.WarnLevel
	case EventAgentStart, EventAgentFinish, EventDelegation, EventReplan:
		level = zapcore.InfoLevel
	}
	ce := t.Logger.Check(level, string(event.Type))
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, 4)
	if event.NodeID != "" {
		fields = append(fields, zap.String("node", event.NodeID))
	}
	if event.TaskID != "" {
		fields = append(fields, zap.String("task_id", event.TaskID))
	}
	if event.Message != "" {
		fields = append(fields, zap.String("message", event.Message))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("meta", event.Metadata))
	}
	ce.Write(fields...)
}
