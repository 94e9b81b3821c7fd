// Package framework hosts the foundational data structures every agent, tool
// and orchestration primitive depends on: tasks, tools and their registry, the
// per-run Context blackboard, the Graph state machine and telemetry.
package framework

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Interaction captures a single reasoning step entry: a thought, a tool or
// delegation call, or an observation. Transcripts live only as long as the
// Context that owns them.
type Interaction struct {
	ID        int                    `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Context acts as the in-memory blackboard shared by the nodes of one graph
// run. Each analysis builds its own Context; nothing is shared across runs.
//
// The structure embeds a RWMutex because telemetry sinks may read it while a
// run is in flight.
type Context struct {
	mu               sync.RWMutex
	state            map[string]interface{}
	history          []Interaction
	interactionIDCtr int
	phase            string
	maxHistory       int
}

// NewContext builds an empty execution context with a bounded history so
// runaway tool chatter does not balloon memory usage.
func NewContext() *Context {
	return &Context{
		state:      make(map[string]interface{}),
		history:    make([]Interaction, 0),
		phase:      "init",
		maxHistory: 200,
	}
}

// SetExecutionPhase stores the current execution phase.
func (c *Context) SetExecutionPhase(phase string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phase
}

// ExecutionPhase returns the current phase.
func (c *Context) ExecutionPhase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Get retrieves a value from the shared state.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.state[key]
	return v, ok
}

// GetString retrieves a string value from the shared state.
func (c *Context) GetString(key string) string {
	value, _ := c.Get(key)
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// GetInt retrieves an integer counter, zero when absent.
func (c *Context) GetInt(key string) int {
	value, _ := c.Get(key)
	n, _ := value.(int)
	return n
}

// Set stores a value in the shared state.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}

// Increment adds one to an integer counter and returns the new value.
func (c *Context) Increment(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := c.state[key].(int)
	n++
	c.state[key] = n
	return n
}

// AddInteraction appends to the transcript.
func (c *Context) AddInteraction(role, content string, metadata map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.interactionIDCtr
	c.interactionIDCtr++
	c.history = append(c.history, Interaction{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
	c.truncateHistoryLocked()
}

// History returns the accumulated transcript.
func (c *Context) History() []Interaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Interaction(nil), c.history...)
}

// LatestInteraction returns the most recent interaction if any.
func (c *Context) LatestInteraction() (Interaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) == 0 {
		return Interaction{}, false
	}
	return c.history[len(c.history)-1], true
}

// Transcript renders the history with one "role: content" block per entry.
func (c *Context) Transcript() string {
	var b strings.Builder
	for _, entry := range c.History() {
		b.WriteString(entry.Role)
		b.WriteString(": ")
		b.WriteString(entry.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// truncateHistoryLocked keeps the transcript bounded while preserving the
// first entry (the task instruction).
func (c *Context) truncateHistoryLocked() {
	if len(c.history) <= c.maxHistory {
		return
	}
	start := len(c.history) - c.maxHistory + 1
	c.history = append(c.history[:1], c.history[start:]...)
}

// MarshalJSON exposes phase and history for debugging endpoints.
func (c *Context) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(struct {
		Phase   string        `json:"phase"`
		History []Interaction `json:"history"`
	}{Phase: c.phase, History: c.history})
}
