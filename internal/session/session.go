// Package session drives every multi-step conversational flow through one
// generic step-graph engine.
//
// A flow is a named set of steps; each step declares the prompt to emit, an
// optional validator for the next input, the field name to store the captured
// value under, and the successor step. The engine is transport-free: it never
// talks to Telegram, it only accumulates fields and transient message ids.
//
// State is per-user, in-memory only, and lost on restart. That is deliberate:
// flows are short-lived and an empty session map is a valid state.
package session

import (
	"fmt"
	"sync"
)

type (
	FlowID string
	StepID string
)

// Step is one node of a flow's step graph.
//
// A step with a Field consumes the next input: the validator runs first, and
// on success the value is stored and the flow moves to Next. An empty Next on
// an input step completes the flow. A step with no Field and no Next is a
// hold step (e.g. a confirm screen advanced only by callback actions).
type Step struct {
	Prompt   func(fields map[string]string) string
	Validate func(input string) error
	Field    string
	Next     StepID
}

// Static adapts a fixed prompt string to the Prompt signature.
func Static(s string) func(map[string]string) string {
	return func(map[string]string) string { return s }
}

// Flow is a named step graph with a single entry step.
type Flow struct {
	ID    FlowID
	Entry StepID
	Steps map[StepID]Step
}

// OutcomeKind classifies the result of an Advance call.
type OutcomeKind int

const (
	// Reprompt: input failed validation; state unchanged, same prompt again.
	Reprompt OutcomeKind = iota
	// Advanced: input stored, flow moved to the next step.
	Advanced
	// Completed: input stored and the flow finished; Fields holds the result.
	Completed
	// Held: the current step does not consume input (confirm screens).
	Held
)

type Outcome struct {
	Kind   OutcomeKind
	Step   StepID // step that is current after the call
	Prompt string // what to show next (empty for Completed)
	Err    error  // validation error when Kind == Reprompt
	Fields map[string]string
}

// context is one user's in-flight flow state.
type context struct {
	flow      *Flow
	step      StepID
	fields    map[string]string
	transient []int // message ids created during the flow, for later cleanup
}

// Manager owns all active sessions, keyed per user.
//
// All methods are safe for concurrent use; a single mutex guards the session
// map since flows are tiny and contention is per-message.
type Manager struct {
	mu     sync.Mutex
	flows  map[FlowID]*Flow
	active map[int64]*context
}

func NewManager(flows ...*Flow) *Manager {
	m := &Manager{
		flows:  make(map[FlowID]*Flow, len(flows)),
		active: make(map[int64]*context),
	}
	for _, f := range flows {
		m.flows[f.ID] = f
	}
	return m
}

// Start enters a flow for the user, replacing any prior context (restart
// behavior; there is no queueing). It returns the entry step's prompt.
func (m *Manager) Start(userID int64, flow FlowID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[flow]
	if !ok {
		return "", fmt.Errorf("session: unknown flow %q", flow)
	}
	c := &context{flow: f, step: f.Entry, fields: make(map[string]string)}
	m.active[userID] = c
	return f.Steps[f.Entry].Prompt(c.fields), nil
}

// Advance feeds one input into the user's active flow.
// ok is false when the user has no active session.
func (m *Manager) Advance(userID int64, input string) (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.active[userID]
	if !ok {
		return Outcome{}, false
	}
	step := c.flow.Steps[c.step]

	if step.Field == "" && step.Next == "" {
		return Outcome{Kind: Held, Step: c.step, Prompt: step.Prompt(c.fields)}, true
	}

	if step.Validate != nil {
		if err := step.Validate(input); err != nil {
			return Outcome{Kind: Reprompt, Step: c.step, Prompt: step.Prompt(c.fields), Err: err}, true
		}
	}
	c.fields[step.Field] = input

	if step.Next == "" {
		fields := copyFields(c.fields)
		delete(m.active, userID)
		return Outcome{Kind: Completed, Step: c.step, Fields: fields}, true
	}

	c.step = step.Next
	next := c.flow.Steps[c.step]
	return Outcome{Kind: Advanced, Step: c.step, Prompt: next.Prompt(c.fields)}, true
}

// Track records transient message ids for later cleanup on cancel/restart.
func (m *Manager) Track(userID int64, msgIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.active[userID]; ok {
		c.transient = append(c.transient, msgIDs...)
	}
}

// Set stashes an out-of-band field (e.g. a target id carried by a callback).
func (m *Manager) Set(userID int64, field, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.active[userID]; ok {
		c.fields[field] = value
	}
}

// Field returns one captured field of the active session.
func (m *Manager) Field(userID int64, field string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[userID]
	if !ok {
		return "", false
	}
	v, ok := c.fields[field]
	return v, ok
}

// Fields returns a copy of all captured fields of the active session.
func (m *Manager) Fields(userID int64) (map[string]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[userID]
	if !ok {
		return nil, false
	}
	return copyFields(c.fields), true
}

// Active reports the user's current flow and step, if any.
func (m *Manager) Active(userID int64) (FlowID, StepID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[userID]
	if !ok {
		return "", "", false
	}
	return c.flow.ID, c.step, true
}

// Cancel discards the user's session and returns the transient message ids
// recorded for it. Deleting those messages is the caller's job; the engine
// stays transport-free.
func (m *Manager) Cancel(userID int64) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[userID]
	if !ok {
		return nil
	}
	delete(m.active, userID)
	return append([]int(nil), c.transient...)
}

// Restart re-enters the user's current flow at step one with a fresh
// transient list. It returns the entry prompt and the old transient ids,
// which the caller should delete.
func (m *Manager) Restart(userID int64) (prompt string, transient []int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.active[userID]
	if !ok {
		return "", nil, fmt.Errorf("session: no active flow")
	}
	old := append([]int(nil), c.transient...)
	f := c.flow
	fresh := &context{flow: f, step: f.Entry, fields: make(map[string]string)}
	m.active[userID] = fresh
	return f.Steps[f.Entry].Prompt(fresh.fields), old, nil
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
