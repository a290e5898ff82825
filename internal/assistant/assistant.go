// Package assistant defines the types exchanged with the model provider and
// the interface the run orchestrator depends on. Concrete providers live in
// sub-packages.
package assistant

import (
	"context"
	"encoding/json"
)

// RunStatus enumerates the lifecycle states of a model run.
type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelled      RunStatus = "cancelled"
)

// ToolCall is a single pending tool invocation requested by a run.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Run is the provider-side state of one conversation turn.
type Run struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	Status    RunStatus  `json:"status"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Terminal reports whether the run can no longer change state.
func (r *Run) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RequiresAction reports whether the run is blocked on tool outputs.
func (r *Run) RequiresAction() bool {
	return r.Status == StatusRequiresAction
}

// ToolOutput carries one tool result back to the provider, keyed by call id.
type ToolOutput struct {
	CallID string `json:"tool_call_id"`
	Output string `json:"output"`
}

// FunctionDefinition advertises a catalog entry to the model.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Client is the model-provider collaborator consumed by the orchestrator.
type Client interface {
	// CreateThread allocates a new provider-side conversation thread.
	CreateThread(ctx context.Context) (string, error)
	// CreateMessage appends a user message to a thread.
	CreateMessage(ctx context.Context, threadID, text string) error
	// CreateRun starts a run on a thread advertising the given functions.
	CreateRun(ctx context.Context, threadID string, tools []FunctionDefinition) (*Run, error)
	// GetRun fetches the current state of a run.
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	// SubmitToolOutputs feeds a full batch of tool results back into a run.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
	// LatestMessage returns the text of the newest assistant message.
	LatestMessage(ctx context.Context, threadID string) (string, error)
}
