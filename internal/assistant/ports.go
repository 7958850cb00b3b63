package assistant

import "context"

// EventKind is the closed set of streaming events the dispatcher handles.
type EventKind int

const (
	EventDelta EventKind = iota
	EventMessageCompleted
	EventRequiresAction
	EventRunCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventMessageCompleted:
		return "message_completed"
	case EventRequiresAction:
		return "requires_action"
	case EventRunCompleted:
		return "run_completed"
	}
	return "unknown"
}

// Event is one tagged streaming event. Text is set for deltas and completed
// messages; ThreadID/RunID are set whenever the wire payload carries them.
type Event struct {
	Kind      EventKind
	Text      string
	ThreadID  string
	RunID     string
	ToolCalls []ToolCall
}

// ToolCall is a pending function call the run is blocked on.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput resolves one ToolCall.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// ChatTurn is one role/content pair of a conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunConfig starts a streaming run on an existing thread.
type RunConfig struct {
	AssistantID            string
	AdditionalInstructions string
	Metadata               map[string]string
}

// ThreadRunConfig starts a streaming run against ad hoc thread content.
type ThreadRunConfig struct {
	AssistantID  string
	Instructions string
	Model        string
	Temperature  *float64
	Messages     []ChatTurn
	Metadata     map[string]string
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Client — the provider, knows nothing about transports or the DB.
type Client interface {
	CreateThread(ctx context.Context, vectorStoreID string) (string, error)
	RetrieveThread(ctx context.Context, threadID string) (string, error)
	AddUserMessage(ctx context.Context, threadID, text string) error
	StreamRun(ctx context.Context, threadID string, cfg RunConfig) (Stream, error)
	StreamThreadRun(ctx context.Context, cfg ThreadRunConfig) (Stream, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Stream, error)
	CancelRun(ctx context.Context, threadID, runID string) error
}
