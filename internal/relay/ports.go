package relay

import (
	"context"
	"errors"

	"github.com/mzagorov/vapi-ai-bridge/internal/actions"
	"github.com/mzagorov/vapi-ai-bridge/internal/assistant"
)

type MessageType string

const (
	MessageTypeUserQuery MessageType = "user_query"
	MessageTypeBotAnswer MessageType = "bot_answer"
)

// User-facing messages. The stream always ends with one of these or with
// regular assistant output, never a raw error.
const (
	FallbackMessage       = "Unexpected Error Occurred. Please try again later."
	MsgMissingChatParams  = "The bot_id and question parameters are required."
	MsgBotUnavailable     = "The bot does not exist or is not active."
	MsgInvalidMethod      = "Invalid HTTP method."
	MsgInvalidBody        = "Invalid request body."
	MsgMissingAssistantID = "The metadata.gpt_assistant_id field is required."
)

// ErrBotUnavailable — bot missing, inactive or without a configured
// assistant. Refused before any provider contact.
var ErrBotUnavailable = errors.New("bot does not exist or is not active")

// Bot configuration, read-only, sourced from an external table.
type Bot struct {
	ID            string
	Active        bool
	VectorStoreID string
	AssistantID   string
}

// Record is one append-only row of the conversation log.
type Record struct {
	Message         string
	MessageType     MessageType
	UserID          string
	UserType        string
	BotID           string
	Channel         string
	UserPhoneNumber string
	SessionID       string
	ThreadID        string
}

// ChatRequest — GET query parameters of the chat path.
type ChatRequest struct {
	BotID           string
	Question        string
	ThreadID        string
	SessionID       string
	UserID          string
	UserType        string
	Channel         string
	UserPhoneNumber string
}

// VoiceRequest — POST body of the voice path.
type VoiceRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Metadata    struct {
		BotID       string `json:"bot_id"`
		AssistantID string `json:"gpt_assistant_id"`
	} `json:"metadata"`
	Messages []assistant.ChatTurn `json:"messages"`
}

// Sink is one outbound presentation of the stream. Close is idempotent and
// must be called exactly once per request by the transport layer.
type Sink interface {
	WritePartial(text string) error
	WriteDone(threadID, sessionID string) error
	Fail(message string)
	Close()
}

// Repo — persistence: bot lookup and the append-only message log.
// GetBot returns (nil, nil) when no row exists.
type Repo interface {
	GetBot(ctx context.Context, botID string) (*Bot, error)
	SaveMessage(ctx context.Context, rec *Record) error
}

// ActionInvoker resolves assistant tool calls against remote endpoints.
type ActionInvoker interface {
	Invoke(ctx context.Context, name, argsJSON string, origin actions.Origin) (string, error)
}

// Service — orchestration of one streaming request.
type Service interface {
	HandleChat(ctx context.Context, req ChatRequest, sink Sink) error
	HandleVoice(ctx context.Context, req VoiceRequest, sink Sink) error
}
