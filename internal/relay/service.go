package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mzagorov/vapi-ai-bridge/internal/actions"
	"github.com/mzagorov/vapi-ai-bridge/internal/assistant"
	"github.com/mzagorov/vapi-ai-bridge/internal/metrics"
)

// maxVoiceTurns caps the conversation replayed into a voice run.
const maxVoiceTurns = 30

const setupTimeout = 30 * time.Second

const markdownInstructions = `
- Provide all responses in MARKDOWN FORMAT ONLY. Use appropriate markdown syntax for:
"""
- ### Titles and #### headings
- **Bold** and *italic* text
- Unordered lists (please do not use periods (.), instead use asterisks (*) or hyphens (-))
- Ordered lists (using numbers and letters)
- > Blockquote(s)
- Code blocks (if applicable)
- etc.
"""
`

type ServiceOptions struct {
	Redact             *regexp.Regexp
	DefaultModel       string
	DefaultTemperature float64
	Logger             zerolog.Logger
}

type service struct {
	repo    Repo
	ai      assistant.Client
	actions ActionInvoker
	opts    ServiceOptions
}

func NewService(repo Repo, ai assistant.Client, invoker ActionInvoker, opts ServiceOptions) Service {
	return &service{
		repo:    repo,
		ai:      ai,
		actions: invoker,
		opts:    opts,
	}
}

// dispatch is the per-request state of the event loop.
type dispatch struct {
	sink         Sink
	forChat      bool
	botID        string
	sessionID    string
	threadID     string
	runID        string
	record       ChatRequest              // record fields for persisted answers
	conversation []assistant.ChatTurn     // voice history handed to tool calls
}

func (s *service) HandleChat(ctx context.Context, req ChatRequest, sink Sink) error {
	bot, err := s.lookupBot(ctx, req.BotID)
	if err != nil {
		return err
	}

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	threadID, err := s.getOrCreateThread(setupCtx, bot.VectorStoreID, req.ThreadID)
	if err != nil {
		return fmt.Errorf("thread: %w", err)
	}

	sessionID := req.SessionID
	if sessionID == "" || sessionID == uuid.Nil.String() {
		sessionID = uuid.NewString()
	}

	if err := s.ai.AddUserMessage(setupCtx, threadID, req.Question); err != nil {
		return err
	}

	s.appendRecord(ctx, &req, req.Question, MessageTypeUserQuery, sessionID, threadID)

	stream, err := s.ai.StreamRun(ctx, threadID, assistant.RunConfig{
		AssistantID:            bot.AssistantID,
		AdditionalInstructions: markdownInstructions,
		Metadata:               map[string]string{"chatType": "Chat"},
	})
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	d := &dispatch{
		sink:      sink,
		forChat:   true,
		botID:     req.BotID,
		sessionID: sessionID,
		threadID:  threadID,
		record:    req,
	}
	return s.consume(ctx, stream, d)
}

func (s *service) HandleVoice(ctx context.Context, req VoiceRequest, sink Sink) error {
	instruction, turns := splitSystem(req.Messages)

	forwarded := turns
	if len(forwarded) > maxVoiceTurns {
		forwarded = forwarded[len(forwarded)-maxVoiceTurns:]
	}

	model := req.Model
	if model == "" {
		model = s.opts.DefaultModel
	}
	temperature := req.Temperature
	if temperature == nil {
		temperature = &s.opts.DefaultTemperature
	}

	stream, err := s.ai.StreamThreadRun(ctx, assistant.ThreadRunConfig{
		AssistantID:  req.Metadata.AssistantID,
		Instructions: instruction,
		Model:        model,
		Temperature:  temperature,
		Messages:     forwarded,
		Metadata:     map[string]string{"chatType": "Voice"},
	})
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	d := &dispatch{
		sink:         sink,
		botID:        req.Metadata.BotID,
		conversation: turns,
	}
	return s.consume(ctx, stream, d)
}

func (s *service) lookupBot(ctx context.Context, botID string) (*Bot, error) {
	bot, err := s.repo.GetBot(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("bot lookup: %w", err)
	}
	if bot == nil || !bot.Active || bot.AssistantID == "" {
		return nil, ErrBotUnavailable
	}
	return bot, nil
}

// getOrCreateThread reuses the supplied thread id unless it is empty or one
// of the placeholder literals some callers send instead of omitting it.
func (s *service) getOrCreateThread(ctx context.Context, vectorStoreID, threadID string) (string, error) {
	trimmed := strings.TrimSpace(threadID)
	if trimmed == "" || trimmed == "null" || trimmed == "undefined" {
		return s.ai.CreateThread(ctx, vectorStoreID)
	}
	return s.ai.RetrieveThread(ctx, trimmed)
}

// consume drains one run stream, recursing into continuation streams
// returned by tool-output submission. On any failure the remote run is
// cancelled best-effort before the error propagates.
func (s *service) consume(ctx context.Context, stream assistant.Stream, d *dispatch) error {
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			s.cancelRun(ctx, d)
			return err
		}

		if ev.ThreadID != "" {
			d.threadID = ev.ThreadID
		}
		if ev.RunID != "" {
			d.runID = ev.RunID
		}
		metrics.StreamEvents.WithLabelValues(ev.Kind.String()).Inc()

		if err := s.onEvent(ctx, ev, d); err != nil {
			s.cancelRun(ctx, d)
			return err
		}
	}
}

func (s *service) onEvent(ctx context.Context, ev assistant.Event, d *dispatch) error {
	switch ev.Kind {
	case assistant.EventDelta:
		return d.sink.WritePartial(s.redact(ev.Text))

	case assistant.EventMessageCompleted:
		if !d.forChat {
			return d.sink.WriteDone("", "")
		}
		answer := s.redact(ev.Text)
		s.appendRecord(ctx, &d.record, answer, MessageTypeBotAnswer, d.sessionID, d.threadID)
		return d.sink.WriteDone(d.threadID, d.sessionID)

	case assistant.EventRequiresAction:
		outputs := s.resolveToolCalls(ctx, ev.ToolCalls, d)
		next, err := s.ai.SubmitToolOutputs(ctx, ev.ThreadID, ev.RunID, outputs)
		if err != nil {
			return fmt.Errorf("submit tool outputs: %w", err)
		}
		return s.consume(ctx, next, d)

	case assistant.EventRunCompleted:
		d.sink.Close()
		return nil
	}

	return fmt.Errorf("unhandled event kind %d", ev.Kind)
}

// resolveToolCalls fans out one goroutine per pending call and joins before
// the single batched submission. Each goroutine owns its own output slot,
// so results land in call order regardless of completion order. Failures
// become the generic fallback string tagged with the call's own id.
func (s *service) resolveToolCalls(ctx context.Context, calls []assistant.ToolCall, d *dispatch) []assistant.ToolOutput {
	outputs := make([]assistant.ToolOutput, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call assistant.ToolCall) {
			defer wg.Done()

			origin := actions.Origin{
				SessionID:    d.sessionID,
				BotID:        d.botID,
				Voice:        !d.forChat,
				Conversation: d.conversation,
			}
			out, err := s.actions.Invoke(ctx, call.Name, call.Arguments, origin)
			if err != nil {
				s.opts.Logger.Error().Err(err).Str("tool", call.Name).Msg("tool call failed")
				metrics.ToolCalls.WithLabelValues(call.Name, "error").Inc()
				out = FallbackMessage
			} else {
				metrics.ToolCalls.WithLabelValues(call.Name, "ok").Inc()
			}
			outputs[i] = assistant.ToolOutput{ToolCallID: call.ID, Output: out}
		}(i, call)
	}
	wg.Wait()

	return outputs
}

// cancelRun bounds provider-side resource usage after a dispatch failure.
// Best-effort: not retried, failures only logged.
func (s *service) cancelRun(ctx context.Context, d *dispatch) {
	if d.threadID == "" || d.runID == "" {
		return
	}
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.ai.CancelRun(cancelCtx, d.threadID, d.runID); err != nil {
		s.opts.Logger.Error().Err(err).
			Str("thread_id", d.threadID).
			Str("run_id", d.runID).
			Msg("run cancel failed")
	}
}

// appendRecord is fire-and-forget: a lost log row must never abort the
// response stream.
func (s *service) appendRecord(ctx context.Context, req *ChatRequest, message string, mt MessageType, sessionID, threadID string) {
	rec := &Record{
		Message:         message,
		MessageType:     mt,
		UserID:          defaultString(req.UserID, "anonymous"),
		UserType:        defaultString(req.UserType, "anonymous"),
		BotID:           req.BotID,
		Channel:         defaultString(req.Channel, "text"),
		UserPhoneNumber: req.UserPhoneNumber,
		SessionID:       sessionID,
		ThreadID:        threadID,
	}
	if err := s.repo.SaveMessage(ctx, rec); err != nil {
		s.opts.Logger.Error().Err(err).
			Str("message_type", string(mt)).
			Str("session_id", sessionID).
			Msg("message insert failed")
		metrics.MessagesSaved.WithLabelValues(string(mt), "error").Inc()
		return
	}
	metrics.MessagesSaved.WithLabelValues(string(mt), "ok").Inc()
}

func (s *service) redact(text string) string {
	if s.opts.Redact == nil {
		return text
	}
	return s.opts.Redact.ReplaceAllString(text, "")
}

// splitSystem pulls the instruction out of the raw conversation: the first
// system turn becomes the instruction, every system turn is dropped from
// the forwarded list.
func splitSystem(msgs []assistant.ChatTurn) (string, []assistant.ChatTurn) {
	var instruction string
	turns := make([]assistant.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			if instruction == "" {
				instruction = m.Content
			}
			continue
		}
		turns = append(turns, m)
	}
	return instruction, turns
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
