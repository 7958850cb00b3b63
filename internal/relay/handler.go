package relay

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mzagorov/vapi-ai-bridge/internal/metrics"
)

type Handler struct {
	svc    Service
	logger zerolog.Logger
}

func NewHandler(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// HandleChat — GET: plain streamed text for the chat widget.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	metrics.StreamRequests.WithLabelValues("chat").Inc()

	sink := NewChatSink(w)
	defer sink.Close()

	q := r.URL.Query()
	req := ChatRequest{
		BotID:           q.Get("bot_id"),
		Question:        q.Get("question"),
		ThreadID:        q.Get("thread_id"),
		SessionID:       q.Get("session_id"),
		UserID:          q.Get("user_id"),
		UserType:        q.Get("user_type"),
		Channel:         q.Get("channel"),
		UserPhoneNumber: q.Get("user_phone_number"),
	}

	if req.BotID == "" || req.Question == "" {
		sink.Fail(MsgMissingChatParams)
		return
	}

	if err := h.svc.HandleChat(r.Context(), req, sink); err != nil {
		h.logger.Error().Err(err).Str("bot_id", req.BotID).Msg("chat streaming failed")
		sink.Fail(errorMessage(err))
	}
}

// HandleVoice — POST: SSE-framed deltas for the voice platform.
func (h *Handler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	metrics.StreamRequests.WithLabelValues("voice").Inc()

	sink := NewVoiceSink(w)
	defer sink.Close()

	var req VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sink.Fail(MsgInvalidBody)
		return
	}
	if req.Metadata.AssistantID == "" {
		sink.Fail(MsgMissingAssistantID)
		return
	}

	if err := h.svc.HandleVoice(r.Context(), req, sink); err != nil {
		h.logger.Error().Err(err).Str("bot_id", req.Metadata.BotID).Msg("voice streaming failed")
		sink.Fail(FallbackMessage)
	}
}

// HandleInvalidMethod still answers in-stream so callers always get a
// textual message before the stream ends.
func (h *Handler) HandleInvalidMethod(w http.ResponseWriter, _ *http.Request) {
	sink := NewChatSink(w)
	sink.Fail(MsgInvalidMethod)
}

func errorMessage(err error) string {
	if errors.Is(err, ErrBotUnavailable) {
		return MsgBotUnavailable
	}
	return FallbackMessage
}
