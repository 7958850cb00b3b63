package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

type statusFooter struct {
	Status    string `json:"status"`
	ThreadID  string `json:"threadId"`
	SessionID string `json:"sessionId"`
}

// chatSink writes partial text verbatim and a newline-delimited JSON status
// footer as the terminal marker.
type chatSink struct {
	w    http.ResponseWriter
	f    http.Flusher
	once sync.Once
}

func NewChatSink(w http.ResponseWriter) Sink {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	f, _ := w.(http.Flusher)
	return &chatSink{w: w, f: f}
}

func (s *chatSink) WritePartial(text string) error {
	_, err := io.WriteString(s.w, text)
	s.flush()
	return err
}

func (s *chatSink) WriteDone(threadID, sessionID string) error {
	payload, err := json.Marshal(statusFooter{Status: "done", ThreadID: threadID, SessionID: sessionID})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "\n%s\n", payload)
	s.flush()
	return err
}

func (s *chatSink) Fail(message string) {
	_, _ = io.WriteString(s.w, message)
	s.Close()
}

func (s *chatSink) Close() {
	s.once.Do(s.flush)
}

func (s *chatSink) flush() {
	if s.f != nil {
		s.f.Flush()
	}
}

type deltaEnvelope struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Index int          `json:"index"`
	Delta deltaContent `json:"delta"`
}

type deltaContent struct {
	Content string `json:"content"`
}

// voiceSink frames every partial as an SSE data line carrying an OpenAI
// chat-chunk envelope; the terminal marker is the [DONE] sentinel. Errors
// go in-band with a [Done] tag so the caller never sees an abrupt close.
type voiceSink struct {
	w    http.ResponseWriter
	f    http.Flusher
	once sync.Once
}

func NewVoiceSink(w http.ResponseWriter) Sink {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	f, _ := w.(http.Flusher)
	return &voiceSink{w: w, f: f}
}

func (s *voiceSink) WritePartial(text string) error {
	return s.writeEnvelope(text)
}

func (s *voiceSink) WriteDone(_, _ string) error {
	_, err := io.WriteString(s.w, "data: [DONE]\n\n")
	s.flush()
	return err
}

func (s *voiceSink) Fail(message string) {
	_ = s.writeEnvelope(message + "[Done]\n\n")
	s.Close()
}

func (s *voiceSink) Close() {
	s.once.Do(s.flush)
}

func (s *voiceSink) writeEnvelope(content string) error {
	payload, err := json.Marshal(deltaEnvelope{
		Choices: []deltaChoice{{Index: 0, Delta: deltaContent{Content: content}}},
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.flush()
	return err
}

func (s *voiceSink) flush() {
	if s.f != nil {
		s.f.Flush()
	}
}
