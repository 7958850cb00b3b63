package assistant

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// runStream decodes an Assistants SSE run stream into Events. Wire events
// outside the closed set (run.created, step deltas, queue transitions) are
// skipped; terminal failure events surface as errors.
type runStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  zerolog.Logger
}

func newRunStream(body io.ReadCloser, logger zerolog.Logger) *runStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &runStream{body: body, scanner: scanner, logger: logger}
}

func (s *runStream) Recv() (Event, error) {
	var name string
	var data strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if name == "" && data.Len() == 0 {
				continue
			}
			kind, payload := name, data.String()
			name = ""
			data.Reset()

			if payload == "[DONE]" {
				return Event{}, io.EOF
			}
			ev, ok, err := decodeEvent(kind, payload)
			if err != nil {
				return Event{}, err
			}
			if ok {
				return ev, nil
			}
			s.logger.Debug().Str("event", kind).Msg("skipping stream event")
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (s *runStream) Close() error {
	return s.body.Close()
}

type wireText struct {
	Type string `json:"type"`
	Text struct {
		Value string `json:"value"`
	} `json:"text"`
}

type wireMessageDelta struct {
	ID    string `json:"id"`
	Delta struct {
		Content []wireText `json:"content"`
	} `json:"delta"`
}

type wireMessage struct {
	ID       string     `json:"id"`
	ThreadID string     `json:"thread_id"`
	Content  []wireText `json:"content"`
}

type wireRun struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
	RequiredAction *struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
}

// decodeEvent maps one wire event onto the closed Event set. ok=false means
// the event is not part of the set and should be skipped.
func decodeEvent(name, data string) (Event, bool, error) {
	switch name {
	case "thread.message.delta":
		var m wireMessageDelta
		if err := unmarshal(data, &m); err != nil {
			return Event{}, false, err
		}
		return Event{Kind: EventDelta, Text: joinText(m.Delta.Content)}, true, nil

	case "thread.message.completed":
		var m wireMessage
		if err := unmarshal(data, &m); err != nil {
			return Event{}, false, err
		}
		return Event{Kind: EventMessageCompleted, Text: joinText(m.Content), ThreadID: m.ThreadID}, true, nil

	case "thread.run.requires_action":
		var r wireRun
		if err := unmarshal(data, &r); err != nil {
			return Event{}, false, err
		}
		ev := Event{Kind: EventRequiresAction, ThreadID: r.ThreadID, RunID: r.ID}
		if r.RequiredAction != nil {
			for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
				ev.ToolCalls = append(ev.ToolCalls, ToolCall{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
		}
		return ev, true, nil

	case "thread.run.completed":
		var r wireRun
		if err := unmarshal(data, &r); err != nil {
			return Event{}, false, err
		}
		return Event{Kind: EventRunCompleted, ThreadID: r.ThreadID, RunID: r.ID}, true, nil

	case "thread.run.failed", "thread.run.cancelled", "thread.run.expired":
		var r wireRun
		if err := unmarshal(data, &r); err != nil {
			return Event{}, false, err
		}
		msg := ""
		if r.LastError != nil {
			msg = r.LastError.Message
		}
		return Event{}, false, fmt.Errorf("run %s terminated: %s %s", r.ID, name, msg)

	case "error":
		return Event{}, false, fmt.Errorf("stream error: %s", data)
	}

	return Event{}, false, nil
}

func unmarshal(data string, v any) error {
	return json.Unmarshal([]byte(data), v)
}

func joinText(parts []wireText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text.Value)
	}
	return b.String()
}
