package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mzagorov/vapi-ai-bridge/internal/assistant"
)

// Closed set of tool names the assistant may call.
const (
	NameEscalateIssue   = "escalateIssue"
	NameBookAppointment = "bookAppointment"
)

// ErrToolNotFound — the assistant asked for a tool outside the registry.
var ErrToolNotFound = errors.New("actions: tool not registered")

// Origin carries request-scoped fields every action body includes.
type Origin struct {
	SessionID    string
	BotID        string
	Voice        bool
	Conversation []assistant.ChatTurn
}

type endpointSpec struct {
	url    string
	fields []string
}

// Client posts fixed-shape JSON bodies to the configured action endpoints.
type Client struct {
	specs  map[string]endpointSpec
	http   *http.Client
	logger zerolog.Logger
}

func NewClient(escalationURL, appointmentURL string, logger zerolog.Logger) *Client {
	return &Client{
		specs: map[string]endpointSpec{
			NameEscalateIssue: {
				url:    escalationURL,
				fields: []string{"name", "email", "phone"},
			},
			NameBookAppointment: {
				url:    appointmentURL,
				fields: []string{"name", "email", "phone", "preferred_date", "preferred_time"},
			},
		},
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Invoke resolves one tool call and returns the serialized response body.
// Unknown names fail with ErrToolNotFound; argument, network and non-2xx
// failures fail with an ordinary error. No retry.
func (c *Client) Invoke(ctx context.Context, name, argsJSON string, origin Origin) (string, error) {
	spec, ok := c.specs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("%s: parse arguments: %w", name, err)
	}

	conversation := origin.Conversation
	if conversation == nil {
		conversation = []assistant.ChatTurn{}
	}
	body := map[string]any{
		"session_id":   origin.SessionID,
		"bot_id":       origin.BotID,
		"is_voice":     origin.Voice,
		"chat_history": conversation,
	}
	for _, field := range spec.fields {
		if v, ok := args[field]; ok {
			body[field] = v
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s: status %s body=%s", name, resp.Status, respBody)
	}

	c.logger.Info().Str("action", name).Msg("action endpoint call completed")
	return string(respBody), nil
}
