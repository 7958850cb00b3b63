package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements Client against the OpenAI Assistants API.
//
// Thread and message management goes through go-openai. The SDK has no
// streaming support for assistant runs, so the three run endpoints are
// called directly and decoded as SSE.
type OpenAIClient struct {
	api     *openai.Client
	http    *http.Client
	baseURL string
	apiKey  string
	logger  zerolog.Logger
}

func NewOpenAIClient(apiKey string, logger zerolog.Logger) *OpenAIClient {
	return &OpenAIClient{
		api: openai.NewClient(apiKey),
		// Overall cap for one run stream, not a per-read timeout.
		http:    &http.Client{Timeout: 10 * time.Minute},
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (c *OpenAIClient) CreateThread(ctx context.Context, vectorStoreID string) (string, error) {
	req := openai.ThreadRequest{}
	if vectorStoreID != "" {
		req.ToolResources = &openai.ToolResourcesRequest{
			FileSearch: &openai.FileSearchToolResourcesRequest{
				VectorStoreIDs: []string{vectorStoreID},
			},
		}
	}
	thread, err := c.api.CreateThread(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) RetrieveThread(ctx context.Context, threadID string) (string, error) {
	thread, err := c.api.RetrieveThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("retrieve thread %s: %w", threadID, err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) AddUserMessage(ctx context.Context, threadID, text string) error {
	_, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (c *OpenAIClient) CancelRun(ctx context.Context, threadID, runID string) error {
	_, err := c.api.CancelRun(ctx, threadID, runID)
	return err
}

func (c *OpenAIClient) StreamRun(ctx context.Context, threadID string, cfg RunConfig) (Stream, error) {
	body := map[string]any{
		"assistant_id": cfg.AssistantID,
		"stream":       true,
	}
	if cfg.AdditionalInstructions != "" {
		body["additional_instructions"] = cfg.AdditionalInstructions
	}
	if len(cfg.Metadata) > 0 {
		body["metadata"] = cfg.Metadata
	}
	return c.openStream(ctx, "/threads/"+threadID+"/runs", body)
}

func (c *OpenAIClient) StreamThreadRun(ctx context.Context, cfg ThreadRunConfig) (Stream, error) {
	body := map[string]any{
		"assistant_id": cfg.AssistantID,
		"instructions": cfg.Instructions,
		"thread":       map[string]any{"messages": cfg.Messages},
		"stream":       true,
	}
	if cfg.Model != "" {
		body["model"] = cfg.Model
	}
	if cfg.Temperature != nil {
		body["temperature"] = *cfg.Temperature
	}
	if len(cfg.Metadata) > 0 {
		body["metadata"] = cfg.Metadata
	}
	return c.openStream(ctx, "/threads/runs", body)
}

func (c *OpenAIClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Stream, error) {
	body := map[string]any{
		"tool_outputs": outputs,
		"stream":       true,
	}
	path := fmt.Sprintf("/threads/%s/runs/%s/submit_tool_outputs", threadID, runID)
	return c.openStream(ctx, path, body)
}

func (c *OpenAIClient) openStream(ctx context.Context, path string, body any) (Stream, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("open stream %s: status %s body=%s", path, resp.Status, respBody)
	}

	return newRunStream(resp.Body, c.logger), nil
}
