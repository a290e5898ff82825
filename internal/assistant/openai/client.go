// Package openai implements the assistant.Client interface against the
// OpenAI Assistants v2 REST API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ChainPilot/internal/assistant"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModelName = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second

	betaHeader = "assistants=v2"
)

// Config describes how to reach the Assistants API.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	AssistantID string
	Timeout     time.Duration
}

// Client talks to the Assistants API over plain HTTP.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client

	mu          sync.Mutex
	assistantID string
}

// NewClient validates the configuration and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		assistantID: strings.TrimSpace(cfg.AssistantID),
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// CreateThread allocates a provider-side thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var decoded struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", errors.New("openai: thread response missing id")
	}
	return decoded.ID, nil
}

// CreateMessage appends a user message to the thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, text string) error {
	body := map[string]any{
		"role":    "user",
		"content": text,
	}
	return c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil)
}

// CreateRun starts a run advertising the catalog functions. The assistant is
// created lazily on first use when no assistant id was configured.
func (c *Client) CreateRun(ctx context.Context, threadID string, tools []assistant.FunctionDefinition) (*assistant.Run, error) {
	assistantID, err := c.ensureAssistant(ctx, tools)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"assistant_id": assistantID,
		"additional_instructions": "Execute operations immediately without stopping for confirmation. " +
			"Provide continuous progress updates.",
	}
	if len(tools) > 0 {
		body["tools"] = encodeTools(tools)
	}

	var decoded runPayload
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &decoded); err != nil {
		return nil, err
	}
	return decoded.toRun(threadID), nil
}

// GetRun fetches the run state, including any pending tool calls.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	var decoded runPayload
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &decoded); err != nil {
		return nil, err
	}
	return decoded.toRun(threadID), nil
}

// SubmitToolOutputs feeds the whole batch of outputs back into the run.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) (*assistant.Run, error) {
	entries := make([]map[string]string, 0, len(outputs))
	for _, out := range outputs {
		entries = append(entries, map[string]string{
			"tool_call_id": out.CallID,
			"output":       out.Output,
		})
	}
	body := map[string]any{"tool_outputs": entries}

	var decoded runPayload
	path := "/threads/" + threadID + "/runs/" + runID + "/submit_tool_outputs"
	if err := c.do(ctx, http.MethodPost, path, body, &decoded); err != nil {
		return nil, err
	}
	return decoded.toRun(threadID), nil
}

// LatestMessage returns the newest assistant message text on the thread.
func (c *Client) LatestMessage(ctx context.Context, threadID string) (string, error) {
	var decoded struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	path := "/threads/" + threadID + "/messages?order=desc&limit=1"
	if err := c.do(ctx, http.MethodGet, path, nil, &decoded); err != nil {
		return "", err
	}
	for _, msg := range decoded.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" && strings.TrimSpace(part.Text.Value) != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", errors.New("openai: thread has no assistant message")
}

// ensureAssistant returns the configured assistant id, creating one with the
// agent instructions when none was supplied.
func (c *Client) ensureAssistant(ctx context.Context, tools []assistant.FunctionDefinition) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assistantID != "" {
		return c.assistantID, nil
	}

	body := map[string]any{
		"model":        c.model,
		"name":         "ChainPilot Agent",
		"instructions": agentInstructions,
		"tools":        encodeTools(tools),
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/assistants", body, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", errors.New("openai: assistant response missing id")
	}
	c.assistantID = decoded.ID
	return c.assistantID, nil
}

func encodeTools(tools []assistant.FunctionDefinition) []map[string]any {
	encoded := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		encoded = append(encoded, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return encoded
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("openai: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", betaHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("openai: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai: decode response: %w", err)
	}
	return nil
}

// runPayload mirrors the Assistants API run object.
type runPayload struct {
	ID             string `json:"id"`
	ThreadID       string `json:"thread_id"`
	Status         string `json:"status"`
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

func (p *runPayload) toRun(threadID string) *assistant.Run {
	run := &assistant.Run{
		ID:       p.ID,
		ThreadID: p.ThreadID,
		Status:   assistant.RunStatus(p.Status),
	}
	if run.ThreadID == "" {
		run.ThreadID = threadID
	}
	if p.RequiredAction != nil {
		for _, call := range p.RequiredAction.SubmitToolOutputs.ToolCalls {
			run.ToolCalls = append(run.ToolCalls, assistant.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})
		}
	}
	return run
}

// agentInstructions is the system prompt for the custodial agent. The agent
// must never surface machine-readable payloads to the user.
const agentInstructions = "You are ChainPilot, a highly specialized AI for blockchain operations. " +
	"You communicate in natural language only, never showing technical formats like JSON. " +
	"Only reference explicitly provided tools and networks. " +
	"Act as soon as requirements are met and never ask for information you already have. " +
	"Always include transaction links when available and keep responses concise and action-oriented."
