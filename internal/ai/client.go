package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Intent is the classified meaning of a patient reply.
type Intent string

const (
	IntentConfirm    Intent = "confirm"
	IntentCorrection Intent = "correction"
	IntentUnclear    Intent = "unclear"
)

// ChatMessage is one role/content pair sent to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Correction is the structured payload extracted from a patient reply.
// Nil fields mean "no correction for that field". It is transient: only its
// effect on the delivery record is ever persisted.
type Correction struct {
	DeliveryAddress *string `json:"delivery_address"`
	DeliveryTime    *string `json:"delivery_time"`
}

// Empty reports whether the payload carries no correction at all.
func (c Correction) Empty() bool {
	return c.DeliveryAddress == nil && c.DeliveryTime == nil
}

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaConfig `json:"json_schema"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the minimal response shape for the Chat Completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client is a focused OpenAI-compatible client for the three calls the
// conversation engine makes: intent classification, free-form response and
// structured correction extraction.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at an alternate endpoint (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// NewClient creates a client from OPENAI_API_KEY (and optional OPENAI_MODEL).
func NewClient(opts ...Option) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY in environment variables")
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	c := &Client{
		baseURL:    "https://api.openai.com/v1",
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ClassifyIntent labels a patient reply as confirm, correction or unclear.
// Recent history gives the model enough context to catch a sarcastic or
// negated yes/no inside a longer exchange. Any label outside the three known
// values comes back as IntentUnclear.
func (c *Client) ClassifyIntent(ctx context.Context, message string, history []ChatMessage) (Intent, error) {
	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: intentSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: "user", Content: intentUserPrompt(message)})

	zero := 0.0
	raw, err := c.chat(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &zero,
	})
	if err != nil {
		return IntentUnclear, err
	}

	switch Intent(strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"`))) {
	case IntentConfirm:
		return IntentConfirm, nil
	case IntentCorrection:
		return IntentCorrection, nil
	default:
		return IntentUnclear, nil
	}
}

// Respond produces the guiding natural-language reply for an ambiguous turn.
func (c *Client) Respond(ctx context.Context, history []ChatMessage) (string, error) {
	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, ChatMessage{Role: "system", Content: responderSystemPrompt})
	messages = append(messages, history...)

	reply, err := c.chat(ctx, chatRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("openai: empty responder reply")
	}
	return reply, nil
}

// ExtractCorrection pulls structured address/time corrections out of the
// conversation. The strict JSON schema keeps the output well-formed; a
// response that still fails to parse is returned as an error and the caller
// treats it as "no correction".
func (c *Client) ExtractCorrection(ctx context.Context, history []ChatMessage) (Correction, error) {
	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, ChatMessage{Role: "system", Content: extractorSystemPrompt})
	messages = append(messages, history...)

	zero := 0.0
	raw, err := c.chat(ctx, chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    &zero,
		ResponseFormat: correctionResponseFormat(),
	})
	if err != nil {
		return Correction{}, err
	}

	var correction Correction
	if err := json.Unmarshal([]byte(raw), &correction); err != nil {
		return Correction{}, fmt.Errorf("openai: decode correction payload: %w", err)
	}
	return correction, nil
}

func correctionResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "delivery_correction",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"delivery_address":{"type":["string","null"]},
					"delivery_time":{"type":["string","null"]}
				},
				"required":["delivery_address","delivery_time"]
			}`),
		},
	}
}

func (c *Client) chat(ctx context.Context, request chatRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response body: %w", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}
