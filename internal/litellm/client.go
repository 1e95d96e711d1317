// Package litellm is a client for the LiteLLM gateway's OpenAI-compatible
// API. It covers chat completions, image generations and the model list, and
// turns every failure into a classified *Error.
//
// Example:
//
//	client := litellm.NewClient(&cfg.Gateway)
//	reply, err := client.ChatCompletion(ctx, litellm.ChatCompletionRequest{
//	    Model:    "gpt-4",
//	    Messages: []litellm.Message{{Role: "user", Content: "Hello"}},
//	})
//	if gwErr, ok := litellm.AsError(err); ok {
//	    log.Warn().Str("kind", string(gwErr.Kind)).Msg("Gateway call failed")
//	}
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ieraasyl/LiteChat/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// emptyContent is what an upstream reply without message content is
// treated as. A reply consisting of exactly this text is also empty.
const emptyContent = "No response received"

const maxErrorBody = 4 << 10

// DefaultImageText stands in for an image reply that carried neither a URL
// nor text.
const DefaultImageText = "Image generation completed."

// Message is a single chat message sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
}

// ImageGenerationRequest is the body of POST /images/generations.
type ImageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	ResponseFormat string `json:"response_format"`
}

// ImageResult holds either a generated image URL or, when the gateway
// answered with a chat-style payload, its text.
type ImageResult struct {
	URL  string
	Text string
}

// Client talks to a single LiteLLM gateway. It never retries.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	chatTimeout   time.Duration
	imageTimeout  time.Duration
	modelsTimeout time.Duration
	observe       Observer
}

// Observer is told about every completed round trip, successful or not.
type Observer func(path string, elapsed time.Duration)

// NewClient creates a gateway client. Per-call deadlines come from the
// configured timeouts.
func NewClient(cfg *config.GatewayConfig) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    &http.Client{},
		chatTimeout:   cfg.ChatTimeout,
		imageTimeout:  cfg.ImageTimeout,
		modelsTimeout: cfg.ModelsTimeout,
	}
}

// WithObserver registers fn to receive upstream latencies.
func (c *Client) WithObserver(fn Observer) *Client {
	c.observe = fn
	return c
}

// ChatCompletion sends a non-streaming completion request and returns the
// content of the first choice.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (string, error) {
	req.Stream = false

	status, body, err := c.do(ctx, http.MethodPost, "/chat/completions", req, c.chatTimeout)
	if err != nil {
		return "", err
	}
	return parseChatCompletion(status, body, req.Model)
}

// GenerateImage requests a single image. A 404 from the gateway is returned
// as an HTTP status error so the caller can fall back to a chat completion.
func (c *Client) GenerateImage(ctx context.Context, req ImageGenerationRequest) (*ImageResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/images/generations", req, c.imageTimeout)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, statusError(status, body, req.Model)
	}
	if !gjson.ValidBytes(body) {
		return nil, &Error{Kind: KindMalformedJSON, Message: truncateBody(body)}
	}

	if url := gjson.GetBytes(body, "data.0.url"); url.Exists() && url.String() != "" {
		return &ImageResult{URL: url.String()}, nil
	}

	text := gjson.GetBytes(body, "choices.0.message.content").String()
	if text == "" {
		text = DefaultImageText
	}
	return &ImageResult{Text: text}, nil
}

// ListModels returns the raw JSON document of GET /models.
func (c *Client) ListModels(ctx context.Context) (json.RawMessage, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/models", nil, c.modelsTimeout)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, statusError(status, body, "")
	}
	if !gjson.ValidBytes(body) {
		return nil, &Error{Kind: KindMalformedJSON, Message: truncateBody(body)}
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, timeout time.Duration) (int, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, &Error{Kind: KindUnexpected, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, &Error{Kind: KindUnexpected, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if c.observe != nil {
		c.observe(path, time.Since(start))
	}
	if err != nil {
		gwErr := classifyTransport(err)
		log.Warn().
			Err(err).
			Str("path", path).
			Str("kind", string(gwErr.Kind)).
			Dur("elapsed", time.Since(start)).
			Msg("Gateway request failed")
		return 0, nil, gwErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, classifyTransport(err)
	}

	log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("Gateway response")

	return resp.StatusCode, body, nil
}

// parseChatCompletion classifies a completion response. An embedded error
// field takes precedence over the HTTP status because LiteLLM reports
// provider failures that way.
func parseChatCompletion(status int, body []byte, model string) (string, error) {
	valid := gjson.ValidBytes(body)

	if valid {
		if e := gjson.GetBytes(body, "error"); e.Exists() && e.Type != gjson.Null {
			msg := errorText(e)
			if strings.Contains(msg, "NotFoundError") {
				return "", &Error{Kind: KindModelNotFound, Model: modelFromNotFound(msg), Message: msg}
			}
			return "", &Error{Kind: KindAPIError, StatusCode: status, Message: msg}
		}
	}

	if status >= http.StatusBadRequest {
		return "", statusError(status, body, model)
	}
	if !valid {
		return "", &Error{Kind: KindMalformedJSON, Message: truncateBody(body)}
	}

	choices := gjson.GetBytes(body, "choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return "", &Error{Kind: KindInvalidResponse}
	}

	content := choices.Array()[0].Get("message.content").String()
	if content == "" || content == emptyContent {
		return "", &Error{Kind: KindEmptyResponse}
	}
	return content, nil
}

// errorText flattens the error field, which is a string on some LiteLLM
// versions and an OpenAI-style object on others.
func errorText(e gjson.Result) string {
	if e.IsObject() {
		if m := e.Get("message"); m.Exists() {
			return m.String()
		}
		return e.Raw
	}
	return e.String()
}

func statusError(status int, body []byte, model string) *Error {
	gwErr := &Error{Kind: KindHTTPStatus, StatusCode: status, Message: truncateBody(body)}
	if status == http.StatusNotFound {
		gwErr.Model = model
	}
	return gwErr
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
