// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cli-llm-chat/llmchat/internal/model"
	"github.com/cli-llm-chat/llmchat/internal/util"
)

// Configuration constants for OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// MaxTemperature is the upper bound OpenRouter accepts.
	MaxTemperature = 2.0

	// Attribution headers shown on the OpenRouter dashboard.
	DefaultSiteURL  = "https://github.com/cli-llm-chat"
	DefaultSiteName = "CLI LLM Chat"

	userAgent = "llmchat/1.0"
)

// SendOptions control a single completion request.
type SendOptions struct {
	Model       string
	Temperature float64
	// MaxTokens of 0 leaves the limit to the provider.
	MaxTokens int
	// Stream must be false.
	Stream bool
}

// chatMessage is the wire form of a transcript entry.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest represents a request to the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatResponse represents a response from the chat completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// modelsResponse is the internal response structure for listing models.
type modelsResponse struct {
	Data []model.ModelDescriptor `json:"data"`
}

// apiErrorResponse represents an error response from the API.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the OpenRouter completions and models endpoints. It never
// retries; every call is exactly one HTTP exchange.
type Client struct {
	apiKey     string
	baseURL    string
	siteURL    string
	siteName   string
	httpClient *http.Client
	log        *zap.Logger

	mu     sync.Mutex
	models []model.ModelDescriptor
}

// NewClient creates a client for the given API key.
//
// The API key should be in the format "sk-or-..." as provided by OpenRouter.
// An empty key still yields a client, but Send fails with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  DefaultOpenRouterURL,
		siteURL:  DefaultSiteURL,
		siteName: DefaultSiteName,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		log: zap.NewNop(),
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithLogger attaches the diagnostic logger. Requests and responses are
// logged at Debug level.
func (c *Client) WithLogger(log *zap.Logger) *Client {
	if log != nil {
		c.log = log
	}
	return c
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// APIKeyMasked returns a masked version of the API key for display.
func (c *Client) APIKeyMasked() string {
	return util.MaskKey(c.apiKey)
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// CHAT COMPLETIONS
// =============================================================================

// Send posts the whole transcript and returns the assistant reply.
//
// Errors: *ValidationError for bad options, ErrStreamingUnsupported,
// ErrNotConfigured, *AuthError for 401/403, *APIError for anything else.
// Cancelling ctx aborts the request and the error matches ctx.Err().
func (c *Client) Send(ctx context.Context, transcript []model.Message, opts SendOptions) (model.Message, error) {
	if err := validateSend(transcript, opts); err != nil {
		return model.Message{}, err
	}
	if !c.IsConfigured() {
		return model.Message{}, ErrNotConfigured
	}

	reqBody := chatRequest{
		Model:       opts.Model,
		Messages:    make([]chatMessage, 0, len(transcript)),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}
	for _, m := range transcript {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/chat/completions", payload)
	if err != nil {
		return model.Message{}, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return model.Message{}, &APIError{
			StatusCode: status,
			Message:    "malformed response body",
			Body:       string(body),
			Err:        err,
		}
	}
	if len(chatResp.Choices) == 0 {
		return model.Message{}, &APIError{
			StatusCode: status,
			Message:    "response contained no choices",
			Body:       string(body),
		}
	}

	c.log.Debug("completion received",
		zap.String("model", chatResp.Model),
		zap.String("finish_reason", chatResp.Choices[0].FinishReason),
		zap.Int("prompt_tokens", chatResp.Usage.PromptTokens),
		zap.Int("completion_tokens", chatResp.Usage.CompletionTokens))

	return model.NewAssistantMessage(chatResp.Choices[0].Message.Content), nil
}

func validateSend(transcript []model.Message, opts SendOptions) error {
	if opts.Stream {
		return ErrStreamingUnsupported
	}
	if strings.TrimSpace(opts.Model) == "" {
		return &ValidationError{Field: "model", Message: "must not be empty"}
	}
	if len(transcript) == 0 {
		return &ValidationError{Field: "transcript", Message: "must contain at least one message"}
	}
	if opts.Temperature < 0 || opts.Temperature > MaxTemperature {
		return &ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("%g is outside [0, %g]", opts.Temperature, MaxTemperature),
		}
	}
	if opts.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Message: "must not be negative"}
	}
	for i, m := range transcript {
		if !m.Role.Valid() {
			return &ValidationError{Field: "transcript", Message: fmt.Sprintf("message %d has invalid role %q", i, m.Role)}
		}
	}
	return nil
}

// =============================================================================
// MODELS
// =============================================================================

// ListModels retrieves the available models. The first successful result
// is cached for the lifetime of the client.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models == nil {
		status, body, err := c.do(ctx, http.MethodGet, "/models", nil)
		if err != nil {
			return nil, err
		}

		var modelsResp modelsResponse
		if err := json.Unmarshal(body, &modelsResp); err != nil {
			return nil, &APIError{
				StatusCode: status,
				Message:    "malformed models response",
				Body:       string(body),
				Err:        err,
			}
		}
		c.models = modelsResp.Data
		if c.models == nil {
			c.models = []model.ModelDescriptor{}
		}
	}

	out := make([]model.ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do performs one request and returns the status and body of a 2xx
// response. Everything else is converted to *APIError or *AuthError.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.log.Debug("openrouter request",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("api_key", util.MaskKey(c.apiKey)),
		zap.ByteString("payload", payload))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("openrouter request failed", zap.String("url", url), zap.Error(err))
		return 0, nil, &APIError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	// SECURITY: Read response with size limit to prevent memory exhaustion
	body, err := readResponse(resp)
	if err != nil {
		return resp.StatusCode, nil, &APIError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	c.log.Debug("openrouter response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.ByteString("body", body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, handleErrorResponse(resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

// setHeaders sets the required headers for OpenRouter API requests.
func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to typed errors.
func handleErrorResponse(statusCode int, body []byte) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Body:       string(body),
	}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Code = strings.Trim(string(parsed.Error.Code), `"`)
	} else {
		apiErr.Message = strings.TrimSpace(http.StatusText(statusCode))
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Err: apiErr}
	default:
		return apiErr
	}
}
