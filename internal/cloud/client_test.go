// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cli-llm-chat/llmchat/internal/model"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

const okBody = `{
	"id": "gen-1",
	"model": "google/gemini-2.0-flash-001",
	"choices": [{
		"message": {"role": "assistant", "content": "4"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 1, "total_tokens": 11}
}`

func defaultOpts() SendOptions {
	return SendOptions{Model: model.DefaultModelID, Temperature: 0.7, MaxTokens: 1000}
}

func userTranscript(content string) []model.Message {
	return []model.Message{model.NewUserMessage(content)}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, NewClient(testKey).WithBaseURL(server.URL)
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_Success(t *testing.T) {
	var got chatRequest
	var header http.Header
	var path string

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		header = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	})

	transcript := []model.Message{
		model.NewSystemMessage("be brief"),
		model.NewUserMessage("2+2?"),
		model.NewAssistantMessage("4"),
		model.NewUserMessage("and 3+3?"),
	}

	reply, err := client.Send(context.Background(), transcript, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "4", reply.Content)
	assert.False(t, reply.Timestamp.IsZero())

	assert.Equal(t, "/chat/completions", path)
	assert.Equal(t, "Bearer "+testKey, header.Get("Authorization"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, DefaultSiteURL, header.Get("HTTP-Referer"))
	assert.Equal(t, DefaultSiteName, header.Get("X-Title"))

	assert.Equal(t, model.DefaultModelID, got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 4)
	for i, m := range transcript {
		assert.Equal(t, string(m.Role), got.Messages[i].Role)
		assert.Equal(t, m.Content, got.Messages[i].Content)
	}
}

func TestSend_OmitsZeroMaxTokens(t *testing.T) {
	var raw map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(okBody))
	})

	opts := defaultOpts()
	opts.MaxTokens = 0
	opts.Temperature = 0
	_, err := client.Send(context.Background(), userTranscript("hi"), opts)
	require.NoError(t, err)

	assert.NotContains(t, raw, "max_tokens")
	assert.Contains(t, raw, "temperature")
}

func TestSend_AuthError(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error": {"code": 401, "message": "No auth credentials found"}}`))
			})

			_, err := client.Send(context.Background(), userTranscript("hi"), defaultOpts())
			require.Error(t, err)

			var authErr *AuthError
			require.True(t, errors.As(err, &authErr))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, status, apiErr.StatusCode)
			assert.Equal(t, "No auth credentials found", apiErr.Message)
			assert.Equal(t, "401", apiErr.Code)
		})
	}
}

func TestSend_APIErrorNoRetry(t *testing.T) {
	var hits atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	_, err := client.Send(context.Background(), userTranscript("hi"), defaultOpts())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Body)
	assert.False(t, errors.As(err, new(*AuthError)))
	assert.Equal(t, int32(1), hits.Load())
}

func TestSend_ZeroChoices(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	})

	_, err := client.Send(context.Background(), userTranscript("hi"), defaultOpts())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "no choices")
}

func TestSend_MalformedBody(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.Send(context.Background(), userTranscript("hi"), defaultOpts())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "<html>", apiErr.Body)
}

func TestSend_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(testKey).WithBaseURL(url)
	_, err := client.Send(context.Background(), userTranscript("hi"), defaultOpts())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.True(t, apiErr.IsNetwork())
	assert.NotNil(t, apiErr.Err)
}

func TestSend_ContextCanceled(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Send(ctx, userTranscript("hi"), defaultOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSend_Validation(t *testing.T) {
	var hits atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	tests := []struct {
		name       string
		transcript []model.Message
		opts       SendOptions
		field      string
	}{
		{"empty model", userTranscript("hi"), SendOptions{Temperature: 0.7}, "model"},
		{"empty transcript", nil, defaultOpts(), "transcript"},
		{"temperature too high", userTranscript("hi"), SendOptions{Model: "m", Temperature: 2.5}, "temperature"},
		{"temperature negative", userTranscript("hi"), SendOptions{Model: "m", Temperature: -0.1}, "temperature"},
		{"negative max tokens", userTranscript("hi"), SendOptions{Model: "m", MaxTokens: -1}, "max_tokens"},
		{"invalid role", []model.Message{{Role: "robot", Content: "x"}}, defaultOpts(), "transcript"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Send(context.Background(), tc.transcript, tc.opts)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestSend_TemperatureBounds(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	})

	for _, temp := range []float64{0, 2} {
		opts := defaultOpts()
		opts.Temperature = temp
		_, err := client.Send(context.Background(), userTranscript("hi"), opts)
		assert.NoError(t, err)
	}
}

func TestSend_StreamingUnsupported(t *testing.T) {
	client := NewClient(testKey)
	opts := defaultOpts()
	opts.Stream = true

	_, err := client.Send(context.Background(), userTranscript("hi"), opts)
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}

func TestSend_NotConfigured(t *testing.T) {
	_, err := NewClient("  ").Send(context.Background(), userTranscript("hi"), defaultOpts())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSend_DebugLoggingDoesNotChangeResult(t *testing.T) {
	_, quiet := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	})
	core, logs := observer.New(zapcore.DebugLevel)
	_, loud := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	})
	loud.WithLogger(zap.New(core))

	a, err := quiet.Send(context.Background(), userTranscript("hi"), defaultOpts())
	require.NoError(t, err)
	b, err := loud.Send(context.Background(), userTranscript("hi"), defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, a.Content, b.Content)
	assert.Equal(t, a.Role, b.Role)

	reqLogs := logs.FilterMessage("openrouter request").All()
	require.Len(t, reqLogs, 1)
	fields := reqLogs[0].ContextMap()
	assert.Equal(t, "****6789", fields["api_key"])
	assert.Contains(t, fields["url"], "/chat/completions")
	assert.Contains(t, fields["payload"], "hi")
	assert.NotContains(t, fields["payload"], testKey)

	respLogs := logs.FilterMessage("openrouter response").All()
	require.Len(t, respLogs, 1)
	assert.EqualValues(t, http.StatusOK, respLogs[0].ContextMap()["status"])
}

// =============================================================================
// LIST MODELS TESTS
// =============================================================================

const modelsBody = `{"data": [
	{"id": "openai/gpt-4o", "name": "GPT-4o", "description": "omni", "context_length": 128000,
	 "pricing": {"prompt": "0.0000025", "completion": "0.00001"}},
	{"id": "google/gemini-2.0-flash-001", "name": "Gemini Flash", "context_length": 1000000,
	 "pricing": {"prompt": "0.0000001", "completion": "0.0000004"}}
]}`

func TestListModels_Cached(t *testing.T) {
	var hits atomic.Int32
	var auth string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(modelsBody))
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "openai/gpt-4o", models[0].ID)
	assert.Equal(t, "GPT-4o", models[0].Name)
	assert.Equal(t, "omni", models[0].Description)
	assert.Equal(t, 128000, models[0].ContextLength)
	assert.Equal(t, "0.0000025", models[0].Pricing.Prompt)

	// Mutating the returned slice must not poison the cache.
	models[0].ID = "changed"

	again, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", again[0].ID)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "Bearer "+testKey, auth)
}

func TestListModels_ErrorNotCached(t *testing.T) {
	var hits atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "bad key"}}`))
			return
		}
		_, _ = w.Write([]byte(modelsBody))
	})

	_, err := client.ListModels(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

// =============================================================================
// ERROR FORMATTING TESTS
// =============================================================================

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "OpenRouter error (HTTP 500): boom",
		(&APIError{StatusCode: 500, Message: "boom"}).Error())
	assert.Equal(t, "OpenRouter error [rate] (HTTP 429): slow down",
		(&APIError{StatusCode: 429, Code: "rate", Message: "slow down"}).Error())
	assert.True(t, strings.HasPrefix(
		(&APIError{Err: errors.New("dial tcp: refused")}).Error(),
		"OpenRouter request failed"))

	authErr := &AuthError{Err: &APIError{StatusCode: 401, Message: "bad key"}}
	assert.Contains(t, authErr.Error(), "authentication failed")
}

func TestClient_APIKeyMasked(t *testing.T) {
	assert.Equal(t, "****6789", NewClient(testKey).APIKeyMasked())
	assert.Equal(t, "[not set]", NewClient("").APIKeyMasked())
	assert.False(t, NewClient("").IsConfigured())
}
