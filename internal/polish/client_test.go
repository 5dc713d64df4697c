package polish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-notes/inkwell/internal/config"
)

func testAIConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		BaseURL:   baseURL,
		APIKey:    "sk-test-key",
		Model:     "test-model",
		MaxTokens: 1024,
		Timeout:   5 * time.Second,
	}
}

func TestClientGenerate(t *testing.T) {
	var gotReq generateRequest
	var gotHeaders http.Header
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": "polished"}`))
	}))
	defer srv.Close()

	client := NewClient(testAIConfig(srv.URL))
	raw, err := client.Generate(context.Background(), "rough draft", StyleConcise, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"content": "polished"}`, string(raw))

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "Bearer sk-test-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "2023-06-01", gotHeaders.Get("anthropic-version"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	assert.Equal(t, "test-model", gotReq.Model)
	assert.Equal(t, 1024, gotReq.MaxTokens)
	assert.Equal(t, StyleConcise.SystemPrompt(), gotReq.System)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "rough draft", gotReq.Messages[0].Content)
}

func TestClientCustomInstruction(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"content": "ok"}`))
	}))
	defer srv.Close()

	client := NewClient(testAIConfig(srv.URL))
	_, err := client.Generate(context.Background(), "my text", StyleCustom, "make it rhyme")
	require.NoError(t, err)

	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "Instruction: make it rhyme\n\nContent to polish:\nmy text", gotReq.Messages[0].Content)
	assert.Equal(t, StyleCustom.SystemPrompt(), gotReq.System)
}

func TestClientInstructionIgnoredForFixedStyles(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"content": "ok"}`))
	}))
	defer srv.Close()

	client := NewClient(testAIConfig(srv.URL))
	_, err := client.Generate(context.Background(), "my text", StyleFormal, "make it rhyme")
	require.NoError(t, err)

	assert.Equal(t, "my text", gotReq.Messages[0].Content)
}

func TestClientKeyCleaning(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"content": "ok"}`))
	}))
	defer srv.Close()

	cfg := testAIConfig(srv.URL)
	cfg.APIKey = "sk-real-key # copied from dashboard"

	client := NewClient(cfg)
	_, err := client.Generate(context.Background(), "x", StyleConcise, "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-real-key", gotAuth)
}

func TestClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "` + strings.Repeat("x", 600) + `"}}`))
	}))
	defer srv.Close()

	client := NewClient(testAIConfig(srv.URL))
	_, err := client.Generate(context.Background(), "x", StyleConcise, "")

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.LessOrEqual(t, len(upstream.Body), maxErrorBody+3)
	assert.True(t, strings.HasSuffix(upstream.Body, "..."))
}

func TestClientNoRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testAIConfig(srv.URL))
	_, err := client.Generate(context.Background(), "x", StyleConcise, "")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
