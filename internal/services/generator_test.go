package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGenerationClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemini-2.5-flash", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "Hello Ann", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "Hi there, Ann."}}],
			"usage": {"total_tokens": 12}
		}`))
	}))
	defer server.Close()

	client := NewHTTPGenerationClient(server.URL, "secret")
	result, err := client.Generate(context.Background(), "Hello Ann", "gemini-2.5-flash")
	require.NoError(t, err)
	assert.Equal(t, "Hi there, Ann.", result.Text)
	require.NotNil(t, result.TokenCount)
	assert.Equal(t, 12, *result.TokenCount)
}

func TestHTTPGenerationClientNoAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	client := NewHTTPGenerationClient(server.URL, "")
	result, err := client.Generate(context.Background(), "p", "m")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Nil(t, result.TokenCount)
}

func TestHTTPGenerationClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer server.Close()

	client := NewHTTPGenerationClient(server.URL, "secret")
	_, err := client.Generate(context.Background(), "p", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestHTTPGenerationClientBadStatusWithoutMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPGenerationClient(server.URL, "secret")
	_, err := client.Generate(context.Background(), "p", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPGenerationClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewHTTPGenerationClient(server.URL, "secret")
	_, err := client.Generate(context.Background(), "p", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestHTTPGenerationClientCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewHTTPGenerationClient(server.URL, "secret")
	_, err := client.Generate(ctx, "p", "m")
	assert.Error(t, err)
}
