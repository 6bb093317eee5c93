// File: internal/llmclient/gemini_test.go
package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewGeminiClient(config.LLMConfig{
		Provider:          config.ProviderGemini,
		Model:             "gemini-2.0-flash",
		APIKey:            "test-key",
		Endpoint:          srv.URL,
		APITimeout:        time.Second,
		RequestsPerSecond: 1000,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ACTIONABLE"}]}}]}`))
	})

	reply, err := c.Generate(context.Background(), "classify this", 16)
	require.NoError(t, err)
	assert.Equal(t, "ACTIONABLE", reply)
}

func TestGenerateEmptyCandidates(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := c.Generate(context.Background(), "classify this", 16)
	assert.Error(t, err)
}

func TestGenerateRetriesOnServerError(t *testing.T) {
	var hits atomic.Int64
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"status":"UNAVAILABLE","message":"overloaded"}}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	})

	reply, err := c.Generate(context.Background(), "prompt", 16)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.EqualValues(t, 3, hits.Load())
}

func TestGenerateClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int64
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"status":"INVALID_ARGUMENT","message":"bad request"}}`))
	})

	_, err := c.Generate(context.Background(), "prompt", 16)
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load(), "4xx must not be retried")
}

func TestEmbed(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "text-embedding-004:embedContent")
		w.Write([]byte(`{"embeddings":[{"values":[0.1,0.2,0.3]}]}`))
	})

	vec, err := c.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestFactory(t *testing.T) {
	logger := zap.NewNop()

	t.Run("disabled provider", func(t *testing.T) {
		c, err := New(config.LLMConfig{Provider: "none"}, logger)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("gemini without key degrades to nil", func(t *testing.T) {
		c, err := New(config.LLMConfig{Provider: config.ProviderGemini}, logger)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("gemini with key", func(t *testing.T) {
		c, err := New(config.LLMConfig{Provider: config.ProviderGemini, APIKey: "k"}, logger)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("unknown provider errors", func(t *testing.T) {
		_, err := New(config.LLMConfig{Provider: "oracle"}, logger)
		assert.Error(t, err)
	})
}
