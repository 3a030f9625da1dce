package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supporterr "supportbot/pkg/errors"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// reversedServer answers with items in reverse order so callers must sort by index.
func reversedServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "model": req.Model, "data": data})
	}))
}

func newTestClient(t *testing.T, url string, batch int) *Client {
	t.Helper()
	t.Setenv("SUPPORTBOT_TEST_KEY", "test-key")
	c, err := NewClient(Config{
		BaseURL:    url + "/v1",
		APIKeyEnv:  "SUPPORTBOT_TEST_KEY",
		Model:      "test-model",
		Dimension:  3,
		BatchSize:  batch,
		MaxRetries: 2,
	})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestEmbed_BatchesAndOrders(t *testing.T) {
	var calls atomic.Int32
	srv := reversedServer(t, 3, &calls)
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "openai-test-model", c.Name())
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,2,3]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 8)
	vecs, err := c.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}}, vecs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 8)
	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.True(t, supporterr.IsUpstreamFailure(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,2]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 8)
	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.True(t, supporterr.HasCode(err, supporterr.CodeEmbeddingResponse))
}

func TestEmbed_RejectsEmptyText(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", 8)
	_, err := c.Embed(context.Background(), []string{""})
	require.Error(t, err)
	assert.True(t, supporterr.IsInvalidInput(err))
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("SUPPORTBOT_EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "SUPPORTBOT_EMPTY_KEY"})
	assert.Error(t, err)
}

func TestNewClient_KnownModelDimension(t *testing.T) {
	t.Setenv("SUPPORTBOT_TEST_KEY", "k")
	c, err := NewClient(Config{APIKeyEnv: "SUPPORTBOT_TEST_KEY", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, c.Dimension())
}

func TestRetryDelay_Capped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}
