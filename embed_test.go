package reverie

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "мой дневник", req.Input)

		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{0.5, -0.3, 0.8}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 3, WithOllamaHost(srv.URL))
	vec, err := e.Embed(context.Background(), "мой дневник", TaskDocument)
	require.NoError(t, err)
	require.Len(t, vec, 3)
	assert.Equal(t, float32(0.5), vec[0])
	assert.Equal(t, float32(-0.3), vec[1])
	assert.Equal(t, 3, e.Dimension())
}

func TestOllamaEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nonexistent-model", 768, WithOllamaHost(srv.URL))
	_, err := e.Embed(context.Background(), "test", "")
	require.Error(t, err)

	var se *statusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.status)
	assert.Contains(t, err.Error(), "ollama embed 404")
}

func TestOllamaEmbedderEmptyEmbedding(t *testing.T) {
	for name, body := range map[string]ollamaEmbedResponse{
		"no embeddings": {Embeddings: [][]float64{}},
		"empty vector":  {Embeddings: [][]float64{{}}},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(body)
			}))
			defer srv.Close()

			e := NewOllamaEmbedder("model", 768, WithOllamaHost(srv.URL))
			_, err := e.Embed(context.Background(), "test", "")
			assert.Error(t, err)
		})
	}
}

func TestOllamaEmbedderDefaults(t *testing.T) {
	e := NewOllamaEmbedder("all-minilm", 384)
	assert.Equal(t, "http://localhost:11434", e.host)
	assert.Equal(t, "all-minilm", e.model)
	assert.Equal(t, 384, e.dimension)
}

func TestOllamaEmbedderConnectionRefused(t *testing.T) {
	e := NewOllamaEmbedder("model", 768, WithOllamaHost("http://localhost:1"))
	_, err := e.Embed(context.Background(), "test", "")
	assert.Error(t, err)
}

func TestOpenAIEmbedderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, 3, req.Dimensions)

		json.NewEncoder(w).Encode(openAIEmbedResponse{
			Data: []openAIEmbedData{{Embedding: []float64{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", WithOpenAIBaseURL(srv.URL+"/"), WithOpenAIDimension(3))
	vec, err := e.Embed(context.Background(), "test text", TaskQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIEmbedderEmptyKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("").Embed(context.Background(), "test", "")
	assert.Error(t, err)
}

func TestOpenAIEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", WithOpenAIBaseURL(srv.URL))
	_, err := e.Embed(context.Background(), "test", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIEmbedderDefaults(t *testing.T) {
	e := NewOpenAIEmbedder("k", WithOpenAIModel("text-embedding-3-large"))
	assert.Equal(t, "text-embedding-3-large", e.model)
	assert.Equal(t, 1536, e.Dimension())
	assert.Equal(t, "https://api.openai.com/v1", e.baseURL)
}
