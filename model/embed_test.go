package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"docqa/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	got    []string
	vector []float32
	err    error
}

func (b *recordingBackend) Embed(_ context.Context, text string) ([]float32, error) {
	b.got = append(b.got, text)
	return b.vector, b.err
}

func TestEmbedder_RejectsBlankText(t *testing.T) {
	backend := &recordingBackend{}
	embedder := NewEmbedder(backend, 3, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := embedder.Embed(context.Background(), text)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	}
	assert.Empty(t, backend.got, "blank text must not reach the backend")
}

func TestEmbedder_TrimsAndTruncates(t *testing.T) {
	backend := &recordingBackend{vector: []float32{0.1, 0.2, 0.3}}
	embedder := NewEmbedder(backend, 3, nil)

	long := "  " + strings.Repeat("ж", MaxEmbeddingChars+50) + "  "
	vector, err := embedder.Embed(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)

	require.Len(t, backend.got, 1)
	assert.Equal(t, MaxEmbeddingChars, utf8.RuneCountInString(backend.got[0]))
	assert.True(t, utf8.ValidString(backend.got[0]))
}

func TestEmbedder_WrapsBackendError(t *testing.T) {
	upstream := errors.New("rate limited")
	embedder := NewEmbedder(&recordingBackend{err: upstream}, 3, nil)

	_, err := embedder.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, types.ErrEmbeddingService)
	assert.ErrorIs(t, err, upstream)
}

func TestOpenAIEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,-0.25],"index":0}]}`))
	}))
	defer server.Close()

	embedder := NewOpenAIEmbedder(server.URL, "test-key", "", 0)
	vector, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vector)
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAIEmbedder(server.URL, "bad", "", 0).Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOllamaEmbedder_Normalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[3,4]}`))
	}))
	defer server.Close()

	vector, err := NewOllamaEmbedder(server.URL, "nomic-embed-text", 0).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vector[0], 1e-6)
	assert.InDelta(t, 0.8, vector[1], 1e-6)
}

func TestOllamaEmbedder_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllamaEmbedder(server.URL, "missing", 0).Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
