package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docqa/types"
)

// MaxEmbeddingChars is the input budget of the embedding service. Longer text
// is cut silently.
const MaxEmbeddingChars = 8000

// EmbedderInterface is implemented by the remote embedding backends.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder validates and truncates text before handing it to a backend.
type Embedder struct {
	backend    EmbedderInterface
	dimensions int
	logger     *slog.Logger
}

func NewEmbedder(backend EmbedderInterface, dimensions int, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		backend:    backend,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Dimensions is the vector size collections must be created with.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: text for embedding is empty", types.ErrInvalidInput)
	}
	cleaned = truncate(cleaned, MaxEmbeddingChars)

	vector, err := e.backend.Embed(ctx, cleaned)
	if err != nil {
		e.logger.Error("embedding failed", "preview", truncate(cleaned, 100), "error", err)
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingService, err)
	}
	return vector, nil
}

func truncate(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
