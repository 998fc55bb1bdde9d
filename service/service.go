package service

import (
	"context"

	"docqa/types"
)

// Embedder produces fixed size vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// VectorStore is the part of store.VectorStore the pipelines depend on.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dimensions int, metric types.Metric) error
	Upsert(ctx context.Context, collection string, records []types.StoredRecord) error
	Search(ctx context.Context, collection string, vector []float32, k int) ([]types.SearchHit, error)
}

// Generator writes an answer from a question and retrieved context.
type Generator interface {
	GenerateAnswer(ctx context.Context, question, contextText string) (string, error)
}

// Observer receives pipeline counters. Nil observers are allowed.
type Observer interface {
	ChunksIngested(n int)
	Answered(outcome string)
}

type nopObserver struct{}

func (nopObserver) ChunksIngested(int) {}
func (nopObserver) Answered(string)    {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
