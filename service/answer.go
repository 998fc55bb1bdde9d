package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docqa/types"
)

const (
	DefaultSearchLimit = 5
	DefaultSourceLimit = 3

	FallbackAnswer = "I don't have any relevant information to answer your question. Please upload some documents first."

	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
)

type AnswererConfig struct {
	Collection  string
	SearchLimit int
	SourceLimit int
}

// Answerer answers questions from the indexed documents.
type Answerer struct {
	cfg       AnswererConfig
	embedder  Embedder
	store     VectorStore
	generator Generator
	observer  Observer
	logger    *slog.Logger
}

func NewAnswerer(cfg AnswererConfig, embedder Embedder, store VectorStore, generator Generator, observer Observer, logger *slog.Logger) *Answerer {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.SourceLimit <= 0 {
		cfg.SourceLimit = DefaultSourceLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		cfg:       cfg,
		embedder:  embedder,
		store:     store,
		generator: generator,
		observer:  observerOrNop(observer),
		logger:    logger,
	}
}

func (a *Answerer) Answer(ctx context.Context, question string) (types.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return types.Answer{}, fmt.Errorf("%w: question is empty", types.ErrInvalidInput)
	}

	if err := a.store.EnsureCollection(ctx, a.cfg.Collection, a.embedder.Dimensions(), types.MetricCosine); err != nil {
		return types.Answer{}, err
	}

	vector, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return types.Answer{}, err
	}

	hits, err := a.store.Search(ctx, a.cfg.Collection, vector, a.cfg.SearchLimit)
	if err != nil {
		return types.Answer{}, err
	}
	if len(hits) == 0 {
		a.logger.Info("no relevant chunks found, returning fallback answer")
		a.observer.Answered(OutcomeFallback)
		return types.Answer{Answer: FallbackAnswer, Sources: []types.Source{}}, nil
	}

	texts := make([]string, len(hits))
	sources := make([]types.Source, len(hits))
	for n, hit := range hits {
		p := hit.Record.Payload
		texts[n] = p.Text
		sources[n] = types.Source{
			Title:    orUnknown(p.Title),
			Author:   orUnknown(p.Author),
			Filename: orUnknown(p.Filename),
		}
	}

	answer, err := a.generator.GenerateAnswer(ctx, question, strings.Join(texts, "\n\n"))
	if err != nil {
		return types.Answer{}, err
	}

	a.observer.Answered(OutcomeAnswered)
	a.logger.Info("question answered", "hits", len(hits), "top_score", hits[0].Score)
	return types.Answer{
		Answer:  strings.TrimSpace(answer),
		Sources: sources[:min(len(sources), a.cfg.SourceLimit)],
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return types.UnknownField
	}
	return s
}
