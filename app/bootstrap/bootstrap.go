package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"docqa/app/agent"
	"docqa/app/config"
	"docqa/app/metrics"
	"docqa/model"
	"docqa/service"
	"docqa/store"
)

// App holds every long-lived component built from a Config.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Store    *store.VectorStore
	Ingestor *service.Ingestor
	Answerer *service.Answerer
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = cfg.Logger()
	}

	db, err := NewDBStorer(ctx, cfg, logger.With("component", "postgres"))
	if err != nil {
		return nil, err
	}
	vs := store.NewVectorStore(db, logger.With("component", "store"))

	embedder := model.NewEmbedder(NewEmbeddingBackend(cfg), cfg.EmbeddingDimensions, logger.With("component", "embedder"))
	generator := agent.NewAgent(NewCompleter(cfg), cfg.LLMModel, logger.With("component", "agent"))
	m := metrics.New()

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Store:   vs,
		Ingestor: service.NewIngestor(service.IngestorConfig{
			Collection:       cfg.CollectionName,
			ChunkSize:        cfg.ChunkSize,
			EmbedConcurrency: cfg.EmbedConcurrency,
			StagingDir:       cfg.StagingDir,
		}, embedder, vs, m, logger.With("component", "ingest")),
		Answerer: service.NewAnswerer(service.AnswererConfig{
			Collection:  cfg.CollectionName,
			SearchLimit: cfg.SearchLimit,
			SourceLimit: cfg.SourceLimit,
		}, embedder, vs, generator, m, logger.With("component", "answer")),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

func NewDBStorer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.DBStorer, error) {
	switch cfg.VectorStore {
	case "qdrant":
		return store.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.RequestTimeout), nil
	case "pgvector":
		connStr := store.PostgresConnString(cfg.PGHost, cfg.PGPort, cfg.PGUser, cfg.PGPass, cfg.PGDBName)
		pg, err := store.NewPostgresStore(ctx, connStr, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return pg, nil
	case "memory":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
}

func NewEmbeddingBackend(cfg *config.Config) model.EmbedderInterface {
	if cfg.EmbeddingProvider == "ollama" {
		return model.NewOllamaEmbedder(cfg.OllamaEmbeddingURL, cfg.OllamaEmbeddingModel, cfg.RequestTimeout)
	}
	return model.NewOpenAIEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.RequestTimeout)
}

func NewCompleter(cfg *config.Config) agent.Completer {
	if cfg.LLMProvider == "ollama" {
		return agent.NewOllamaCompleter(cfg.LLMURL, cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTemperature, cfg.RequestTimeout)
	}
	return agent.NewOpenAICompleter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTemperature, cfg.RequestTimeout)
}
