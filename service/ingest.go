package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"docqa/loader"
	"docqa/types"

	"golang.org/x/sync/errgroup"
)

const DefaultEmbedConcurrency = 4

type IngestorConfig struct {
	Collection       string
	ChunkSize        int
	EmbedConcurrency int
	StagingDir       string
}

// Ingestor turns one uploaded document into stored, searchable records.
type Ingestor struct {
	cfg      IngestorConfig
	chunker  *loader.Chunker
	embedder Embedder
	store    VectorStore
	observer Observer
	logger   *slog.Logger
}

func NewIngestor(cfg IngestorConfig, embedder Embedder, store VectorStore, observer Observer, logger *slog.Logger) *Ingestor {
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		cfg:      cfg,
		chunker:  loader.NewChunker(cfg.ChunkSize),
		embedder: embedder,
		store:    store,
		observer: observerOrNop(observer),
		logger:   logger,
	}
}

// Ingest extracts, chunks, embeds and stores doc, returning the number of
// records written. The staging copy is removed whatever the outcome, and
// nothing is written unless every chunk was embedded.
func (i *Ingestor) Ingest(ctx context.Context, doc types.Document) (int, error) {
	start := time.Now()
	logger := i.logger.With("filename", doc.Filename)

	declared := loader.DeclaredType(doc.Filename, doc.ContentType)
	path, err := i.stage(doc.Data, declared)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove staging file", "path", path, "error", err)
		}
	}()

	text, err := loader.ExtractFile(path, declared)
	if err != nil {
		return 0, err
	}

	var chunks []types.TextChunk
	for _, c := range i.chunker.Chunk(text) {
		if strings.TrimSpace(c) == "" {
			continue
		}
		chunks = append(chunks, types.TextChunk{Index: len(chunks), Text: c})
	}
	if len(chunks) == 0 {
		return 0, types.ErrNoContentExtracted
	}
	logger.Info("document chunked", "chunks", len(chunks), "chars", len(text))

	vectors, err := i.embedAll(ctx, chunks)
	if err != nil {
		return 0, err
	}

	records := make([]types.StoredRecord, len(chunks))
	for n, chunk := range chunks {
		records[n] = types.StoredRecord{
			Vector:  vectors[n],
			Payload: types.NewPayload(chunk, doc.Metadata),
		}
	}

	if err := i.store.EnsureCollection(ctx, i.cfg.Collection, i.embedder.Dimensions(), types.MetricCosine); err != nil {
		return 0, err
	}
	if err := i.store.Upsert(ctx, i.cfg.Collection, records); err != nil {
		return 0, err
	}

	i.observer.ChunksIngested(len(records))
	logger.Info("document ingested", "chunks", len(records), "took", time.Since(start))
	return len(records), nil
}

func (i *Ingestor) stage(data []byte, declared types.FileType) (string, error) {
	ext := declared.Extension()
	if ext == "" {
		ext = loader.Sniff(data).Extension()
	}
	f, err := os.CreateTemp(i.cfg.StagingDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return path, nil
}

// embedAll embeds chunks with bounded parallelism. Vectors keep chunk order
// and the first failure cancels the rest.
func (i *Ingestor) embedAll(ctx context.Context, chunks []types.TextChunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.EmbedConcurrency)
	for n, chunk := range chunks {
		g.Go(func() error {
			v, err := i.embedder.Embed(gctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			vectors[n] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
