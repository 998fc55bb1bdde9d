package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"docqa/types"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ensureTimeout bounds a shared collection check, which outlives the caller
// that started it.
const ensureTimeout = 30 * time.Second

// DBStorer is the raw vector database a VectorStore delegates to.
type DBStorer interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dimensions int, metric types.Metric) error
	Upsert(ctx context.Context, collection string, records []types.StoredRecord) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]types.SearchHit, error)
	Close() error
}

// VectorStore adds lazy idempotent collection creation, id assignment and
// error classification on top of a DBStorer.
type VectorStore struct {
	db      DBStorer
	logger  *slog.Logger
	ensured sync.Map
	group   singleflight.Group
}

func NewVectorStore(db DBStorer, logger *slog.Logger) *VectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		db:     db,
		logger: logger,
	}
}

// EnsureCollection creates the collection if no collection with that name
// exists. Concurrent first calls for one name share a single check, which
// keeps running when the caller that started it gives up.
func (s *VectorStore) EnsureCollection(ctx context.Context, name string, dimensions int, metric types.Metric) error {
	if _, ok := s.ensured.Load(name); ok {
		return nil
	}
	if dimensions <= 0 {
		return fmt.Errorf("%w: invalid dimensionality %d for collection %s", types.ErrVectorStore, dimensions, name)
	}

	ch := s.group.DoChan(name, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ensureTimeout)
		defer cancel()

		exists, err := s.db.CollectionExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check collection %s: %w", name, err)
		}
		if !exists {
			if err := s.db.CreateCollection(ctx, name, dimensions, metric); err != nil {
				// another process may have won the race
				if exists, checkErr := s.db.CollectionExists(ctx, name); checkErr != nil || !exists {
					return nil, fmt.Errorf("create collection %s: %w", name, err)
				}
			} else {
				s.logger.Info("created collection", "collection", name, "dimensions", dimensions, "metric", metric)
			}
		}
		s.ensured.Store(name, struct{}{})
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: ensure collection %s: %w", types.ErrVectorStore, name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: %w", types.ErrVectorStore, res.Err)
		}
		return nil
	}
}

// Upsert writes all records in one batch, assigning ids where missing.
func (s *VectorStore) Upsert(ctx context.Context, collection string, records []types.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
	}
	if err := s.db.Upsert(ctx, collection, records); err != nil {
		return fmt.Errorf("%w: upsert %d records into %s: %w", types.ErrVectorStore, len(records), collection, err)
	}
	return nil
}

// Search returns at most k hits ordered by descending similarity. No hits is
// not an error.
func (s *VectorStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]types.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", types.ErrInvalidInput)
	}

	hits, err := s.db.Search(ctx, collection, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", types.ErrVectorStore, collection, err)
	}
	slices.SortStableFunc(hits, func(a, b types.SearchHit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *VectorStore) Close() error {
	return s.db.Close()
}
