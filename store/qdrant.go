package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docqa/types"
)

var qdrantDistance = map[types.Metric]string{
	types.MetricCosine: "Cosine",
}

// QdrantStore talks to Qdrant over its REST API.
type QdrantStore struct {
	url    string
	apiKey string
	client *http.Client
}

func NewQdrantStore(baseURL, apiKey string, timeout time.Duration) *QdrantStore {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:    strings.TrimRight(baseURL, "/"),
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type qdrantPoint struct {
	ID      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload types.Payload `json:"payload"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload types.Payload   `json:"payload"`
}

func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return false, err
	}
	for _, c := range resp.Result.Collections {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dimensions int, metric types.Metric) error {
	distance, ok := qdrantDistance[metric]
	if !ok {
		return fmt.Errorf("unsupported metric %q", metric)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": distance,
		},
	}
	return s.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(name), body, nil)
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []types.StoredRecord) error {
	points := make([]qdrantPoint, len(records))
	for i, r := range records {
		points[i] = qdrantPoint{ID: r.ID, Vector: r.Vector, Payload: r.Payload}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(collection)+"/points?wait=true", body, nil)
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]types.SearchHit, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []qdrantScoredPoint `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/points/search", req, &resp); err != nil {
		return nil, err
	}

	hits := make([]types.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, types.SearchHit{
			Record: types.StoredRecord{
				ID:      pointID(r.ID),
				Payload: r.Payload,
			},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// pointID renders a uuid or integer point id as a string.
func pointID(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	return string(raw)
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
