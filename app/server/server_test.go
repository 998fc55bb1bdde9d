package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"docqa/app/metrics"
	"docqa/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	got types.Document
	n   int
	err error
}

func (f *fakeIngester) Ingest(_ context.Context, doc types.Document) (int, error) {
	f.got = doc
	return f.n, f.err
}

type fakeAnswerer struct {
	question string
	answer   types.Answer
	err      error
	panics   bool
}

func (f *fakeAnswerer) Answer(_ context.Context, question string) (types.Answer, error) {
	if f.panics {
		panic("boom")
	}
	f.question = question
	return f.answer, f.err
}

func multipartUpload(t *testing.T, filename, content, metadata string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	if metadata != "" {
		require.NoError(t, w.WriteField("metadata", metadata))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func chatRequest(fields url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	app := NewApp(Deps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "docqa backend is running", decode(t, resp)["message"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", decode(t, resp)["result"])
}

func TestUpload(t *testing.T) {
	ingester := &fakeIngester{n: 4}
	app := NewApp(Deps{Ingester: ingester})

	resp, err := app.Test(multipartUpload(t, "facts.txt", "The capital of France is Paris.", `{"title":"Geo","author":"Ana"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(4), body["chunks_uploaded"])

	assert.Equal(t, "facts.txt", ingester.got.Filename)
	assert.Equal(t, "The capital of France is Paris.", string(ingester.got.Data))
	assert.Equal(t, types.Metadata{Title: "Geo", Author: "Ana", Description: types.DefaultDescription, Filename: "facts.txt"}, ingester.got.Metadata)
}

func TestUpload_MalformedMetadataIsTolerated(t *testing.T) {
	ingester := &fakeIngester{n: 1}
	app := NewApp(Deps{Ingester: ingester})

	resp, err := app.Test(multipartUpload(t, "notes.txt", "Hello there.", "{oops"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "notes.txt", ingester.got.Metadata.Title)
	assert.Equal(t, "unknown", ingester.got.Metadata.Author)
	assert.Equal(t, types.DefaultDescription+" (invalid JSON)", ingester.got.Metadata.Description)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unsupported", fmt.Errorf("%w: cannot determine file type", types.ErrUnsupportedFormat), http.StatusUnprocessableEntity},
		{"no content", types.ErrNoContentExtracted, http.StatusUnprocessableEntity},
		{"embedding", fmt.Errorf("%w: timeout", types.ErrEmbeddingService), http.StatusInternalServerError},
		{"store", fmt.Errorf("%w: unavailable", types.ErrVectorStore), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp(Deps{Ingester: &fakeIngester{err: tt.err}})
			resp, err := app.Test(multipartUpload(t, "x.bin", "data", ""))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, float64(tt.code), body["code"])
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	app := NewApp(Deps{Ingester: &fakeIngester{}})
	resp, err := app.Test(multipartUpload(t, "", "", `{"title":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChat(t *testing.T) {
	answerer := &fakeAnswerer{answer: types.Answer{
		Answer:  "Paris.",
		Sources: []types.Source{{Title: "Geo", Author: "Ana", Filename: "facts.txt"}},
	}}
	app := NewApp(Deps{Answerer: answerer})

	resp, err := app.Test(chatRequest(url.Values{"question": {"  What is the capital of France?  "}, "doc_id": {"abc"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Paris.", body["answer"])
	assert.Len(t, body["sources"], 1)
	assert.NotEmpty(t, body["timestamp"])
	assert.Equal(t, "What is the capital of France?", answerer.question)
}

func TestChat_Errors(t *testing.T) {
	t.Run("missing question", func(t *testing.T) {
		app := NewApp(Deps{Answerer: &fakeAnswerer{}})
		resp, err := app.Test(chatRequest(url.Values{"question": {"   "}}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, decode(t, resp)["errors"], "Question")
	})

	t.Run("completion failure", func(t *testing.T) {
		app := NewApp(Deps{Answerer: &fakeAnswerer{err: fmt.Errorf("%w: overloaded", types.ErrCompletionService)}})
		resp, err := app.Test(chatRequest(url.Values{"question": {"hi"}}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, decode(t, resp)["error"], "overloaded")
	})

	t.Run("panic", func(t *testing.T) {
		app := NewApp(Deps{Answerer: &fakeAnswerer{panics: true}})
		resp, err := app.Test(chatRequest(url.Values{"question": {"hi"}}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		app := NewApp(Deps{})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	app := NewApp(Deps{Metrics: m, Answerer: &fakeAnswerer{err: errors.New("x")}})

	_, err := app.Test(chatRequest(url.Values{"question": {"hi"}}))
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `docqa_http_requests_total{method="POST",route="/api/chat",status="500"} 1`)
}
