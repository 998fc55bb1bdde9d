package types

import "errors"

var (
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrNoContentExtracted = errors.New("no valid text chunks could be created from the file")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmbeddingService   = errors.New("embedding service error")
	ErrVectorStore        = errors.New("vector store error")
	ErrCompletionService  = errors.New("completion service error")
	ErrMalformedMetadata  = errors.New("malformed metadata")
)
