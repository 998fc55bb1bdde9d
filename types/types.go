package types

import (
	"time"
)

type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeDOCX    FileType = "docx"
	FileTypeText    FileType = "plain-text"
	FileTypeUnknown FileType = "unknown"
)

// Extension returns the filename suffix used for staging copies.
func (t FileType) Extension() string {
	switch t {
	case FileTypePDF:
		return ".pdf"
	case FileTypeDOCX:
		return ".docx"
	case FileTypeText:
		return ".txt"
	}
	return ""
}

type Metric string

const (
	MetricCosine Metric = "cosine"
)

// Document is one uploaded file. It lives only for the duration of an ingestion.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Metadata    Metadata
}

// Metadata is the user supplied description of a document, flattened into
// every stored record's payload.
type Metadata struct {
	Title       string `json:"title,omitempty" validate:"max=512"`
	Author      string `json:"author,omitempty" validate:"max=256"`
	Description string `json:"description,omitempty" validate:"max=4096"`
	Filename    string `json:"filename,omitempty"`
}

type TextChunk struct {
	Index int
	Text  string
}

// Payload is the non-vector part of a stored record.
type Payload struct {
	Text        string `json:"text"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`
}

func NewPayload(chunk TextChunk, meta Metadata) Payload {
	return Payload{
		Text:        chunk.Text,
		Title:       meta.Title,
		Author:      meta.Author,
		Description: meta.Description,
		Filename:    meta.Filename,
		ChunkIndex:  chunk.Index,
	}
}

type StoredRecord struct {
	ID      string
	Vector  []float32
	Payload Payload
}

type SearchHit struct {
	Record StoredRecord
	Score  float64
}

type Source struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Filename string `json:"filename"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type UploadResponse struct {
	Status         string `json:"status"`
	ChunksUploaded int    `json:"chunks_uploaded"`
}

type ChatResponse struct {
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
