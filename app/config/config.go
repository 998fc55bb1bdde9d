package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr    string `validate:"required"`
	LogLevel      string `validate:"oneof=debug info warn error"`
	LogFormat     string `validate:"oneof=text json"`
	UploadLimitMB int    `validate:"gt=0"`

	OpenAIAPIKey  string `validate:"required_if=EmbeddingProvider openai,required_if=LLMProvider openai"`
	OpenAIBaseURL string `validate:"required,url"`

	EmbeddingProvider    string `validate:"oneof=openai ollama"`
	EmbeddingModel       string `validate:"required"`
	EmbeddingDimensions  int    `validate:"gt=0"`
	OllamaEmbeddingURL   string `validate:"required_if=EmbeddingProvider ollama,omitempty,url"`
	OllamaEmbeddingModel string `validate:"required_if=EmbeddingProvider ollama"`

	LLMProvider    string  `validate:"oneof=openai ollama"`
	LLMModel       string  `validate:"required"`
	LLMURL         string  `validate:"required_if=LLMProvider ollama,omitempty,url"`
	LLMMaxTokens   int     `validate:"gt=0"`
	LLMTemperature float64 `validate:"gte=0,lte=2"`

	VectorStore  string `validate:"oneof=qdrant pgvector memory"`
	QdrantURL    string `validate:"required_if=VectorStore qdrant,omitempty,url"`
	QdrantAPIKey string `validate:"required_if=VectorStore qdrant"`
	PGHost       string `validate:"required_if=VectorStore pgvector"`
	PGPort       int    `validate:"gte=0,lte=65535"`
	PGUser       string `validate:"required_if=VectorStore pgvector"`
	PGPass       string
	PGDBName     string `validate:"required_if=VectorStore pgvector"`

	CollectionName   string `validate:"required,max=255"`
	ChunkSize        int    `validate:"gt=0"`
	EmbedConcurrency int    `validate:"gt=0,lte=64"`
	SearchLimit      int    `validate:"gt=0"`
	SourceLimit      int    `validate:"gt=0"`
	RequestTimeout   time.Duration
	StagingDir       string

	LoaderSourceDir  string
	LoaderArchiveDir string
	LoaderBadDir     string
	LoaderSettleTime time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}
	cfg := &Config{
		ServerAddr:    r.str("SERVER_ADDR", ":8000"),
		LogLevel:      strings.ToLower(r.str("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(r.str("LOG_FORMAT", "text")),
		UploadLimitMB: r.int("UPLOAD_LIMIT_MB", 50),

		OpenAIAPIKey:  r.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL: r.str("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		EmbeddingProvider:    strings.ToLower(r.str("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:       r.str("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions:  r.int("EMBEDDING_DIMENSIONS", 1536),
		OllamaEmbeddingURL:   r.str("OLLAMA_EMBEDDING_URL", ""),
		OllamaEmbeddingModel: r.str("OLLAMA_EMBEDDING_MODEL", ""),

		LLMProvider:    strings.ToLower(r.str("LLM_PROVIDER", "openai")),
		LLMModel:       r.str("LLM_MODEL", "gpt-4o"),
		LLMURL:         r.str("LLM_URL", ""),
		LLMMaxTokens:   r.int("LLM_MAX_TOKENS", 1000),
		LLMTemperature: r.float("LLM_TEMPERATURE", 0.3),

		VectorStore:  strings.ToLower(r.str("VECTOR_STORE", "qdrant")),
		QdrantURL:    r.str("QDRANT_URL", ""),
		QdrantAPIKey: r.str("QDRANT_API_KEY", ""),
		PGHost:       r.str("PG_HOST", ""),
		PGPort:       r.int("PG_PORT", 5432),
		PGUser:       r.str("PG_USER", ""),
		PGPass:       r.str("PG_PASS", ""),
		PGDBName:     r.str("PG_DB_NAME", ""),

		CollectionName:   r.str("COLLECTION_NAME", "sonia_documents"),
		ChunkSize:        r.int("CHUNK_SIZE", 1500),
		EmbedConcurrency: r.int("EMBED_CONCURRENCY", 4),
		SearchLimit:      r.int("SEARCH_LIMIT", 5),
		SourceLimit:      r.int("SOURCE_LIMIT", 3),
		RequestTimeout:   r.duration("REQUEST_TIMEOUT", 60*time.Second),
		StagingDir:       r.str("STAGING_DIR", os.TempDir()),

		LoaderSourceDir:  r.str("LOADER_SOURCE_DIR", "data/source"),
		LoaderArchiveDir: r.str("LOADER_ARCHIVE_DIR", "data/archive"),
		LoaderBadDir:     r.str("LOADER_BAD_DIR", "data/bad"),
		LoaderSettleTime: r.duration("LOADER_SETTLE_TIME", 5*time.Second),
	}
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", e.Field(), e.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
