package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docqa/types"
)

type DocumentIngester interface {
	Ingest(ctx context.Context, doc types.Document) (int, error)
}

type WatcherConfig struct {
	SourceDir    string
	ArchiveDir   string
	BadDir       string
	PollInterval time.Duration
	// SettleTime is how long a file must sit unchanged before it is ingested.
	SettleTime time.Duration
}

// Watcher ingests files dropped into a source directory and then moves them
// to a dated archive directory, or to the bad directory when ingestion fails.
type Watcher struct {
	cfg      WatcherConfig
	ingester DocumentIngester
	logger   *slog.Logger

	mu         sync.Mutex
	firstSeen  map[string]fileState
	processing map[string]bool
}

type fileState struct {
	seen    time.Time
	size    int64
	modTime time.Time
}

func NewWatcher(cfg WatcherConfig, ingester DocumentIngester, logger *slog.Logger) (*Watcher, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir} {
		if dir == "" {
			return nil, errors.New("source, archive and bad directories are required")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Watcher{
		cfg:        cfg,
		ingester:   ingester,
		logger:     logger,
		firstSeen:  make(map[string]fileState),
		processing: make(map[string]bool),
	}, nil
}

// Run blocks until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		w.watch(ctx, fileChan)
	}()
	go func() {
		defer wg.Done()
		w.process(ctx, fileChan)
	}()

	w.logger.Info("watching folder", "dir", w.cfg.SourceDir)
	wg.Wait()
	w.logger.Info("watcher stopped")
}

func (w *Watcher) watch(ctx context.Context, fileChan chan<- string) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.Scan() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Scan returns the files that have settled since the previous scans and
// marks them as being processed.
func (w *Watcher) Scan() []string {
	entries, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		w.logger.Error("error while reading source directory", "dir", w.cfg.SourceDir, "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	current := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(w.cfg.SourceDir, entry.Name())
		current[path] = true
		if w.processing[path] {
			continue
		}

		state, ok := w.firstSeen[path]
		if !ok || state.size != info.Size() || !state.modTime.Equal(info.ModTime()) {
			// new or still being written
			w.firstSeen[path] = fileState{seen: time.Now(), size: info.Size(), modTime: info.ModTime()}
			continue
		}
		if time.Since(state.seen) >= w.cfg.SettleTime {
			w.processing[path] = true
			ready = append(ready, path)
		}
	}

	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
	return ready
}

func (w *Watcher) process(ctx context.Context, fileChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-fileChan:
			if !ok {
				return
			}
			w.ProcessFile(ctx, path)
		}
	}
}

// ProcessFile ingests one file and moves it out of the source directory.
// A canceled context leaves the file in place for the next run.
func (w *Watcher) ProcessFile(ctx context.Context, path string) {
	defer func() {
		w.mu.Lock()
		delete(w.processing, path)
		delete(w.firstSeen, path)
		w.mu.Unlock()
	}()

	n, err := w.ingestFile(ctx, path)
	if ctx.Err() != nil {
		w.logger.Info("file processing interrupted", "path", path)
		return
	}

	destDir := w.cfg.ArchiveDir
	if err != nil {
		w.logger.Error("ingestion failed", "path", path, "error", err)
		destDir = w.cfg.BadDir
	} else {
		w.logger.Info("file ingested", "path", path, "chunks", n)
	}

	dest, err := MoveToArchive(path, destDir, time.Now())
	if err != nil {
		w.logger.Error("error moving file", "path", path, "error", err)
		return
	}
	w.logger.Debug("file moved", "from", path, "to", dest)
}

func (w *Watcher) ingestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	name := filepath.Base(path)
	meta := types.Metadata{
		Title:       TitleFromFilename(name),
		Author:      types.DefaultAuthor,
		Description: types.DefaultDescription,
		Filename:    name,
	}
	return w.ingester.Ingest(ctx, types.Document{
		Filename:    name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Data:        data,
		Metadata:    meta,
	})
}

// TitleFromFilename strips the extension and turns '_' and '-' into spaces.
func TitleFromFilename(name string) string {
	title := strings.TrimSuffix(name, filepath.Ext(name))
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	if title = strings.TrimSpace(title); title == "" {
		return name
	}
	return title
}

// MoveToArchive moves path into dir/<YYYY-MM-DD>/, adding a numeric suffix
// when the name is already taken.
func MoveToArchive(path, dir string, now time.Time) (string, error) {
	destDir := filepath.Join(dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	destPath := filepath.Join(destDir, base)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); errors.Is(err, os.ErrNotExist) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}

	if err := os.Rename(path, destPath); err == nil {
		return destPath, nil
	}
	// rename fails across filesystems
	if err := copyFile(path, destPath); err != nil {
		return "", err
	}
	return destPath, os.Remove(path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
