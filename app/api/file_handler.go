package api

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"docqa/types"

	"github.com/gofiber/fiber/v2"
)

type Ingester interface {
	Ingest(ctx context.Context, doc types.Document) (int, error)
}

type FileHandler struct {
	ingester Ingester
	logger   *slog.Logger
}

func NewFileHandler(ingester Ingester, logger *slog.Logger) *FileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHandler{
		ingester: ingester,
		logger:   logger,
	}
}

// HandleUpload ingests the multipart "file" part, described by the optional
// JSON "metadata" part.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest("multipart field 'file' is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	meta, err := types.ParseMetadata(c.FormValue("metadata"), fileHeader.Filename)
	if errors.Is(err, types.ErrMalformedMetadata) {
		h.logger.Warn("ignoring malformed metadata", "filename", fileHeader.Filename, "error", err)
	}

	n, err := h.ingester.Ingest(c.UserContext(), types.Document{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Data:        data,
		Metadata:    meta,
	})
	if err != nil {
		return err
	}

	return c.JSON(types.UploadResponse{
		Status:         "success",
		ChunksUploaded: n,
	})
}
