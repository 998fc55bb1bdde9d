package api

import (
	"context"
	"log/slog"
	"time"

	"docqa/types"

	"github.com/gofiber/fiber/v2"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (types.Answer, error)
}

type RequestHandler struct {
	answerer Answerer
	logger   *slog.Logger
}

func NewRequestHandler(answerer Answerer, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestHandler{
		answerer: answerer,
		logger:   logger,
	}
}

func (h *RequestHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest("invalid form request")
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	if params.DocID != "" {
		h.logger.Debug("doc_id does not scope retrieval", "doc_id", params.DocID)
	}

	answer, err := h.answerer.Answer(c.UserContext(), params.Question)
	if err != nil {
		return err
	}

	return c.JSON(types.ChatResponse{
		Answer:    answer.Answer,
		Sources:   answer.Sources,
		Status:    "success",
		Timestamp: time.Now(),
	})
}
