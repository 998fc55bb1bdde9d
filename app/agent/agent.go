package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"docqa/types"

	"github.com/pkoukk/tiktoken-go"
)

// Completer is a chat completion backend.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type TokenCounter interface {
	Count(text string) (int, error)
}

// Agent turns a question and its retrieved context into a formatted answer.
type Agent struct {
	completer Completer
	counter   TokenCounter
	logger    *slog.Logger
}

func NewAgent(completer Completer, model string, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		completer: completer,
		counter:   NewTiktokenCounter(model),
		logger:    logger,
	}
}

func (a *Agent) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	start := time.Now()
	prompt := BuildPrompt(question, contextText)

	if a.counter != nil && a.logger.Enabled(ctx, slog.LevelDebug) {
		if count, err := a.counter.Count(systemPrompt + prompt); err == nil {
			a.logger.Debug("prompt size", "tokens", count, "chars", len(systemPrompt)+len(prompt))
		} else {
			a.logger.Debug("prompt token count unavailable", "error", err)
		}
	}

	answer, err := a.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrCompletionService, err)
	}
	a.logger.Debug("completion finished", "took", time.Since(start))
	return strings.TrimSpace(answer), nil
}

// TiktokenCounter loads its encoding on first use.
type TiktokenCounter struct {
	model string
	once  sync.Once
	enc   *tiktoken.Tiktoken
	err   error
}

func NewTiktokenCounter(model string) *TiktokenCounter {
	return &TiktokenCounter{model: model}
}

func (c *TiktokenCounter) Count(text string) (int, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.EncodingForModel(c.model)
		if c.err != nil {
			// unknown model names fall back to the gpt-4 family encoding
			c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
		}
	})
	if c.err != nil {
		return 0, c.err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}
