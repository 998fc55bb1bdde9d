package api

import (
	"errors"
	"log/slog"

	"docqa/types"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error returned by a handler as JSON.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var (
			apiErr   Error
			valErr   ValidationError
			fiberErr *fiber.Error
		)
		switch {
		case errors.As(err, &valErr):
			return c.Status(valErr.Status).JSON(valErr)
		case errors.As(err, &apiErr):
		case errors.As(err, &fiberErr):
			apiErr = NewError(fiberErr.Code, fiberErr.Message)
		default:
			apiErr = NewError(statusFor(err), err.Error())
		}

		if apiErr.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "code", apiErr.Code, "error", apiErr.Message)
		} else {
			logger.Info("request rejected", "method", c.Method(), "path", c.Path(), "code", apiErr.Code, "error", apiErr.Message)
		}
		return c.Status(apiErr.Code).JSON(apiErr)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnsupportedFormat), errors.Is(err, types.ErrNoContentExtracted):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, types.ErrInvalidInput):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest(msg string) Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: msg,
	}
}
