package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

type RequestObserver interface {
	ObserveRequest(route, method, status string, seconds float64)
}

// Metrics records every request under its route pattern. Handler errors are
// rendered here so the recorded status matches the response.
func Metrics(observer RequestObserver, skipPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipPrefix != "" && c.Path() == skipPrefix {
			return c.Next()
		}

		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := c.Route().Path
		if c.Response().StatusCode() == fiber.StatusNotFound && route == "/" && c.Path() != "/" {
			route = "unmatched"
		}
		observer.ObserveRequest(route, c.Method(), strconv.Itoa(c.Response().StatusCode()), time.Since(start).Seconds())
		return nil
	}
}
