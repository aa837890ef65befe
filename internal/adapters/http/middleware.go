package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/melih/lighthouse-router/internal/logger"
	"github.com/rs/zerolog"
)

// RequestIDKey is the fiber locals key holding the request's log id.
const RequestIDKey = "request_id"

// RequestLogger logs one line per request. The id it assigns only lives in
// the logs; the relayed request and response are not touched.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id := uuid.NewString()
		c.Locals(RequestIDKey, id)
		rlog := logger.ForRequest(log, id, c.Method(), c.Path())

		if err := c.Next(); err != nil {
			// Run the error handler now so the logged status is the one sent.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		rlog.Info().
			Int("status", c.Response().StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("request")
		return nil
	}
}
