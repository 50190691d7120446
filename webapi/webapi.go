// Package webapi exposes the currency conversion services over HTTP.
// Endpoints live in sub-packages:
// - currency: exchange rate and conversion endpoints
// - common: response envelopes, problem details and request validation
package webapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/subsy/fx/pkg/app"
	"github.com/subsy/fx/webapi/common"
	currencyweb "github.com/subsy/fx/webapi/currency"
)

const healthTimeout = 5 * time.Second

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return common.ProblemDetailsJSON(c, fe.Message, err, fe.Code)
			}
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	if rl := a.Config.RateLimit; rl != nil && rl.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:          rl.MaxRequests,
			Expiration:   rl.Window,
			KeyGenerator: clientKey,
			LimitReached: func(c *fiber.Ctx) error {
				return common.ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	fiberApp.Get(
		"/",
		func(c *fiber.Ctx) error {
			return c.SendString("FX API is running! 🚀")
		},
	)
	fiberApp.Get("/health", Health(a))

	currencyweb.Routes(fiberApp, a.RatesService, a.ConversionService)
	return fiberApp
}

// Health reports whether the remote currency service answers.
// @Summary Health check
// @Tags health
// @Success 200 {object} common.Response
// @Failure 503 {object} common.ProblemDetails
// @Router /health [get]
func Health(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if err := a.CheckHealth(ctx); err != nil {
			return common.ProblemDetailsJSON(
				c,
				"Currency service unavailable",
				err,
				fiber.StatusServiceUnavailable,
			)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "ok", fiber.Map{
			"provider": a.Deps.Exchange.Name(),
		})
	}
}

// clientKey uses X-Forwarded-For when behind a proxy, then X-Real-IP,
// then the peer address.
func clientKey(c *fiber.Ctx) string {
	if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
		if i := strings.Index(forwardedFor, ","); i != -1 {
			return strings.TrimSpace(forwardedFor[:i])
		}
		return strings.TrimSpace(forwardedFor)
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.IP()
}
