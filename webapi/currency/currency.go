package currency

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/subsy/fx/pkg/money"
	"github.com/subsy/fx/pkg/service/conversion"
	"github.com/subsy/fx/pkg/service/rates"
	"github.com/subsy/fx/webapi/common"
)

// Routes registers the exchange rate and conversion endpoints.
func Routes(app *fiber.App, ratesSvc *rates.Service, convSvc *conversion.Service) {
	fx := app.Group("/api/fx")

	fx.Get("/rates", GetRates(ratesSvc))
	fx.Delete("/rates", InvalidateRates(ratesSvc))
	fx.Get("/convert", Convert(convSvc))
	fx.Post("/convert-bulk", ConvertBulk(convSvc))
}

// GetRates returns a Fiber handler for fetching a rate table.
// @Summary Get exchange rates
// @Description Rates relative to base, optionally limited to targets. Without a base nothing is fetched and 204 is returned.
// @Tags fx
// @Produce json
// @Param base query string false "Base currency (e.g., USD)"
// @Param targets query string false "Comma separated target currencies"
// @Success 200 {object} common.Response
// @Success 204
// @Failure 400 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Failure 502 {object} common.ProblemDetails
// @Router /api/fx/rates [get]
func GetRates(svc *rates.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := common.BindQueryAndValidate[RatesQuery](c)
		if q == nil {
			return err
		}
		base, targets, err := q.Parse()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency code", err)
		}

		snap, err := svc.GetRates(c.UserContext(), base, targets)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch exchange rates", err)
		}
		if snap == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Exchange rates fetched successfully", snap)
	}
}

// InvalidateRates drops cached rates for one key, or every key when no base
// is given.
// @Summary Invalidate cached exchange rates
// @Tags fx
// @Param base query string false "Base currency"
// @Param targets query string false "Comma separated target currencies"
// @Success 200 {object} common.Response
// @Router /api/fx/rates [delete]
func InvalidateRates(svc *rates.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := common.BindQueryAndValidate[RatesQuery](c)
		if q == nil {
			return err
		}
		base, targets, err := q.Parse()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency code", err)
		}

		if base == "" {
			err = svc.InvalidateAll(c.UserContext())
		} else {
			err = svc.Invalidate(c.UserContext(), base, targets)
		}
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to invalidate exchange rates", err)
		}
		key := "*"
		if base != "" {
			key = rates.Key(base, targets)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Exchange rates invalidated", fiber.Map{"key": key})
	}
}

// Convert returns a Fiber handler converting a single amount.
// @Summary Convert an amount
// @Description Degraded results carry the original amount with degraded=true.
// @Tags fx
// @Produce json
// @Param amount query number true "Amount"
// @Param from query string true "Source currency"
// @Param to query string true "Target currency"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Router /api/fx/convert [get]
func Convert(svc *conversion.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := common.BindQueryAndValidate[ConvertQuery](c)
		if q == nil {
			return err
		}
		amount, from, to, err := q.Parse()
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid conversion request", err)
		}

		res, err := svc.Convert(c.UserContext(), amount, from, to)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to convert amount", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, message(res.Degraded), res)
	}
}

// ConvertBulk returns a Fiber handler summing amounts in one currency.
// @Summary Convert many amounts into one total
// @Tags fx
// @Accept json
// @Produce json
// @Success 200 {object} common.Response
// @Success 204
// @Failure 400 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Router /api/fx/convert-bulk [post]
func ConvertBulk(svc *conversion.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := ParseBulkRequest(c.Body())
		if err != nil {
			status := fiber.StatusBadRequest
			if errors.Is(err, money.ErrInvalidCurrency) {
				status = fiber.StatusUnprocessableEntity
			}
			return common.ProblemDetailsJSON(c, "Invalid request body", err, status)
		}
		if err := common.Validate(req); err != nil {
			return common.ProblemDetailsJSON(c, "Validation failed", err)
		}
		to, err := money.ParseCode(req.ToCurrency)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency code", err)
		}

		res, err := svc.ConvertBulk(c.UserContext(), req.Amounts, to)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to convert amounts", err)
		}
		if res == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, message(res.Degraded), res)
	}
}

func message(degraded bool) string {
	if degraded {
		return "Conversion degraded, amounts may be unconverted"
	}
	return "Conversion successful"
}
