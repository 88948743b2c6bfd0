package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/service"
)

func Register(app *fiber.App, svcs *service.Services) {
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	g := app.Group("/")
	g.Get("errors", func(c *fiber.Ctx) error {
		offset, limit := c.QueryInt("offset", 0), c.QueryInt("limit", service.DefaultErrorPage)
		if offset < 0 || limit < 0 {
			return sendError(c, NewAPIError(fiber.StatusBadRequest, "paging", "", ""), "paging")
		}

		var (
			items []any
			err   error
		)
		if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
			items, err = svcs.Errors.Between(c.UserContext(), from, to, offset, limit)
		} else {
			items, err = svcs.Errors.Latest(c.UserContext(), offset, limit)
		}
		if err != nil {
			return sendError(c, err, "error")
		}
		return c.JSON(items)
	})
	g.Get("errors/:id", func(c *fiber.Ctx) error {
		doc, err := svcs.Errors.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return sendError(c, err, "error")
		}
		return c.JSON(doc)
	})
	g.Get("statistics", func(c *fiber.Ctx) error {
		rep, err := svcs.Statistics.Run(c.UserContext(), c.Query("type", service.StatTotal))
		if err != nil {
			return sendError(c, err, "statistics")
		}
		return c.JSON(rep)
	})
	g.Get("statistics/units", func(c *fiber.Ctx) error {
		var keys []any
		if err := json.Unmarshal([]byte(c.Query("keys")), &keys); err != nil || len(keys) == 0 {
			return sendError(c, NewAPIError(fiber.StatusBadRequest, "keys", "keys must be a non-empty JSON array", ""), "keys")
		}
		rows, err := svcs.Statistics.ByKeys(c.UserContext(), keys)
		if err != nil {
			return sendError(c, err, "statistics")
		}
		return c.JSON(rows)
	})
}
