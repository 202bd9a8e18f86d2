// handlers/leaderboard_routes.go
package handlers

import (
	"errors"
	"time"

	"hunter-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// 🔓 Public read routes — polled by the leaderboard renderer and other
// external consumers. No user context, no mutation.
func SetupLeaderboardRoutes(app *fiber.App, ledger *services.LedgerService, leaderboard *services.LeaderboardService) {
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		rows, err := leaderboard.Render(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to render leaderboard",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"generated_at": time.Now().UTC(),
			"rows":         rows,
		})
	})

	app.Get("/hunters/:handle", func(c *fiber.Ctx) error {
		hunter, badges, err := ledger.GetHunter(c.Context(), c.Params("handle"))
		if err != nil {
			if errors.Is(err, services.ErrHunterNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "hunter not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load hunter",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"hunter": hunter,
			"badges": badges,
		})
	})

	app.Get("/hunters/:handle/awards", func(c *fiber.Ctx) error {
		handle := c.Params("handle")
		awards, err := ledger.GetAwards(c.Context(), handle)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load awards",
				"cause": err.Error(),
			})
		}
		if len(awards) == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "hunter not found",
			})
		}
		return c.JSON(fiber.Map{
			"handle": handle,
			"awards": awards,
		})
	})

	app.Get("/export/ledger", func(c *fiber.Ctx) error {
		export, err := ledger.Export(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to export ledger",
				"cause": err.Error(),
			})
		}
		return c.JSON(export)
	})
}
