// handlers/award_routes.go
package handlers

import (
	"errors"

	"hunter-ledger-system/middleware"
	"hunter-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// Republisher is the slice of the publish worker the handlers need.
type Republisher interface {
	Enqueue(handle string)
	EnqueueAll()
}

func SetupAwardRoutes(app *fiber.App, ledger *services.LedgerService, republisher Republisher) {
	// 🔐 Mutating routes — only the trigger collaborator (service token) may append.
	// Scoped to /events and /admin so the public read routes stay open.
	events := app.Group("/events", middleware.ServiceAuthMiddleware())
	admin := app.Group("/admin", middleware.ServiceAuthMiddleware())

	events.Post("/award", func(c *fiber.Ctx) error {
		var ev services.AwardEvent
		if err := c.BodyParser(&ev); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		hunter, award, err := ledger.Append(c.Context(), ev)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrDuplicateEvent):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "duplicate event",
					"cause": err.Error(),
				})
			case errors.Is(err, services.ErrUnknownActionKind):
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error": "unknown action kind",
					"cause": err.Error(),
				})
			case errors.Is(err, services.ErrInvalidEvent):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid award event",
					"cause": err.Error(),
				})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to append award",
					"cause": err.Error(),
				})
			}
		}

		republisher.Enqueue(hunter.Handle)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"award":    award,
			"hunter":   hunter,
			"degraded": award.Degraded,
		})
	})

	events.Post("/backfill", func(c *fiber.Ctx) error {
		var req struct {
			Events []services.AwardEvent `json:"events"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		report, err := ledger.Backfill(c.Context(), req.Events)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "backfill failed",
				"cause": err.Error(),
			})
		}

		for _, handle := range report.Hunters {
			republisher.Enqueue(handle)
		}
		return c.JSON(report)
	})

	admin.Post("/recompute", func(c *fiber.Ctx) error {
		report, err := ledger.RecomputeAll(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "recompute failed",
				"cause": err.Error(),
			})
		}
		republisher.EnqueueAll()
		return c.JSON(report)
	})
}
