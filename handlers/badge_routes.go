// handlers/badge_routes.go
package handlers

import (
	"strings"

	"hunter-ledger-system/models"
	"hunter-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// Dynamic badge endpoints: the same shields.io documents the publisher writes
// to disk, computed live per request. The static copies stay available under
// /badges-static (mounted in main).
func SetupBadgeRoutes(app *fiber.App, ledger *services.LedgerService, publisher *services.PublisherService) {
	app.Get("/badges/hunters/:doc", func(c *fiber.Ctx) error {
		name := strings.TrimSuffix(c.Params("doc"), ".json")

		// Doc names are slug-prefixed (alice, alice-bounties, alice-badge-first-blood)
		// and slugs may themselves contain dashes, so the owning slug is one of the
		// dash-delimited prefixes of the name. One indexed IN query; on overlap
		// (alice vs alice-smith) the longest slug owns the document.
		candidates := []string{name}
		for i := len(name) - 1; i > 0; i-- {
			if name[i] == '-' {
				candidates = append(candidates, name[:i])
			}
		}
		var hunters []models.Hunter
		if err := ledger.DB.WithContext(c.Context()).
			Where("slug IN ?", candidates).Find(&hunters).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load hunters",
				"cause": err.Error(),
			})
		}
		var match *models.Hunter
		for i := range hunters {
			if match == nil || len(hunters[i].Slug) > len(match.Slug) {
				match = &hunters[i]
			}
		}
		if match == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown badge document"})
		}

		_, badges, err := ledger.GetHunter(c.Context(), match.Handle)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load hunter",
				"cause": err.Error(),
			})
		}
		docs, err := publisher.HunterDocs(c.Context(), match, badges)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to build badge documents",
				"cause": err.Error(),
			})
		}
		doc, ok := docs[name]
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown badge document"})
		}
		c.Set("Content-Type", "application/json")
		return c.Send(services.EncodeDoc(doc))
	})

	app.Get("/badges/:doc", func(c *fiber.Ctx) error {
		name := strings.TrimSuffix(c.Params("doc"), ".json")
		docs, err := publisher.GlobalDocs(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to build badge documents",
				"cause": err.Error(),
			})
		}
		doc, ok := docs[name]
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown badge document"})
		}
		c.Set("Content-Type", "application/json")
		return c.Send(services.EncodeDoc(doc))
	})
}
