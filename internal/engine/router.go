package engine

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterDraftRoutes mounts the draft API. /me routes come before /:id.
func RegisterDraftRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	drafts := app.Group("/api/drafts", middleware...)

	drafts.Post("", h.SaveOwn)
	drafts.Get("/me", h.GetOwn)
	drafts.Get("/me/:kind", h.ListKind)
	drafts.Get("/:id", h.GetByID)
	drafts.Put("/:id", h.SaveByID)
}

// RegisterOpsRoutes mounts health and Prometheus scrape endpoints.
func RegisterOpsRoutes(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
