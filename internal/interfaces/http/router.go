package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-consolidator/internal/application/scheduler"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AppName           string
	Engine            Consolidator
	ConsolidationLoop *scheduler.Loop
	AdjustmentLoop    *scheduler.Loop
	Iteration         *scheduler.ConsolidationIteration
	Logs              repository.LogRepository
	Breaker           BreakerState
}

// Router registra las rutas de operación.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})

	h := NewOpsHandler(deps)
	v1 := app.Group("/v1")
	v1.Get("/status", h.Status)
	v1.Post("/sweeps", h.Sweep)
	v1.Post("/adjustments", h.ProcessAdjustments)
	v1.Post("/pallets/:id/consolidate", h.ConsolidatePallet)
	v1.Get("/pallets/:id/logs", h.PalletLogs)
}
