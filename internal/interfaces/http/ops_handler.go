package http

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-consolidator/internal/application/consolidation"
	"github.com/jhoicas/stock-consolidator/internal/application/scheduler"
	"github.com/jhoicas/stock-consolidator/internal/domain"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// Consolidator operaciones del motor expuestas a operación.
type Consolidator interface {
	Sweep(ctx context.Context) consolidation.SweepReport
	ConsolidatePallet(ctx context.Context, palletID int64) (consolidation.PalletResult, error)
}

// BreakerState estado del transporte de notificaciones (opcional).
type BreakerState interface {
	State() string
}

// OpsHandler disparos manuales y estado del scheduler.
type OpsHandler struct {
	engine        Consolidator
	consolidation *scheduler.Loop
	adjustment    *scheduler.Loop
	iteration     *scheduler.ConsolidationIteration
	logs          repository.LogRepository
	breaker       BreakerState
}

// NewOpsHandler construye el handler. adjustment, logs y breaker pueden ser nil.
func NewOpsHandler(deps RouterDeps) *OpsHandler {
	return &OpsHandler{
		engine:        deps.Engine,
		consolidation: deps.ConsolidationLoop,
		adjustment:    deps.AdjustmentLoop,
		iteration:     deps.Iteration,
		logs:          deps.Logs,
		breaker:       deps.Breaker,
	}
}

// Status estado de los bucles y últimos informes.
func (h *OpsHandler) Status(c *fiber.Ctx) error {
	out := StatusResponse{Loops: []LoopResponse{toLoopResponse(h.consolidation.Stats())}}
	if h.adjustment != nil {
		out.Loops = append(out.Loops, toLoopResponse(h.adjustment.Stats()))
	}
	if h.iteration != nil {
		sweep, scan := h.iteration.Last()
		out.LastSweep = toSweepResponse(sweep)
		out.LastScan = toScanResponse(scan)
	}
	if h.breaker != nil {
		out.Notifier = h.breaker.State()
	}
	return c.JSON(out)
}

// Sweep lanza un barrido completo bajo la guarda del bucle de consolidación.
func (h *OpsHandler) Sweep(c *fiber.Ctx) error {
	var report consolidation.SweepReport
	err := h.consolidation.Do(c.UserContext(), func(ctx context.Context) error {
		report = h.engine.Sweep(ctx)
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}
	if h.iteration != nil {
		h.iteration.RecordSweep(report)
	}
	return c.JSON(toSweepResponse(report))
}

// ConsolidatePallet consolida un único palet bajo la misma guarda.
func (h *OpsHandler) ConsolidatePallet(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_ID", Message: "id de palet inválido"})
	}
	var result consolidation.PalletResult
	err = h.consolidation.Do(c.UserContext(), func(ctx context.Context) error {
		var err error
		result, err = h.engine.ConsolidatePallet(ctx, id)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toPalletResponse(result))
}

// ProcessAdjustments lanza una iteración del bucle de ajustes y espera su resultado.
func (h *OpsHandler) ProcessAdjustments(c *fiber.Ctx) error {
	if h.adjustment == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: "bucle de ajustes no configurado"})
	}
	if err := h.adjustment.RunOnce(c.UserContext()); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(toLoopResponse(h.adjustment.Stats()))
}

// PalletLogs log de auditoría de un palet.
func (h *OpsHandler) PalletLogs(c *fiber.Ctx) error {
	if h.logs == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: "log no disponible"})
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_ID", Message: "id de palet inválido"})
	}
	entries, err := h.logs.ListByPallet(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toLogEntryResponses(entries))
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Code: "BUSY", Message: "hay una consolidación en curso"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Code: "STORE_UNAVAILABLE", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
