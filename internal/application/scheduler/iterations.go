package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-consolidator/internal/application/consolidation"
	"github.com/jhoicas/stock-consolidator/internal/application/tracking"
)

// Sweeper consolida todos los palets con deltas pendientes.
type Sweeper interface {
	Sweep(ctx context.Context) consolidation.SweepReport
}

// Scanner detecta transiciones de traslados.
type Scanner interface {
	ScanForTransitions(ctx context.Context) (tracking.ScanReport, error)
}

// AdjustmentProcessor convierte conteos completados en deltas.
type AdjustmentProcessor interface {
	ProcessCompleted(ctx context.Context) (int, error)
}

// ConsolidationIteration barrido de consolidación seguido del escaneo de transiciones.
// Guarda el último resultado de cada uno para /status.
type ConsolidationIteration struct {
	sweeper Sweeper
	scanner Scanner
	log     zerolog.Logger

	mu        sync.Mutex
	lastSweep consolidation.SweepReport
	lastScan  tracking.ScanReport
}

// NewConsolidationIteration construye la iteración.
func NewConsolidationIteration(sweeper Sweeper, scanner Scanner, log zerolog.Logger) *ConsolidationIteration {
	return &ConsolidationIteration{sweeper: sweeper, scanner: scanner, log: log}
}

// Run ejecuta una iteración. El error del escaneo se devuelve; el del barrido queda contenido en su informe.
func (c *ConsolidationIteration) Run(ctx context.Context) error {
	sweep := c.sweeper.Sweep(ctx)
	c.RecordSweep(sweep)
	if sweep.Pallets > 0 {
		c.log.Debug().
			Int("pallets", sweep.Pallets).
			Int("failed", sweep.Failed).
			Int("applied", sweep.Applied).
			Dur("duration", sweep.Duration).
			Msg("barrido de consolidación")
	}

	scan, err := c.scanner.ScanForTransitions(ctx)
	c.mu.Lock()
	c.lastScan = scan
	c.mu.Unlock()
	return err
}

// RecordSweep guarda el informe de un barrido lanzado fuera del bucle.
func (c *ConsolidationIteration) RecordSweep(r consolidation.SweepReport) {
	c.mu.Lock()
	c.lastSweep = r
	c.mu.Unlock()
}

// Last últimos informes de barrido y escaneo.
func (c *ConsolidationIteration) Last() (consolidation.SweepReport, tracking.ScanReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSweep, c.lastScan
}

// AdjustmentTask tarea del bucle de ajustes.
func AdjustmentTask(p AdjustmentProcessor, log zerolog.Logger) Task {
	return func(ctx context.Context) error {
		n, err := p.ProcessCompleted(ctx)
		if n > 0 {
			log.Info().Int("counts", n).Msg("conteos cíclicos procesados")
		}
		return err
	}
}
