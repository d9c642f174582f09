package consolidation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// Engine drena el libro de deltas hacia el libro durable de stock, un palet por transacción.
// Un delta se aplica como mucho una vez: el flag processed se escribe en la misma transacción
// que modifica las líneas, así que repetir el barrido es idempotente.
type Engine struct {
	tx      TxRunner
	deltas  repository.DeltaRepository // lectura fuera de tx: palets pendientes
	catalog repository.ArticleCatalog
	log     zerolog.Logger
	now     func() time.Time
}

// Option configura el motor.
type Option func(*Engine)

// WithClock sustituye el reloj (pruebas).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine construye el motor. catalog puede ser nil: entonces no se consulta el maestro.
func NewEngine(tx TxRunner, deltas repository.DeltaRepository, catalog repository.ArticleCatalog, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		tx:      tx,
		deltas:  deltas,
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PalletResult contadores de la consolidación de un palet ya confirmada.
type PalletResult struct {
	PalletID  int64
	Applied   int // deltas marcados como procesados
	Waiting   int // deltas que siguen pendientes (traslado no asentado o sin almacén)
	Created   int
	Updated   int
	Deleted   int
	Discarded int
	Relocated int
	Emptied   bool
}

// SweepReport resumen de un barrido completo.
type SweepReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Pallets   int
	Failed    int
	Applied   int
	Created   int
	Updated   int
	Deleted   int
	Relocated int
	Emptied   int
}

func (r *SweepReport) add(p PalletResult) {
	r.Applied += p.Applied
	r.Created += p.Created
	r.Updated += p.Updated
	r.Deleted += p.Deleted
	r.Relocated += p.Relocated
	if p.Emptied {
		r.Emptied++
	}
}

// Sweep consolida todos los palets con deltas pendientes. El fallo de un palet se registra
// y el barrido continúa con el siguiente; nunca devuelve error.
func (e *Engine) Sweep(ctx context.Context) (report SweepReport) {
	report.StartedAt = e.now()
	defer func() { report.Duration = e.now().Sub(report.StartedAt) }()

	ids, err := e.deltas.ListPendingPalletIDs(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("listar palets con deltas pendientes")
		return report
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res, err := e.ConsolidatePallet(ctx, id)
		report.Pallets++
		if err != nil {
			report.Failed++
			e.log.Error().Err(err).Int64("pallet_id", id).Msg("consolidación del palet revertida")
			continue
		}
		report.add(res)
	}
	return report
}

// ConsolidatePallet aplica en orden FIFO los deltas pendientes del palet, reubica líneas de
// traslados de palet completados y reevalúa si el palet quedó vacío. Todo o nada.
func (e *Engine) ConsolidatePallet(ctx context.Context, palletID int64) (PalletResult, error) {
	var res PalletResult
	err := e.tx.Run(ctx, func(ctx context.Context, r repository.Repos) error {
		res = PalletResult{PalletID: palletID}
		b, err := e.loadBatch(ctx, r, palletID)
		if err != nil {
			return err
		}
		for _, d := range b.deltas {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.applyDelta(ctx, r, b, d, &res); err != nil {
				return fmt.Errorf("aplicar delta %d: %w", d.ID, err)
			}
		}
		if err := e.relocate(ctx, r, b, &res); err != nil {
			return fmt.Errorf("reubicar líneas: %w", err)
		}
		if err := e.checkEmptied(ctx, r, b, &res); err != nil {
			return fmt.Errorf("evaluar palet vacío: %w", err)
		}
		return nil
	})
	if err != nil {
		return PalletResult{PalletID: palletID}, err
	}

	if res.Applied > 0 || res.Relocated > 0 {
		e.log.Debug().
			Int64("pallet_id", palletID).
			Int("applied", res.Applied).
			Int("created", res.Created).
			Int("updated", res.Updated).
			Int("deleted", res.Deleted).
			Int("waiting", res.Waiting).
			Msg("palet consolidado")
	}
	return res, nil
}

// batch estado de trabajo de un palet dentro de su transacción.
type batch struct {
	palletID  int64
	pallet    *entity.Pallet // nil si el palet no está registrado
	deltas    []*entity.Delta
	lines     []*entity.StockLine
	transfers map[int64]*entity.Transfer
}

func (e *Engine) loadBatch(ctx context.Context, r repository.Repos, palletID int64) (*batch, error) {
	// Bloquear primero el palet serializa a otros consolidadores del mismo palet.
	pallet, err := r.Pallets.GetForUpdate(ctx, palletID)
	if err != nil {
		return nil, fmt.Errorf("bloquear palet: %w", err)
	}
	deltas, err := r.Deltas.ListUnprocessedByPallet(ctx, palletID)
	if err != nil {
		return nil, fmt.Errorf("listar deltas: %w", err)
	}
	lines, err := r.Lines.ListByPallet(ctx, palletID)
	if err != nil {
		return nil, fmt.Errorf("listar líneas: %w", err)
	}
	return &batch{
		palletID:  palletID,
		pallet:    pallet,
		deltas:    deltas,
		lines:     lines,
		transfers: make(map[int64]*entity.Transfer),
	}, nil
}

func (b *batch) transfer(ctx context.Context, r repository.Repos, id int64) (*entity.Transfer, error) {
	if t, ok := b.transfers[id]; ok {
		return t, nil
	}
	t, err := r.Transfers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.transfers[id] = t
	return t, nil
}

func (b *batch) removeLine(id int64) {
	for i, l := range b.lines {
		if l.ID == id {
			b.lines = append(b.lines[:i], b.lines[i+1:]...)
			return
		}
	}
}
