package adjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
	"github.com/jhoicas/stock-consolidator/internal/domain/stock"
)

// TxRunner ejecuta fn dentro de una transacción con repositorios atados a ella.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error
}

// Processor convierte los conteos cíclicos completados en deltas de ajuste. No toca las líneas
// de stock: el motor de consolidación aplica esos deltas por el camino normal.
type Processor struct {
	tx     TxRunner
	counts repository.CycleCountRepository
	log    zerolog.Logger
	now    func() time.Time
}

// Option configura el procesador.
type Option func(*Processor)

// WithClock sustituye el reloj (pruebas).
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor construye el procesador. counts se usa fuera de transacción para listar pendientes.
func NewProcessor(tx TxRunner, counts repository.CycleCountRepository, log zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{tx: tx, counts: counts, log: log, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessCompleted procesa todos los conteos completados pendientes, uno por transacción.
// Devuelve cuántos se marcaron como procesados; el fallo de un conteo no detiene al resto.
func (p *Processor) ProcessCompleted(ctx context.Context) (int, error) {
	ids, err := p.counts.ListCompletedUnprocessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("listar conteos completados: %w", err)
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		var done bool
		err := p.tx.Run(ctx, func(ctx context.Context, r repository.Repos) error {
			var err error
			done, err = p.processCount(ctx, r, id)
			return err
		})
		if err != nil {
			p.log.Error().Err(err).Int64("count_id", id).Msg("procesar conteo cíclico")
			continue
		}
		if done {
			processed++
		}
	}
	return processed, nil
}

// difference ajuste pendiente para una línea contada.
type difference struct {
	line  entity.CycleCountLine
	delta decimal.Decimal
}

func (p *Processor) processCount(ctx context.Context, r repository.Repos, id int64) (bool, error) {
	c, err := r.Counts.GetForUpdate(ctx, id)
	if err != nil {
		return false, fmt.Errorf("leer conteo: %w", err)
	}
	if c == nil || c.Processed || c.State != entity.CycleCountStateCompleted {
		return false, nil
	}
	// Las líneas solo reflejan el palet cuando no quedan deltas por consolidar; si los hay
	// (incluidos los de otro conteo de esta misma pasada) el conteo espera al siguiente tick.
	pending, err := r.Deltas.CountUnprocessed(ctx, c.PalletID)
	if err != nil {
		return false, fmt.Errorf("contar deltas pendientes del palet %d: %w", c.PalletID, err)
	}
	if pending > 0 {
		p.log.Debug().Int64("count_id", c.ID).Int64("pallet_id", c.PalletID).Int("pending", pending).
			Msg("conteo aplazado: el palet tiene deltas sin consolidar")
		return false, nil
	}

	lines, err := r.Lines.ListByPallet(ctx, c.PalletID)
	if err != nil {
		return false, fmt.Errorf("leer líneas del palet %d: %w", c.PalletID, err)
	}

	var diffs []difference
	for _, cl := range c.Lines {
		system := decimal.Zero
		if l := stock.FindLine(lines, keyOfCountLine(c, cl)); l != nil {
			system = l.Quantity
		}
		if d := cl.CountedQty.Sub(system); !d.IsZero() {
			diffs = append(diffs, difference{line: cl, delta: d})
		}
	}

	now := p.now()
	if len(diffs) > 0 {
		first := diffs[0].line
		t := &entity.Transfer{
			Type:                 entity.TransferTypeArticle,
			State:                entity.TransferStateCompleted,
			OriginWarehouse:      first.WarehouseCode,
			OriginLocation:       first.LocationCode,
			DestinationWarehouse: first.WarehouseCode,
			DestinationLocation:  first.LocationCode,
			UserID:               c.UserID,
			CompletedAt:          &now,
		}
		if len(diffs) == 1 {
			t.ArticleCode = first.ArticleCode
			t.Quantity = diffs[0].delta.Abs()
		}
		if err := r.Transfers.Create(ctx, t); err != nil {
			return false, fmt.Errorf("crear traslado de ajuste: %w", err)
		}

		for _, df := range diffs {
			d := &entity.Delta{
				PalletID:      c.PalletID,
				CompanyCode:   c.CompanyCode,
				ArticleCode:   df.line.ArticleCode,
				Quantity:      df.delta,
				Unit:          df.line.Unit,
				Lot:           df.line.Lot,
				ExpiryDate:    df.line.ExpiryDate,
				WarehouseCode: df.line.WarehouseCode,
				LocationCode:  df.line.LocationCode,
				UserID:        c.UserID,
				Description:   df.line.Description,
				Observations:  fmt.Sprintf("ajuste conteo #%d", c.ID),
				CreatedAt:     now,
				TransferID:    t.ID,
			}
			if err := r.Deltas.Create(ctx, d); err != nil {
				return false, fmt.Errorf("crear delta de ajuste: %w", err)
			}
		}
	}

	if err := r.Counts.MarkProcessed(ctx, c.ID); err != nil {
		return false, fmt.Errorf("marcar conteo procesado: %w", err)
	}
	entry := &entity.LogEntry{
		ID:        uuid.New().String(),
		PalletID:  c.PalletID,
		Action:    entity.LogActionCountAdjusted,
		Detail:    fmt.Sprintf("conteo #%d: %d diferencias", c.ID, len(diffs)),
		UserID:    c.UserID,
		CreatedAt: now,
	}
	if err := r.Logs.Append(ctx, entry); err != nil {
		return false, fmt.Errorf("registrar ajuste: %w", err)
	}

	p.log.Info().
		Int64("count_id", c.ID).
		Int64("pallet_id", c.PalletID).
		Int("differences", len(diffs)).
		Msg("conteo cíclico convertido en ajustes")
	return true, nil
}

func keyOfCountLine(c *entity.CycleCount, cl entity.CycleCountLine) stock.Key {
	return stock.KeyOfLine(&entity.StockLine{
		PalletID:      c.PalletID,
		ArticleCode:   cl.ArticleCode,
		Lot:           cl.Lot,
		ExpiryDate:    cl.ExpiryDate,
		WarehouseCode: cl.WarehouseCode,
		LocationCode:  cl.LocationCode,
	})
}
