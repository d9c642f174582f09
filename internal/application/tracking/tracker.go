package tracking

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// Notifier entrega una notificación ya redactada.
type Notifier interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Tracker detecta transiciones de estado de traslados entre ciclos de sondeo y lanza
// un único intento de notificación (con sus reintentos) por transición observada.
type Tracker struct {
	transfers repository.TransferRepository
	deltas    repository.DeltaRepository
	lines     repository.StockLineRepository
	states    StateStore
	notifier  Notifier
	log       zerolog.Logger
}

// NewTracker construye el tracker.
func NewTracker(
	transfers repository.TransferRepository,
	deltas repository.DeltaRepository,
	lines repository.StockLineRepository,
	states StateStore,
	notifier Notifier,
	log zerolog.Logger,
) *Tracker {
	return &Tracker{
		transfers: transfers,
		deltas:    deltas,
		lines:     lines,
		states:    states,
		notifier:  notifier,
		log:       log,
	}
}

// ScanReport resumen de un escaneo.
type ScanReport struct {
	Observed    int
	Transitions int
	Notified    int
	Failed      int
	Pruned      int
}

// ScanForTransitions compara el estado actual de los traslados activos con el último observado.
func (t *Tracker) ScanForTransitions(ctx context.Context) (ScanReport, error) {
	var report ScanReport

	active, err := t.transfers.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("listar traslados activos: %w", err)
	}
	previous, err := t.states.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("cargar estados observados: %w", err)
	}

	seen := make(map[int64]struct{}, len(active))
	for _, tr := range active {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Observed++
		seen[tr.ID] = struct{}{}

		prev, known := previous[tr.ID]
		if known && prev == tr.State {
			continue
		}
		if known && prev != "" {
			report.Transitions++
			if n, ok := Compose(t.view(ctx, tr), prev, tr.State); ok {
				if err := t.notifier.Dispatch(ctx, n); err != nil {
					report.Failed++
				} else {
					report.Notified++
				}
			}
		}
		// Se actualiza aunque no se haya notificado: cada transición se notifica una sola vez.
		if err := t.states.Save(ctx, tr.ID, tr.State); err != nil {
			t.log.Error().Err(err).Int64("transfer_id", tr.ID).Msg("guardar estado observado")
		}
	}

	var stale []int64
	for id := range previous {
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := t.states.Remove(ctx, stale...); err != nil {
			t.log.Error().Err(err).Int("count", len(stale)).Msg("purgar estados de traslados inactivos")
		} else {
			report.Pruned = len(stale)
		}
	}
	return report, nil
}

// view arma la vista del traslado con la cantidad: primero la del propio traslado, luego la
// de sus deltas y por último la de sus líneas de stock. Todo best-effort.
func (t *Tracker) view(ctx context.Context, tr *entity.Transfer) TransferView {
	v := NewTransferView(tr)
	if tr.Quantity.IsPositive() {
		v.Quantity, v.HasQuantity = tr.Quantity, true
		return v
	}
	if sum, found, err := t.deltas.SumQuantityByTransfer(ctx, tr.ID); err != nil {
		t.log.Debug().Err(err).Int64("transfer_id", tr.ID).Msg("cantidad desde deltas")
	} else if found && sum.IsPositive() {
		v.Quantity, v.HasQuantity = sum, true
		return v
	}
	if sum, found, err := t.lines.SumQuantityByTransfer(ctx, tr.ID); err != nil {
		t.log.Debug().Err(err).Int64("transfer_id", tr.ID).Msg("cantidad desde líneas")
	} else if found && sum.IsPositive() {
		v.Quantity, v.HasQuantity = sum, true
	}
	return v
}
