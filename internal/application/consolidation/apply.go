package consolidation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
	"github.com/jhoicas/stock-consolidator/internal/domain/stock"
)

// applyDelta aplica un delta al libro del palet. Los deltas que deben esperar
// (traslado no asentado, almacén desconocido) no se marcan como procesados.
func (e *Engine) applyDelta(ctx context.Context, r repository.Repos, b *batch, d *entity.Delta, res *PalletResult) error {
	t, err := b.transfer(ctx, r, d.TransferID)
	if err != nil {
		return fmt.Errorf("obtener traslado %d: %w", d.TransferID, err)
	}
	if t == nil {
		// Huérfano: se da por conciliado y se marca para que no retenga el palet.
		e.log.Debug().Int64("delta_id", d.ID).Int64("transfer_id", d.TransferID).Msg("delta sin traslado, se descarta")
		res.Discarded++
		return e.markProcessed(ctx, r, d, res)
	}
	if !t.IsSettled() {
		res.Waiting++
		return nil
	}

	if strings.TrimSpace(d.Description) == "" {
		if err := e.backfillDescription(ctx, r, b, d); err != nil {
			return err
		}
	}
	resolveWarehouse(d, t)

	line := stock.FindLine(b.lines, stock.KeyOfDelta(d))
	dec := stock.Decide(d, line)
	switch dec.Action {
	case stock.ActionUpdate:
		line.Quantity = dec.Quantity
		stock.RefreshLine(line, d)
		if err := r.Lines.Update(ctx, line); err != nil {
			return err
		}
		res.Updated++

	case stock.ActionInheritedOnly:
		if line != nil {
			stock.RefreshLine(line, d)
			if err := r.Lines.Update(ctx, line); err != nil {
				return err
			}
			res.Updated++
		}

	case stock.ActionDelete:
		if err := r.Lines.Delete(ctx, line.ID); err != nil {
			return err
		}
		b.removeLine(line.ID)
		res.Deleted++
		detail := fmt.Sprintf("artículo %s lote %q en %s/%s queda en %s", line.ArticleCode, line.Lot,
			line.WarehouseCode, line.LocationCode, dec.Quantity.String())
		if err := e.appendLog(ctx, r, b.palletID, entity.LogActionLineDeleted, detail, d.UserID); err != nil {
			return err
		}
		e.log.Info().Int64("pallet_id", b.palletID).Int64("line_id", line.ID).Str("article", line.ArticleCode).Msg("línea de stock eliminada")

	case stock.ActionCreate:
		nl := stock.NewLineFromDelta(d, e.now())
		if err := r.Lines.Create(ctx, nl); err != nil {
			return err
		}
		b.lines = append(b.lines, nl)
		res.Created++

	case stock.ActionMissingWarehouse:
		e.log.Warn().
			Int64("pallet_id", b.palletID).
			Int64("delta_id", d.ID).
			Int64("transfer_id", d.TransferID).
			Str("quantity", d.Quantity.String()).
			Msg("delta positivo sin almacén ni destino; queda pendiente")
		res.Waiting++
		return nil

	case stock.ActionDiscardNegative:
		e.log.Warn().
			Int64("pallet_id", b.palletID).
			Int64("delta_id", d.ID).
			Str("article", d.ArticleCode).
			Str("quantity", d.Quantity.String()).
			Str("warehouse", d.WarehouseCode).
			Str("location", d.LocationCode).
			Msg("delta negativo sin línea de stock coincidente; se descarta")
		res.Discarded++

	case stock.ActionDiscardZero:
		res.Discarded++
	}

	return e.markProcessed(ctx, r, d, res)
}

func (e *Engine) markProcessed(ctx context.Context, r repository.Repos, d *entity.Delta, res *PalletResult) error {
	if err := r.Deltas.MarkProcessed(ctx, d.ID); err != nil {
		return err
	}
	d.Processed = true
	res.Applied++
	return nil
}

// resolveWarehouse completa el almacén vacío de un delta con el destino (entradas) u
// origen (salidas) de su traslado.
func resolveWarehouse(d *entity.Delta, t *entity.Transfer) {
	if stock.NormalizeCode(d.WarehouseCode) != "" {
		return
	}
	switch d.Quantity.Sign() {
	case 1:
		d.WarehouseCode, d.LocationCode = t.DestinationWarehouse, t.DestinationLocation
	case -1:
		d.WarehouseCode, d.LocationCode = t.OriginWarehouse, t.OriginLocation
	}
}

// backfillDescription busca la descripción que falta en: líneas del mismo artículo en el palet,
// otros deltas pendientes del mismo artículo y, por último, el maestro de artículos.
// No encontrarla no es un error.
func (e *Engine) backfillDescription(ctx context.Context, r repository.Repos, b *batch, d *entity.Delta) error {
	desc := ""
	for _, l := range b.lines {
		if l.ArticleCode == d.ArticleCode && strings.TrimSpace(l.Description) != "" {
			desc = l.Description
			break
		}
	}
	if desc == "" {
		for _, o := range b.deltas {
			if o.ID != d.ID && o.ArticleCode == d.ArticleCode && strings.TrimSpace(o.Description) != "" {
				desc = o.Description
				break
			}
		}
	}
	if desc == "" && e.catalog != nil {
		found, err := e.catalog.LookupArticleDescription(ctx, d.CompanyCode, d.ArticleCode)
		if err != nil {
			e.log.Warn().Err(err).Str("article", d.ArticleCode).Msg("consultar maestro de artículos")
		}
		desc = strings.TrimSpace(found)
	}
	if desc == "" {
		e.log.Warn().Int64("delta_id", d.ID).Str("article", d.ArticleCode).Msg("no se pudo completar la descripción del delta")
		return nil
	}

	d.Description = desc
	if err := r.Deltas.UpdateDescription(ctx, d.ID, desc); err != nil {
		return fmt.Errorf("actualizar descripción: %w", err)
	}
	return nil
}

func (e *Engine) appendLog(ctx context.Context, r repository.Repos, palletID int64, action, detail string, userID int64) error {
	return r.Logs.Append(ctx, &entity.LogEntry{
		ID:        uuid.New().String(),
		PalletID:  palletID,
		Action:    action,
		Detail:    detail,
		UserID:    userID,
		CreatedAt: e.now(),
	})
}

// netQuantity suma y detecta si queda alguna línea positiva.
func netQuantity(lines []*entity.StockLine) (sum decimal.Decimal, anyPositive bool) {
	sum = decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Quantity)
		if l.Quantity.IsPositive() {
			anyPositive = true
		}
	}
	return sum, anyPositive
}
