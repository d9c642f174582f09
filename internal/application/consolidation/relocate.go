package consolidation

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
	"github.com/jhoicas/stock-consolidator/internal/domain/stock"
)

// relocate mueve al destino de cada traslado PALLET completado las líneas que ese traslado
// escribió. Los traslados llegan por fecha de fin ascendente: el último destino gana.
// Si en el destino ya existe una línea con la misma clave, las cantidades se fusionan.
func (e *Engine) relocate(ctx context.Context, r repository.Repos, b *batch, res *PalletResult) error {
	transfers, err := r.Transfers.ListCompletedPalletTransfers(ctx, b.palletID)
	if err != nil {
		return err
	}
	for _, t := range transfers {
		wh := stock.NormalizeCode(t.DestinationWarehouse)
		loc := stock.NormalizeCode(t.DestinationLocation)
		if wh == "" {
			continue
		}

		moved := 0
		for _, l := range append([]*entity.StockLine(nil), b.lines...) {
			if l.TransferID != t.ID {
				continue
			}
			if stock.NormalizeCode(l.WarehouseCode) == wh && stock.NormalizeCode(l.LocationCode) == loc {
				continue
			}
			l.WarehouseCode, l.LocationCode = wh, loc
			if err := e.placeLine(ctx, r, b, l); err != nil {
				return err
			}
			moved++
		}
		if moved == 0 {
			continue
		}
		res.Relocated += moved
		detail := fmt.Sprintf("%d línea(s) a %s/%s por traslado %d", moved, wh, loc, t.ID)
		if err := e.appendLog(ctx, r, b.palletID, entity.LogActionRelocated, detail, t.UserID); err != nil {
			return err
		}
		e.log.Info().Int64("pallet_id", b.palletID).Int64("transfer_id", t.ID).Int("lines", moved).Msg("líneas reubicadas")
	}
	return nil
}

// placeLine persiste una línea reubicada, fusionándola con otra de igual clave si existe.
func (e *Engine) placeLine(ctx context.Context, r repository.Repos, b *batch, l *entity.StockLine) error {
	key := stock.KeyOfLine(l)
	for _, other := range b.lines {
		if other.ID == l.ID || stock.KeyOfLine(other) != key {
			continue
		}
		other.Quantity = other.Quantity.Add(l.Quantity)
		other.TransferID = l.TransferID
		other.UserID = l.UserID
		if err := r.Lines.Update(ctx, other); err != nil {
			return err
		}
		if err := r.Lines.Delete(ctx, l.ID); err != nil {
			return err
		}
		b.removeLine(l.ID)
		return nil
	}
	return r.Lines.Update(ctx, l)
}
