package consolidation

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// checkEmptied pasa el palet a Emptied cuando no quedan deltas pendientes, el neto es <= 0
// y no hay ninguna línea positiva. Un palet ya vaciado no se toca ni se vuelve a registrar.
func (e *Engine) checkEmptied(ctx context.Context, r repository.Repos, b *batch, res *PalletResult) error {
	p := b.pallet
	if p == nil || p.IsEmptied() {
		return nil
	}

	pending, err := r.Deltas.CountUnprocessed(ctx, b.palletID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}
	sum, anyPositive := netQuantity(b.lines)
	if sum.IsPositive() || anyPositive {
		return nil
	}

	var userID int64
	last, err := r.Deltas.LastNegative(ctx, b.palletID)
	if err != nil {
		return err
	}
	if last != nil {
		userID = last.UserID
	}

	if !p.MarkEmptied(userID, e.now()) {
		return nil
	}
	if err := r.Pallets.Update(ctx, p); err != nil {
		return err
	}
	detail := fmt.Sprintf("palet %d vaciado (neto %s)", b.palletID, sum.String())
	if err := e.appendLog(ctx, r, b.palletID, entity.LogActionPalletEmptied, detail, userID); err != nil {
		return err
	}
	res.Emptied = true
	e.log.Info().Int64("pallet_id", b.palletID).Int64("user_id", userID).Msg("palet vaciado")
	return nil
}
