package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// DeltaRepository puerto del libro de deltas (líneas temporales).
type DeltaRepository interface {
	Create(ctx context.Context, d *entity.Delta) error
	// ListPendingPalletIDs palets con al menos un delta sin procesar.
	ListPendingPalletIDs(ctx context.Context) ([]int64, error)
	// ListUnprocessedByPallet deltas sin procesar del palet en orden de creación (FIFO).
	ListUnprocessedByPallet(ctx context.Context, palletID int64) ([]*entity.Delta, error)
	MarkProcessed(ctx context.Context, id int64) error
	UpdateDescription(ctx context.Context, id int64, description string) error
	CountUnprocessed(ctx context.Context, palletID int64) (int, error)
	// LastNegative último delta negativo procesado del palet (nil si no hay).
	LastNegative(ctx context.Context, palletID int64) (*entity.Delta, error)
	// SumQuantityByTransfer suma absoluta de los deltas del traslado; found=false si no hay deltas.
	SumQuantityByTransfer(ctx context.Context, transferID int64) (sum decimal.Decimal, found bool, err error)
}
