package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// StockLineRepository puerto del libro durable de stock.
type StockLineRepository interface {
	ListByPallet(ctx context.Context, palletID int64) ([]*entity.StockLine, error)
	Create(ctx context.Context, l *entity.StockLine) error
	Update(ctx context.Context, l *entity.StockLine) error
	Delete(ctx context.Context, id int64) error
	// SumQuantityByTransfer suma de las líneas cuyo último escritor es el traslado.
	SumQuantityByTransfer(ctx context.Context, transferID int64) (sum decimal.Decimal, found bool, err error)
}
