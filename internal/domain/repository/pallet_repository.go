package repository

import (
	"context"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// PalletRepository puerto del registro de palets.
type PalletRepository interface {
	Create(ctx context.Context, p *entity.Pallet) error
	GetByID(ctx context.Context, id int64) (*entity.Pallet, error)
	// GetForUpdate bloquea la fila del palet durante la transacción (nil si no existe).
	GetForUpdate(ctx context.Context, id int64) (*entity.Pallet, error)
	Update(ctx context.Context, p *entity.Pallet) error
}
