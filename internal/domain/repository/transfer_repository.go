package repository

import (
	"context"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// TransferRepository puerto del registro de traslados.
type TransferRepository interface {
	Create(ctx context.Context, t *entity.Transfer) error
	GetByID(ctx context.Context, id int64) (*entity.Transfer, error)
	UpdateState(ctx context.Context, id int64, state string) error
	// ListCompletedPalletTransfers traslados PALLET completados del palet, por fecha de fin ascendente.
	ListCompletedPalletTransfers(ctx context.Context, palletID int64) ([]*entity.Transfer, error)
	// ListActive traslados no cancelados, con usuario > 0 y tipo ARTICLE o PALLET.
	ListActive(ctx context.Context) ([]*entity.Transfer, error)
}
