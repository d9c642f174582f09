package repository

import (
	"context"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// CycleCountRepository puerto de conteos cíclicos.
type CycleCountRepository interface {
	Create(ctx context.Context, c *entity.CycleCount) error
	// ListCompletedUnprocessed IDs de conteos completados aún no convertidos en deltas.
	ListCompletedUnprocessed(ctx context.Context) ([]int64, error)
	// GetForUpdate conteo con sus líneas, bloqueado durante la transacción (nil si no existe).
	GetForUpdate(ctx context.Context, id int64) (*entity.CycleCount, error)
	MarkProcessed(ctx context.Context, id int64) error
}
