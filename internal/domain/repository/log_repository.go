package repository

import (
	"context"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// LogRepository puerto del log de auditoría de palets (solo inserción).
type LogRepository interface {
	Append(ctx context.Context, e *entity.LogEntry) error
	ListByPallet(ctx context.Context, palletID int64) ([]*entity.LogEntry, error)
}
