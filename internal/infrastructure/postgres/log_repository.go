package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

var _ repository.LogRepository = (*LogRepo)(nil)

// LogRepo log de auditoría de palets (solo inserción).
type LogRepo struct {
	q Querier
}

// NewLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLogRepository(q Querier) *LogRepo {
	return &LogRepo{q: q}
}

// Append inserta una entrada.
func (r *LogRepo) Append(ctx context.Context, e *entity.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO pallet_logs (id, pallet_id, action, detail, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.PalletID, e.Action, e.Detail, e.UserID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append pallet log: %w", err)
	}
	return nil
}

// ListByPallet entradas del palet en orden cronológico.
func (r *LogRepo) ListByPallet(ctx context.Context, palletID int64) ([]*entity.LogEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, pallet_id, action, detail, user_id, created_at
		FROM pallet_logs WHERE pallet_id = $1 ORDER BY created_at, id`, palletID)
	if err != nil {
		return nil, fmt.Errorf("list pallet logs: %w", err)
	}
	defer rows.Close()
	var list []*entity.LogEntry
	for rows.Next() {
		var e entity.LogEntry
		if err := rows.Scan(&e.ID, &e.PalletID, &e.Action, &e.Detail, &e.UserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pallet log: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
