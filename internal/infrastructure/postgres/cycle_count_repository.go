package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-consolidator/internal/domain"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

var _ repository.CycleCountRepository = (*CycleCountRepo)(nil)

// CycleCountRepo conteos cíclicos y sus líneas.
type CycleCountRepo struct {
	q Querier
}

// NewCycleCountRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCycleCountRepository(q Querier) *CycleCountRepo {
	return &CycleCountRepo{q: q}
}

// Create inserta la cabecera y sus líneas. Debe ir dentro de una tx para que sea atómico.
func (r *CycleCountRepo) Create(ctx context.Context, c *entity.CycleCount) error {
	if c.State == "" {
		c.State = entity.CycleCountStateOpen
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO cycle_counts (pallet_id, company_code, state, user_id, completed_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.PalletID, c.CompanyCode, c.State, c.UserID, c.CompletedAt, c.Processed,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create cycle count: %w", err)
	}
	for i := range c.Lines {
		l := &c.Lines[i]
		l.CountID = c.ID
		err := r.q.QueryRow(ctx, `
			INSERT INTO cycle_count_lines (count_id, article_code, description, unit, lot, expiry_date,
				warehouse_code, location_code, counted_qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			l.CountID, l.ArticleCode, l.Description, l.Unit, l.Lot, l.ExpiryDate,
			l.WarehouseCode, l.LocationCode, l.CountedQty,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("create cycle count line: %w", err)
		}
	}
	return nil
}

// ListCompletedUnprocessed IDs de conteos completados pendientes de convertir.
func (r *CycleCountRepo) ListCompletedUnprocessed(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id FROM cycle_counts WHERE state = 'COMPLETED' AND NOT processed
		ORDER BY completed_at NULLS FIRST, id`)
	if err != nil {
		return nil, fmt.Errorf("list completed counts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// GetForUpdate cabecera bloqueada con sus líneas.
func (r *CycleCountRepo) GetForUpdate(ctx context.Context, id int64) (*entity.CycleCount, error) {
	var c entity.CycleCount
	err := r.q.QueryRow(ctx, `
		SELECT id, pallet_id, company_code, state, user_id, completed_at, processed
		FROM cycle_counts WHERE id = $1 FOR UPDATE`, id,
	).Scan(&c.ID, &c.PalletID, &c.CompanyCode, &c.State, &c.UserID, &c.CompletedAt, &c.Processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cycle count: %w", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, count_id, article_code, description, unit, lot, expiry_date, warehouse_code,
			location_code, counted_qty
		FROM cycle_count_lines WHERE count_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list cycle count lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.CycleCountLine
		if err := rows.Scan(&l.ID, &l.CountID, &l.ArticleCode, &l.Description, &l.Unit, &l.Lot,
			&l.ExpiryDate, &l.WarehouseCode, &l.LocationCode, &l.CountedQty); err != nil {
			return nil, fmt.Errorf("scan cycle count line: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}
	return &c, rows.Err()
}

// MarkProcessed marca el conteo como convertido en ajustes.
func (r *CycleCountRepo) MarkProcessed(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE cycle_counts SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark cycle count processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conteo %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
