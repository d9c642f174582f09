package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

var _ repository.StockLineRepository = (*StockLineRepo)(nil)

// StockLineRepo implementación sobre PostgreSQL (usable con pool o tx).
type StockLineRepo struct {
	q Querier
}

// NewStockLineRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockLineRepository(q Querier) *StockLineRepo {
	return &StockLineRepo{q: q}
}

// ListByPallet líneas del palet bloqueadas para la transacción en curso.
func (r *StockLineRepo) ListByPallet(ctx context.Context, palletID int64) ([]*entity.StockLine, error) {
	query := `
		SELECT id, pallet_id, company_code, article_code, description, quantity, unit, lot, expiry_date,
			warehouse_code, location_code, user_id, added_at, observations, transfer_id
		FROM stock_lines WHERE pallet_id = $1
		ORDER BY id
		FOR UPDATE`
	rows, err := r.q.Query(ctx, query, palletID)
	if err != nil {
		return nil, fmt.Errorf("list stock lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockLine
	for rows.Next() {
		var l entity.StockLine
		var transferID *int64
		if err := rows.Scan(&l.ID, &l.PalletID, &l.CompanyCode, &l.ArticleCode, &l.Description, &l.Quantity,
			&l.Unit, &l.Lot, &l.ExpiryDate, &l.WarehouseCode, &l.LocationCode, &l.UserID, &l.AddedAt,
			&l.Observations, &transferID); err != nil {
			return nil, fmt.Errorf("scan stock line: %w", err)
		}
		l.TransferID = fromNullID(transferID)
		list = append(list, &l)
	}
	return list, rows.Err()
}

// Create inserta una línea.
func (r *StockLineRepo) Create(ctx context.Context, l *entity.StockLine) error {
	query := `
		INSERT INTO stock_lines (pallet_id, company_code, article_code, description, quantity, unit, lot,
			expiry_date, warehouse_code, location_code, user_id, added_at, observations, transfer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	err := r.q.QueryRow(ctx, query,
		l.PalletID, l.CompanyCode, l.ArticleCode, l.Description, l.Quantity, l.Unit, l.Lot,
		l.ExpiryDate, l.WarehouseCode, l.LocationCode, l.UserID, l.AddedAt, l.Observations, nullID(l.TransferID),
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("create stock line: %w", err)
	}
	return nil
}

// Update sobrescribe cantidad, ubicación y metadatos de la línea.
func (r *StockLineRepo) Update(ctx context.Context, l *entity.StockLine) error {
	query := `
		UPDATE stock_lines SET description = $2, quantity = $3, warehouse_code = $4, location_code = $5,
			user_id = $6, observations = $7, transfer_id = $8
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		l.ID, l.Description, l.Quantity, l.WarehouseCode, l.LocationCode, l.UserID, l.Observations, nullID(l.TransferID),
	)
	if err != nil {
		return fmt.Errorf("update stock line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock line %d: %w", l.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete elimina una línea agotada.
func (r *StockLineRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM stock_lines WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete stock line: %w", err)
	}
	return nil
}

// SumQuantityByTransfer suma de las líneas escritas por el traslado.
func (r *StockLineRepo) SumQuantityByTransfer(ctx context.Context, transferID int64) (decimal.Decimal, bool, error) {
	var sum decimal.Decimal
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0), COUNT(*) FROM stock_lines WHERE transfer_id = $1`,
		transferID,
	).Scan(&sum, &n)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("sum lines by transfer: %w", err)
	}
	return sum, n > 0, nil
}
