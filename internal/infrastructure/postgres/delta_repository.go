package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

var _ repository.DeltaRepository = (*DeltaRepo)(nil)

const deltaColumns = `id, pallet_id, company_code, article_code, quantity, unit, lot, expiry_date,
	warehouse_code, location_code, user_id, description, observations, created_at,
	transfer_id, processed, inherited`

// DeltaRepo implementación sobre PostgreSQL (usable con pool o tx).
type DeltaRepo struct {
	q Querier
}

// NewDeltaRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDeltaRepository(q Querier) *DeltaRepo {
	return &DeltaRepo{q: q}
}

// Create inserta un delta; CreatedAt vacío toma now() de la base.
func (r *DeltaRepo) Create(ctx context.Context, d *entity.Delta) error {
	query := `
		INSERT INTO stock_deltas (pallet_id, company_code, article_code, quantity, unit, lot, expiry_date,
			warehouse_code, location_code, user_id, description, observations, created_at,
			transfer_id, processed, inherited)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, now()), $14, $15, $16)
		RETURNING id, created_at`
	var createdAt any
	if !d.CreatedAt.IsZero() {
		createdAt = d.CreatedAt
	}
	err := r.q.QueryRow(ctx, query,
		d.PalletID, d.CompanyCode, d.ArticleCode, d.Quantity, d.Unit, d.Lot, d.ExpiryDate,
		d.WarehouseCode, d.LocationCode, d.UserID, d.Description, d.Observations, createdAt,
		nullID(d.TransferID), d.Processed, d.Inherited,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create delta: %w", err)
	}
	return nil
}

// ListPendingPalletIDs palets con deltas sin procesar, en orden de id.
func (r *DeltaRepo) ListPendingPalletIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT pallet_id FROM stock_deltas WHERE NOT processed ORDER BY pallet_id`)
	if err != nil {
		return nil, fmt.Errorf("list pending pallets: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ListUnprocessedByPallet deltas pendientes del palet en orden FIFO.
func (r *DeltaRepo) ListUnprocessedByPallet(ctx context.Context, palletID int64) ([]*entity.Delta, error) {
	query := `SELECT ` + deltaColumns + ` FROM stock_deltas
		WHERE pallet_id = $1 AND NOT processed
		ORDER BY created_at, id
		FOR UPDATE`
	rows, err := r.q.Query(ctx, query, palletID)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed deltas: %w", err)
	}
	defer rows.Close()
	var list []*entity.Delta
	for rows.Next() {
		d, err := scanDelta(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// MarkProcessed marca el delta como aplicado.
func (r *DeltaRepo) MarkProcessed(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE stock_deltas SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark delta processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delta %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateDescription persiste la descripción recuperada.
func (r *DeltaRepo) UpdateDescription(ctx context.Context, id int64, description string) error {
	if _, err := r.q.Exec(ctx, `UPDATE stock_deltas SET description = $2 WHERE id = $1`, id, description); err != nil {
		return fmt.Errorf("update delta description: %w", err)
	}
	return nil
}

// CountUnprocessed número de deltas pendientes del palet.
func (r *DeltaRepo) CountUnprocessed(ctx context.Context, palletID int64) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM stock_deltas WHERE pallet_id = $1 AND NOT processed`, palletID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed deltas: %w", err)
	}
	return n, nil
}

// LastNegative último delta negativo procesado del palet.
func (r *DeltaRepo) LastNegative(ctx context.Context, palletID int64) (*entity.Delta, error) {
	query := `SELECT ` + deltaColumns + ` FROM stock_deltas
		WHERE pallet_id = $1 AND processed AND quantity < 0
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	d, err := scanDelta(r.q.QueryRow(ctx, query, palletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// SumQuantityByTransfer suma absoluta de los deltas del traslado.
func (r *DeltaRepo) SumQuantityByTransfer(ctx context.Context, transferID int64) (decimal.Decimal, bool, error) {
	var sum decimal.Decimal
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(ABS(quantity)), 0), COUNT(*) FROM stock_deltas WHERE transfer_id = $1`,
		transferID,
	).Scan(&sum, &n)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("sum deltas by transfer: %w", err)
	}
	return sum, n > 0, nil
}

func scanDelta(row pgx.Row) (*entity.Delta, error) {
	var d entity.Delta
	var transferID *int64
	err := row.Scan(
		&d.ID, &d.PalletID, &d.CompanyCode, &d.ArticleCode, &d.Quantity, &d.Unit, &d.Lot, &d.ExpiryDate,
		&d.WarehouseCode, &d.LocationCode, &d.UserID, &d.Description, &d.Observations, &d.CreatedAt,
		&transferID, &d.Processed, &d.Inherited,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan delta: %w", err)
	}
	d.TransferID = fromNullID(transferID)
	return &d, nil
}
