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

var _ repository.TransferRepository = (*TransferRepo)(nil)

const transferColumns = `id, type, state, origin_warehouse, origin_location, destination_warehouse,
	destination_location, pallet_id, article_code, quantity, user_id, completed_at`

// TransferRepo implementación sobre PostgreSQL (usable con pool o tx).
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

// Create inserta un traslado.
func (r *TransferRepo) Create(ctx context.Context, t *entity.Transfer) error {
	if t.State == "" {
		t.State = entity.TransferStatePending
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO transfers (type, state, origin_warehouse, origin_location, destination_warehouse,
			destination_location, pallet_id, article_code, quantity, user_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		t.Type, t.State, t.OriginWarehouse, t.OriginLocation, t.DestinationWarehouse,
		t.DestinationLocation, nullID(t.PalletID), t.ArticleCode, t.Quantity, t.UserID, t.CompletedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

// GetByID obtiene un traslado (nil si no existe).
func (r *TransferRepo) GetByID(ctx context.Context, id int64) (*entity.Transfer, error) {
	t, err := scanTransfer(r.q.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// UpdateState cambia el estado si la máquina de estados lo admite; COMPLETED sella
// completed_at si no lo tenía. El origen se comprueba en el propio UPDATE.
func (r *TransferRepo) UpdateState(ctx context.Context, id int64, state string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE transfers SET state = $2,
			completed_at = CASE WHEN $2 = 'COMPLETED' THEN COALESCE(completed_at, now()) ELSE completed_at END
		WHERE id = $1 AND state = ANY($3)`, id, state, entity.TransitionSources(state))
	if err != nil {
		return fmt.Errorf("update transfer state: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = r.q.QueryRow(ctx, `SELECT state FROM transfers WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("traslado %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read transfer state: %w", err)
	}
	return fmt.Errorf("%w: traslado %d no admite %s → %s", domain.ErrInvalidInput, id, current, state)
}

// ListCompletedPalletTransfers traslados PALLET completados del palet por fecha de fin.
func (r *TransferRepo) ListCompletedPalletTransfers(ctx context.Context, palletID int64) ([]*entity.Transfer, error) {
	return r.list(ctx, `SELECT `+transferColumns+` FROM transfers
		WHERE type = 'PALLET' AND state = 'COMPLETED' AND pallet_id = $1
		ORDER BY completed_at NULLS FIRST, id`, palletID)
}

// ListActive traslados observables por el tracker.
func (r *TransferRepo) ListActive(ctx context.Context) ([]*entity.Transfer, error) {
	return r.list(ctx, `SELECT `+transferColumns+` FROM transfers
		WHERE state <> 'CANCELLED' AND user_id > 0 AND type IN ('ARTICLE', 'PALLET')
		ORDER BY id`)
}

func (r *TransferRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Transfer, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func scanTransfer(row pgx.Row) (*entity.Transfer, error) {
	var t entity.Transfer
	var palletID *int64
	err := row.Scan(&t.ID, &t.Type, &t.State, &t.OriginWarehouse, &t.OriginLocation, &t.DestinationWarehouse,
		&t.DestinationLocation, &palletID, &t.ArticleCode, &t.Quantity, &t.UserID, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	t.PalletID = fromNullID(palletID)
	return &t, nil
}
