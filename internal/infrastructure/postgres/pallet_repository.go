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

var _ repository.PalletRepository = (*PalletRepo)(nil)

// PalletRepo implementación sobre PostgreSQL (usable con pool o tx).
type PalletRepo struct {
	q Querier
}

// NewPalletRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPalletRepository(q Querier) *PalletRepo {
	return &PalletRepo{q: q}
}

// Create inserta un palet. Con ID > 0 se respeta el identificador (altas desde el seed).
func (r *PalletRepo) Create(ctx context.Context, p *entity.Pallet) error {
	if p.State == "" {
		p.State = entity.PalletStateOpen
	}
	var err error
	if p.ID > 0 {
		_, err = r.q.Exec(ctx, `
			INSERT INTO pallets (id, state, closed_at, closed_by, emptied_at, emptied_by)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.State, p.ClosedAt, p.ClosedBy, p.EmptiedAt, p.EmptiedBy)
		if err == nil {
			_, err = r.q.Exec(ctx, `SELECT setval(pg_get_serial_sequence('pallets', 'id'), GREATEST($1, (SELECT MAX(id) FROM pallets)))`, p.ID)
		}
	} else {
		err = r.q.QueryRow(ctx, `
			INSERT INTO pallets (state, closed_at, closed_by, emptied_at, emptied_by)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			p.State, p.ClosedAt, p.ClosedBy, p.EmptiedAt, p.EmptiedBy).Scan(&p.ID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("palet %d: %w", p.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create pallet: %w", err)
	}
	return nil
}

// GetByID obtiene un palet (nil si no existe).
func (r *PalletRepo) GetByID(ctx context.Context, id int64) (*entity.Pallet, error) {
	return r.get(ctx, `SELECT id, state, closed_at, closed_by, emptied_at, emptied_by FROM pallets WHERE id = $1`, id)
}

// GetForUpdate obtiene el palet y bloquea la fila (SELECT FOR UPDATE). Si otra transacción
// retiene la fila más allá de lock_timeout devuelve domain.ErrBusy.
func (r *PalletRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Pallet, error) {
	p, err := r.get(ctx, `SELECT id, state, closed_at, closed_by, emptied_at, emptied_by FROM pallets WHERE id = $1 FOR UPDATE`, id)
	if err != nil && isLockTimeout(err) {
		return nil, fmt.Errorf("palet %d bloqueado: %w", id, domain.ErrBusy)
	}
	return p, err
}

func (r *PalletRepo) get(ctx context.Context, query string, id int64) (*entity.Pallet, error) {
	var p entity.Pallet
	err := r.q.QueryRow(ctx, query, id).Scan(&p.ID, &p.State, &p.ClosedAt, &p.ClosedBy, &p.EmptiedAt, &p.EmptiedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pallet: %w", err)
	}
	return &p, nil
}

// Update persiste estado y sellos de cierre/vaciado.
func (r *PalletRepo) Update(ctx context.Context, p *entity.Pallet) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE pallets SET state = $2, closed_at = $3, closed_by = $4, emptied_at = $5, emptied_by = $6
		WHERE id = $1`,
		p.ID, p.State, p.ClosedAt, p.ClosedBy, p.EmptiedAt, p.EmptiedBy)
	if err != nil {
		return fmt.Errorf("update pallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("palet %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}
