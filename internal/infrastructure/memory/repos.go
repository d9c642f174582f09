package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

var (
	_ repository.DeltaRepository        = (*DeltaRepo)(nil)
	_ repository.StockLineRepository    = (*StockLineRepo)(nil)
	_ repository.PalletRepository       = (*PalletRepo)(nil)
	_ repository.TransferRepository     = (*TransferRepo)(nil)
	_ repository.LogRepository          = (*LogRepo)(nil)
	_ repository.CycleCountRepository   = (*CycleCountRepo)(nil)
	_ repository.NotificationRepository = (*Store)(nil)
	_ repository.ArticleCatalog         = (*Store)(nil)
)

// DeltaRepo implementación en memoria de repository.DeltaRepository.
type DeltaRepo struct{ a accessor }

func (r *DeltaRepo) Create(_ context.Context, d *entity.Delta) error {
	if err := r.a.fault("deltas.create", d.PalletID); err != nil {
		return err
	}
	return r.a.with(func(s *state) error {
		d.ID = s.reserve(d.ID)
		c := *d
		s.deltas[d.ID] = &c
		return nil
	})
}

func (r *DeltaRepo) ListPendingPalletIDs(_ context.Context) ([]int64, error) {
	var ids []int64
	err := r.a.with(func(s *state) error {
		seen := make(map[int64]bool)
		for _, k := range sortedKeys(s.deltas) {
			d := s.deltas[k]
			if !d.Processed && !seen[d.PalletID] {
				seen[d.PalletID] = true
				ids = append(ids, d.PalletID)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}

func (r *DeltaRepo) ListUnprocessedByPallet(_ context.Context, palletID int64) ([]*entity.Delta, error) {
	var list []*entity.Delta
	err := r.a.with(func(s *state) error {
		for _, k := range sortedKeys(s.deltas) {
			d := s.deltas[k]
			if d.PalletID == palletID && !d.Processed {
				c := *d
				list = append(list, &c)
			}
		}
		return nil
	})
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, err
}

func (r *DeltaRepo) MarkProcessed(_ context.Context, id int64) error {
	return r.a.with(func(s *state) error {
		d, ok := s.deltas[id]
		if !ok {
			return domain.ErrNotFound
		}
		if err := r.a.fault("deltas.mark_processed", d.PalletID); err != nil {
			return err
		}
		d.Processed = true
		return nil
	})
}

func (r *DeltaRepo) UpdateDescription(_ context.Context, id int64, description string) error {
	return r.a.with(func(s *state) error {
		d, ok := s.deltas[id]
		if !ok {
			return domain.ErrNotFound
		}
		d.Description = description
		return nil
	})
}

func (r *DeltaRepo) CountUnprocessed(_ context.Context, palletID int64) (int, error) {
	n := 0
	err := r.a.with(func(s *state) error {
		for _, d := range s.deltas {
			if d.PalletID == palletID && !d.Processed {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *DeltaRepo) LastNegative(_ context.Context, palletID int64) (*entity.Delta, error) {
	var last *entity.Delta
	err := r.a.with(func(s *state) error {
		for _, k := range sortedKeys(s.deltas) {
			d := s.deltas[k]
			if d.PalletID != palletID || !d.Processed || d.Quantity.Sign() >= 0 {
				continue
			}
			if last == nil || !d.CreatedAt.Before(last.CreatedAt) {
				c := *d
				last = &c
			}
		}
		return nil
	})
	return last, err
}

func (r *DeltaRepo) SumQuantityByTransfer(_ context.Context, transferID int64) (decimal.Decimal, bool, error) {
	sum, found := decimal.Zero, false
	err := r.a.with(func(s *state) error {
		for _, d := range s.deltas {
			if d.TransferID == transferID {
				sum = sum.Add(d.Quantity.Abs())
				found = true
			}
		}
		return nil
	})
	return sum, found, err
}

// StockLineRepo implementación en memoria de repository.StockLineRepository.
type StockLineRepo struct{ a accessor }

func (r *StockLineRepo) ListByPallet(_ context.Context, palletID int64) ([]*entity.StockLine, error) {
	var list []*entity.StockLine
	err := r.a.with(func(s *state) error {
		for _, k := range sortedKeys(s.lines) {
			if l := s.lines[k]; l.PalletID == palletID {
				c := *l
				list = append(list, &c)
			}
		}
		return nil
	})
	return list, err
}

func (r *StockLineRepo) Create(_ context.Context, l *entity.StockLine) error {
	if err := r.a.fault("lines.create", l.PalletID); err != nil {
		return err
	}
	return r.a.with(func(s *state) error {
		l.ID = s.id()
		c := *l
		s.lines[l.ID] = &c
		return nil
	})
}

func (r *StockLineRepo) Update(_ context.Context, l *entity.StockLine) error {
	if err := r.a.fault("lines.update", l.PalletID); err != nil {
		return err
	}
	return r.a.with(func(s *state) error {
		if _, ok := s.lines[l.ID]; !ok {
			return domain.ErrNotFound
		}
		c := *l
		s.lines[l.ID] = &c
		return nil
	})
}

func (r *StockLineRepo) Delete(_ context.Context, id int64) error {
	return r.a.with(func(s *state) error {
		l, ok := s.lines[id]
		if !ok {
			return domain.ErrNotFound
		}
		if err := r.a.fault("lines.delete", l.PalletID); err != nil {
			return err
		}
		delete(s.lines, id)
		return nil
	})
}

func (r *StockLineRepo) SumQuantityByTransfer(_ context.Context, transferID int64) (decimal.Decimal, bool, error) {
	sum, found := decimal.Zero, false
	err := r.a.with(func(s *state) error {
		for _, l := range s.lines {
			if l.TransferID == transferID {
				sum = sum.Add(l.Quantity)
				found = true
			}
		}
		return nil
	})
	return sum, found, err
}

// PalletRepo implementación en memoria de repository.PalletRepository.
type PalletRepo struct{ a accessor }

func (r *PalletRepo) Create(_ context.Context, p *entity.Pallet) error {
	return r.a.with(func(s *state) error {
		p.ID = s.reserve(p.ID)
		if p.State == "" {
			p.State = entity.PalletStateOpen
		}
		c := *p
		s.pallets[p.ID] = &c
		return nil
	})
}

func (r *PalletRepo) GetByID(_ context.Context, id int64) (*entity.Pallet, error) {
	var out *entity.Pallet
	err := r.a.with(func(s *state) error {
		if p, ok := s.pallets[id]; ok {
			c := *p
			out = &c
		}
		return nil
	})
	return out, err
}

// GetForUpdate en memoria la transacción ya es exclusiva.
func (r *PalletRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Pallet, error) {
	return r.GetByID(ctx, id)
}

func (r *PalletRepo) Update(_ context.Context, p *entity.Pallet) error {
	if err := r.a.fault("pallets.update", p.ID); err != nil {
		return err
	}
	return r.a.with(func(s *state) error {
		if _, ok := s.pallets[p.ID]; !ok {
			return domain.ErrNotFound
		}
		c := *p
		s.pallets[p.ID] = &c
		return nil
	})
}

// TransferRepo implementación en memoria de repository.TransferRepository.
type TransferRepo struct{ a accessor }

func (r *TransferRepo) Create(_ context.Context, t *entity.Transfer) error {
	return r.a.with(func(s *state) error {
		t.ID = s.reserve(t.ID)
		c := *t
		s.transfers[t.ID] = &c
		return nil
	})
}

func (r *TransferRepo) GetByID(_ context.Context, id int64) (*entity.Transfer, error) {
	var out *entity.Transfer
	err := r.a.with(func(s *state) error {
		if t, ok := s.transfers[id]; ok {
			c := *t
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *TransferRepo) UpdateState(_ context.Context, id int64, newState string) error {
	return r.a.with(func(s *state) error {
		t, ok := s.transfers[id]
		if !ok {
			return fmt.Errorf("traslado %d: %w", id, domain.ErrNotFound)
		}
		if t.State == newState {
			return nil
		}
		if !entity.CanTransition(t.State, newState) {
			return fmt.Errorf("%w: traslado %d no admite %s → %s", domain.ErrInvalidInput, id, t.State, newState)
		}
		t.State = newState
		if newState == entity.TransferStateCompleted && t.CompletedAt == nil {
			now := time.Now()
			t.CompletedAt = &now
		}
		return nil
	})
}

func (r *TransferRepo) ListCompletedPalletTransfers(_ context.Context, palletID int64) ([]*entity.Transfer, error) {
	var list []*entity.Transfer
	err := r.a.with(func(s *state) error {
		for _, k := range sortedKeys(s.transfers) {
			t := s.transfers[k]
			if t.Type == entity.TransferTypePallet && t.State == entity.TransferStateCompleted && t.PalletID == palletID {
				c := *t
				list = append(list, &c)
			}
		}
		return nil
	})
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].CompletedAt, list[j].CompletedAt
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	return list, err
}

func (r *TransferRepo) ListActive(_ context.Context) ([]*entity.Transfer, error) {
	var list []*entity.Transfer
	err := r.a.with(func(s *state) error {
		for _, k := range sortedKeys(s.transfers) {
			t := s.transfers[k]
			if t.State == entity.TransferStateCancelled || t.UserID <= 0 {
				continue
			}
			if t.Type != entity.TransferTypeArticle && t.Type != entity.TransferTypePallet {
				continue
			}
			c := *t
			list = append(list, &c)
		}
		return nil
	})
	return list, err
}

// LogRepo implementación en memoria de repository.LogRepository.
type LogRepo struct{ a accessor }

func (r *LogRepo) Append(_ context.Context, e *entity.LogEntry) error {
	return r.a.with(func(s *state) error {
		c := *e
		s.logs = append(s.logs, &c)
		return nil
	})
}

func (r *LogRepo) ListByPallet(_ context.Context, palletID int64) ([]*entity.LogEntry, error) {
	var list []*entity.LogEntry
	err := r.a.with(func(s *state) error {
		for _, e := range s.logs {
			if e.PalletID == palletID {
				c := *e
				list = append(list, &c)
			}
		}
		return nil
	})
	return list, err
}

// CycleCountRepo implementación en memoria de repository.CycleCountRepository.
type CycleCountRepo struct{ a accessor }

func (r *CycleCountRepo) Create(_ context.Context, c *entity.CycleCount) error {
	return r.a.with(func(s *state) error {
		c.ID = s.reserve(c.ID)
		for i := range c.Lines {
			c.Lines[i].ID = s.reserve(c.Lines[i].ID)
			c.Lines[i].CountID = c.ID
		}
		cc := *c
		cc.Lines = append([]entity.CycleCountLine(nil), c.Lines...)
		s.counts[c.ID] = &cc
		return nil
	})
}

func (r *CycleCountRepo) ListCompletedUnprocessed(_ context.Context) ([]int64, error) {
	var ids []int64
	err := r.a.with(func(s *state) error {
		for _, k := range sortedKeys(s.counts) {
			c := s.counts[k]
			if c.State == entity.CycleCountStateCompleted && !c.Processed {
				ids = append(ids, c.ID)
			}
		}
		return nil
	})
	return ids, err
}

func (r *CycleCountRepo) GetForUpdate(_ context.Context, id int64) (*entity.CycleCount, error) {
	var out *entity.CycleCount
	err := r.a.with(func(s *state) error {
		if c, ok := s.counts[id]; ok {
			cc := *c
			cc.Lines = append([]entity.CycleCountLine(nil), c.Lines...)
			out = &cc
		}
		return nil
	})
	return out, err
}

func (r *CycleCountRepo) MarkProcessed(_ context.Context, id int64) error {
	return r.a.with(func(s *state) error {
		c, ok := s.counts[id]
		if !ok {
			return domain.ErrNotFound
		}
		if err := r.a.fault("counts.mark_processed", c.PalletID); err != nil {
			return err
		}
		c.Processed = true
		return nil
	})
}
