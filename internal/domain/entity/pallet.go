package entity

import "time"

// Estados del ciclo de vida de un palet (solo avanzan: Open → Closed → Emptied).
const (
	PalletStateOpen    = "OPEN"
	PalletStateClosed  = "CLOSED"
	PalletStateEmptied = "EMPTIED"
)

// Pallet contenedor físico/lógico de líneas de stock.
type Pallet struct {
	ID        int64
	State     string
	ClosedAt  *time.Time
	ClosedBy  int64
	EmptiedAt *time.Time
	EmptiedBy int64
}

// IsEmptied indica si el palet ya alcanzó su estado terminal.
func (p *Pallet) IsEmptied() bool {
	return p.State == PalletStateEmptied
}

// MarkEmptied lleva el palet a Emptied sellando cierre y vaciado. Devuelve false si ya lo estaba.
func (p *Pallet) MarkEmptied(userID int64, at time.Time) bool {
	if p.IsEmptied() {
		return false
	}
	if p.ClosedAt == nil {
		p.ClosedAt = &at
		p.ClosedBy = userID
	}
	p.EmptiedAt = &at
	p.EmptiedBy = userID
	p.State = PalletStateEmptied
	return true
}
