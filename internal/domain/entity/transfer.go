package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de traslado.
const (
	TransferTypeArticle = "ARTICLE"
	TransferTypePallet  = "PALLET"
)

// Estados del traslado.
// PENDING → PENDING_ERP → {COMPLETED | ERROR_ERP}; CANCELLED desde PENDING/PENDING_ERP.
const (
	TransferStatePending    = "PENDING"
	TransferStatePendingERP = "PENDING_ERP"
	TransferStateCompleted  = "COMPLETED"
	TransferStateErrorERP   = "ERROR_ERP"
	TransferStateCancelled  = "CANCELLED"
)

// Transfer movimiento solicitado de un artículo o de un palet completo.
type Transfer struct {
	ID                   int64
	Type                 string
	State                string
	OriginWarehouse      string
	OriginLocation       string
	DestinationWarehouse string
	DestinationLocation  string
	PalletID             int64           // solo PALLET
	ArticleCode          string          // solo ARTICLE
	Quantity             decimal.Decimal // solo ARTICLE; cero si no se informó
	UserID               int64
	CompletedAt          *time.Time
}

// IsSettled indica si los deltas del traslado ya pueden consolidarse.
// PENDING_ERP se acepta: el back-office ya lo aceptó aunque el ERP no lo confirme.
func (t *Transfer) IsSettled() bool {
	return t.State == TransferStateCompleted || t.State == TransferStatePendingERP
}

// IsTerminal indica si el traslado ya no admite transiciones.
func (t *Transfer) IsTerminal() bool {
	return isTerminalState(t.State)
}

func isTerminalState(state string) bool {
	switch state {
	case TransferStateCompleted, TransferStateErrorERP, TransferStateCancelled:
		return true
	}
	return false
}

// CanTransition valida la máquina de estados del traslado.
func CanTransition(from, to string) bool {
	if isTerminalState(from) {
		return false
	}
	switch from {
	case TransferStatePending:
		return to == TransferStatePendingERP || to == TransferStateCancelled
	case TransferStatePendingERP:
		return to == TransferStateCompleted || to == TransferStateErrorERP || to == TransferStateCancelled
	}
	return false
}

var transferStates = []string{
	TransferStatePending,
	TransferStatePendingERP,
	TransferStateCompleted,
	TransferStateErrorERP,
	TransferStateCancelled,
}

// TransitionSources estados desde los que se puede llegar a to, incluido to (reescribir el
// mismo estado es un no-op).
func TransitionSources(to string) []string {
	out := []string{to}
	for _, from := range transferStates {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// IsNotifiableState indica si entrar en el estado merece notificación al usuario.
func IsNotifiableState(state string) bool {
	switch state {
	case TransferStateCompleted, TransferStatePendingERP, TransferStateErrorERP:
		return true
	}
	return false
}
