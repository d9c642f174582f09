package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delta (línea temporal) representa un intento de movimiento de stock sobre un palet,
// pendiente de consolidar en el libro de stock. Nunca se borra: queda como auditoría.
type Delta struct {
	ID            int64
	PalletID      int64
	CompanyCode   string
	ArticleCode   string
	Quantity      decimal.Decimal // con signo: positivo entrada, negativo salida
	Unit          string
	Lot           string
	ExpiryDate    *time.Time
	WarehouseCode string
	LocationCode  string // vacío = sin ubicar
	UserID        int64
	Description   string
	Observations  string
	CreatedAt     time.Time
	TransferID    int64
	Processed     bool
	Inherited     bool // arrastrado de una consolidación previa; no suma cantidad
}
