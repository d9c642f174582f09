package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un conteo cíclico.
const (
	CycleCountStateOpen      = "OPEN"
	CycleCountStateCompleted = "COMPLETED"
)

// CycleCount conteo físico de un palet. Al completarse, sus diferencias se convierten en deltas.
type CycleCount struct {
	ID          int64
	PalletID    int64
	CompanyCode string
	State       string
	UserID      int64
	CompletedAt *time.Time
	Processed   bool
	Lines       []CycleCountLine
}

// CycleCountLine cantidad contada para una clave de stock.
type CycleCountLine struct {
	ID            int64
	CountID       int64
	ArticleCode   string
	Description   string
	Unit          string
	Lot           string
	ExpiryDate    *time.Time
	WarehouseCode string
	LocationCode  string
	CountedQty    decimal.Decimal
}
