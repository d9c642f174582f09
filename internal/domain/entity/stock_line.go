package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLine es la cantidad durable de un artículo/lote en un palet y ubicación concretos.
// Solo el motor de consolidación la crea, modifica o borra.
type StockLine struct {
	ID            int64
	PalletID      int64
	CompanyCode   string
	ArticleCode   string
	Description   string
	Quantity      decimal.Decimal // siempre > épsilon
	Unit          string
	Lot           string
	ExpiryDate    *time.Time
	WarehouseCode string
	LocationCode  string
	UserID        int64
	AddedAt       time.Time
	Observations  string
	TransferID    int64 // último escritor
}
