// Package stock contiene las reglas puras del libro de stock por palet:
// normalización de claves, épsilon de cantidad y la decisión de cómo aplicar un delta.
package stock

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// Epsilon cantidad por debajo (o igual) de la cual una línea se considera vacía.
var Epsilon = decimal.New(1, -4)

// Key identifica una línea de stock: (palet, artículo, lote, caducidad, almacén, ubicación).
type Key struct {
	PalletID    int64
	ArticleCode string
	Lot         string
	Expiry      string // YYYY-MM-DD o vacío
	Warehouse   string
	Location    string
}

// NormalizeCode recorta y pasa a mayúsculas un código de almacén o ubicación.
func NormalizeCode(s string) string {
	// cases.Caser no es seguro entre goroutines: uno por llamada.
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// NormalizeLot recorta el lote; el lote distingue mayúsculas.
func NormalizeLot(s string) string {
	return strings.TrimSpace(s)
}

func expiryKey(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// KeyOfDelta devuelve la clave normalizada de un delta.
func KeyOfDelta(d *entity.Delta) Key {
	return Key{
		PalletID:    d.PalletID,
		ArticleCode: d.ArticleCode,
		Lot:         NormalizeLot(d.Lot),
		Expiry:      expiryKey(d.ExpiryDate),
		Warehouse:   NormalizeCode(d.WarehouseCode),
		Location:    NormalizeCode(d.LocationCode),
	}
}

// KeyOfLine devuelve la clave normalizada de una línea de stock.
func KeyOfLine(l *entity.StockLine) Key {
	return Key{
		PalletID:    l.PalletID,
		ArticleCode: l.ArticleCode,
		Lot:         NormalizeLot(l.Lot),
		Expiry:      expiryKey(l.ExpiryDate),
		Warehouse:   NormalizeCode(l.WarehouseCode),
		Location:    NormalizeCode(l.LocationCode),
	}
}

// FindLine busca en lines la que coincide con key.
func FindLine(lines []*entity.StockLine, key Key) *entity.StockLine {
	for _, l := range lines {
		if KeyOfLine(l) == key {
			return l
		}
	}
	return nil
}

// IsDepleted indica si una cantidad ya no puede persistirse en una línea.
func IsDepleted(q decimal.Decimal) bool {
	return q.LessThanOrEqual(Epsilon)
}

// Action resultado de decidir cómo aplicar un delta.
type Action int

const (
	// ActionUpdate suma el delta a la línea existente y la persiste.
	ActionUpdate Action = iota
	// ActionDelete la línea existente queda en cero o negativo: se borra.
	ActionDelete
	// ActionCreate no hay línea y el delta es positivo: se crea.
	ActionCreate
	// ActionMissingWarehouse delta positivo sin almacén: error de datos, queda pendiente.
	ActionMissingWarehouse
	// ActionDiscardNegative delta negativo sin línea que restar: se descarta con aviso.
	ActionDiscardNegative
	// ActionDiscardZero delta nulo sin línea: no-op.
	ActionDiscardZero
	// ActionInheritedOnly delta heredado: solo refresca metadatos, no mueve cantidad.
	ActionInheritedOnly
)

// String nombre legible de la acción para logs.
func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionCreate:
		return "create"
	case ActionMissingWarehouse:
		return "missing_warehouse"
	case ActionDiscardNegative:
		return "discard_negative"
	case ActionDiscardZero:
		return "discard_zero"
	case ActionInheritedOnly:
		return "inherited"
	}
	return "unknown"
}

// Decision acción a ejecutar y cantidad resultante de la línea.
type Decision struct {
	Action   Action
	Quantity decimal.Decimal
}

// Decide aplica las reglas del libro a un delta y su línea coincidente (nil si no existe).
// El almacén del delta debe venir ya resuelto (con el destino del traslado si faltaba).
func Decide(d *entity.Delta, line *entity.StockLine) Decision {
	if line != nil {
		if d.Inherited {
			return Decision{Action: ActionInheritedOnly, Quantity: line.Quantity}
		}
		qty := line.Quantity.Add(d.Quantity)
		if IsDepleted(qty) {
			return Decision{Action: ActionDelete, Quantity: qty}
		}
		return Decision{Action: ActionUpdate, Quantity: qty}
	}

	if d.Inherited {
		// Lo heredado ya se contabilizó en su consolidación original.
		return Decision{Action: ActionInheritedOnly, Quantity: decimal.Zero}
	}
	switch d.Quantity.Sign() {
	case 1:
		if NormalizeCode(d.WarehouseCode) == "" {
			return Decision{Action: ActionMissingWarehouse, Quantity: decimal.Zero}
		}
		return Decision{Action: ActionCreate, Quantity: d.Quantity}
	case -1:
		return Decision{Action: ActionDiscardNegative, Quantity: decimal.Zero}
	}
	return Decision{Action: ActionDiscardZero, Quantity: decimal.Zero}
}

// NewLineFromDelta construye la línea que crea un delta positivo sin coincidencia.
func NewLineFromDelta(d *entity.Delta, now time.Time) *entity.StockLine {
	return &entity.StockLine{
		PalletID:      d.PalletID,
		CompanyCode:   d.CompanyCode,
		ArticleCode:   d.ArticleCode,
		Description:   d.Description,
		Quantity:      d.Quantity,
		Unit:          d.Unit,
		Lot:           NormalizeLot(d.Lot),
		ExpiryDate:    d.ExpiryDate,
		WarehouseCode: NormalizeCode(d.WarehouseCode),
		LocationCode:  NormalizeCode(d.LocationCode),
		UserID:        d.UserID,
		AddedAt:       now,
		Observations:  d.Observations,
		TransferID:    d.TransferID,
	}
}

// RefreshLine copia al registro los metadatos del último delta aplicado.
func RefreshLine(l *entity.StockLine, d *entity.Delta) {
	l.UserID = d.UserID
	l.Observations = d.Observations
	l.TransferID = d.TransferID
	if strings.TrimSpace(l.Description) == "" {
		l.Description = d.Description
	}
}
