package tracking

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// Notification mensaje listo para persistir y entregar.
type Notification struct {
	RecipientID   int64
	Title         string
	Message       string
	Severity      string
	TransferID    int64
	PreviousState string
	NewState      string
}

// TransferView datos de contexto de un traslado para redactar su notificación.
// Solo uno de Article o Pallet viene informado según el tipo.
type TransferView struct {
	TransferID  int64
	Type        string
	UserID      int64
	Origin      string
	Destination string
	Article     *ArticleDetail
	Pallet      *PalletDetail
	Quantity    decimal.Decimal
	HasQuantity bool
}

// ArticleDetail detalle de un traslado de artículo.
type ArticleDetail struct {
	Code string
}

// PalletDetail detalle de un traslado de palet.
type PalletDetail struct {
	PalletID int64
}

// NewTransferView construye la vista tipada de un traslado (sin cantidad).
func NewTransferView(t *entity.Transfer) TransferView {
	v := TransferView{
		TransferID:  t.ID,
		Type:        t.Type,
		UserID:      t.UserID,
		Origin:      FormatLocation(t.OriginWarehouse, t.OriginLocation),
		Destination: FormatLocation(t.DestinationWarehouse, t.DestinationLocation),
	}
	switch t.Type {
	case entity.TransferTypePallet:
		v.Pallet = &PalletDetail{PalletID: t.PalletID}
	default:
		v.Article = &ArticleDetail{Code: t.ArticleCode}
	}
	return v
}

// FormatLocation "ALMACÉN/UBICACIÓN", solo el almacén o "sin ubicar".
func FormatLocation(warehouse, location string) string {
	warehouse, location = strings.TrimSpace(warehouse), strings.TrimSpace(location)
	switch {
	case warehouse == "" && location == "":
		return "sin ubicar"
	case location == "":
		return warehouse
	case warehouse == "":
		return location
	}
	return warehouse + "/" + location
}

func (v TransferView) subject() string {
	if v.Pallet != nil {
		return fmt.Sprintf("del palet %d", v.Pallet.PalletID)
	}
	code := ""
	if v.Article != nil {
		code = v.Article.Code
	}
	if v.HasQuantity {
		return fmt.Sprintf("de %s uds. del artículo %s", v.Quantity.String(), code)
	}
	return "del artículo " + code
}

// Compose redacta la notificación de la transición prev → next. ok=false si next no es notificable.
func Compose(v TransferView, prev, next string) (Notification, bool) {
	if !entity.IsNotifiableState(next) {
		return Notification{}, false
	}
	n := Notification{
		RecipientID:   v.UserID,
		TransferID:    v.TransferID,
		PreviousState: prev,
		NewState:      next,
	}
	route := fmt.Sprintf("%s → %s", v.Origin, v.Destination)
	pallet := v.Type == entity.TransferTypePallet

	switch next {
	case entity.TransferStateCompleted:
		n.Severity = entity.SeveritySuccess
		n.Title = "Traslado completado"
		if pallet {
			n.Title = "Traslado de palet completado"
		}
		n.Message = fmt.Sprintf("El traslado #%d %s (%s) se ha completado.", v.TransferID, v.subject(), route)
	case entity.TransferStatePendingERP:
		n.Severity = entity.SeverityInfo
		n.Title = "Traslado pendiente de ERP"
		n.Message = fmt.Sprintf("El traslado #%d %s (%s) fue aceptado y espera confirmación del ERP.", v.TransferID, v.subject(), route)
	case entity.TransferStateErrorERP:
		n.Severity = entity.SeverityError
		n.Title = "Error de ERP en traslado"
		if pallet {
			n.Title = "Error de ERP en traslado de palet"
		}
		n.Message = fmt.Sprintf("El ERP rechazó el traslado #%d %s (%s). Revise el traslado.", v.TransferID, v.subject(), route)
	}
	return n, true
}
