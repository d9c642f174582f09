package entity

import "time"

// Acciones registradas en el log de palets.
const (
	LogActionLineDeleted   = "LINEA_ELIMINADA"
	LogActionPalletEmptied = "PALET_VACIADO"
	LogActionRelocated     = "LINEAS_REUBICADAS"
	LogActionCountAdjusted = "AJUSTE_CONTEO"
)

// LogEntry registro de auditoría (solo inserción) asociado a un palet.
type LogEntry struct {
	ID        string
	PalletID  int64
	Action    string
	Detail    string
	UserID    int64
	CreatedAt time.Time
}
