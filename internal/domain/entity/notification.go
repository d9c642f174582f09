package entity

import "time"

// Severidades de notificación.
const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// NotificationRecord persistencia de una notificación, independiente de su entrega.
type NotificationRecord struct {
	ID            string
	RecipientID   int64
	Title         string
	Message       string
	Severity      string
	TransferID    int64
	PreviousState string
	NewState      string
	CreatedAt     time.Time
}
