package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

var _ repository.NotificationRepository = (*NotificationRepo)(nil)

// NotificationRepo registro persistente de notificaciones.
type NotificationRepo struct {
	q Querier
}

func NewNotificationRepository(q Querier) *NotificationRepo {
	return &NotificationRepo{q: q}
}

func (r *NotificationRepo) Record(ctx context.Context, n *entity.NotificationRecord) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, title, message, severity, transfer_id,
			previous_state, new_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.RecipientID, n.Title, n.Message, n.Severity, n.TransferID,
		n.PreviousState, n.NewState, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}
