package repository

import (
	"context"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// NotificationRepository persiste notificaciones con independencia de su entrega.
type NotificationRepository interface {
	Record(ctx context.Context, n *entity.NotificationRecord) error
}
