package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-consolidator/internal/domain"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// Publisher transporte de notificaciones hacia un usuario.
type Publisher interface {
	Publish(ctx context.Context, recipientID int64, title, message, severity string) error
}

// DispatcherConfig reintentos de entrega.
type DispatcherConfig struct {
	MaxAttempts int           // 3 por defecto
	Backoff     time.Duration // espera lineal: Backoff × intento
}

// Dispatcher persiste la notificación y la entrega con reintentos. Persistencia y entrega
// son independientes: el fallo de una no impide la otra.
type Dispatcher struct {
	pub     Publisher
	records repository.NotificationRepository
	cfg     DispatcherConfig
	log     zerolog.Logger
	now     func() time.Time
}

// NewDispatcher construye el despachador.
func NewDispatcher(pub Publisher, records repository.NotificationRepository, cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	return &Dispatcher{pub: pub, records: records, cfg: cfg, log: log, now: time.Now}
}

// Dispatch registra y entrega n. Devuelve error solo si la entrega agotó los intentos.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	rec := &entity.NotificationRecord{
		ID:            uuid.New().String(),
		RecipientID:   n.RecipientID,
		Title:         n.Title,
		Message:       n.Message,
		Severity:      n.Severity,
		TransferID:    n.TransferID,
		PreviousState: n.PreviousState,
		NewState:      n.NewState,
		CreatedAt:     d.now(),
	}
	if err := d.records.Record(ctx, rec); err != nil {
		d.log.Error().Err(err).Int64("transfer_id", n.TransferID).Msg("persistir notificación")
	}

	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if err = d.pub.Publish(ctx, n.RecipientID, n.Title, n.Message, n.Severity); err == nil {
			return nil
		}
		d.log.Warn().Err(err).
			Int64("transfer_id", n.TransferID).
			Int64("recipient_id", n.RecipientID).
			Int("attempt", attempt).
			Msg("entrega de notificación fallida")
		if attempt == d.cfg.MaxAttempts {
			break
		}
		if werr := wait(ctx, time.Duration(attempt)*d.cfg.Backoff); werr != nil {
			err = werr
			break
		}
	}

	d.log.Error().Err(err).
		Int64("transfer_id", n.TransferID).
		Int64("recipient_id", n.RecipientID).
		Msg("notificación no entregada tras agotar reintentos")
	return fmt.Errorf("%w: traslado %d: %v", domain.ErrPublishFailed, n.TransferID, err)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
