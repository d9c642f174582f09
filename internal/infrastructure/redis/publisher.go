package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-consolidator/internal/application/tracking"
)

var _ tracking.Publisher = (*Publisher)(nil)

// Message carga publicada en el canal del usuario.
type Message struct {
	RecipientID int64     `json:"recipient_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"`
	SentAt      time.Time `json:"sent_at"`
}

// Publisher entrega notificaciones por pub/sub en <channel>:<recipient_id>.
type Publisher struct {
	rdb     goredis.UniversalClient
	channel string
}

func NewPublisher(rdb goredis.UniversalClient, channel string) *Publisher {
	return &Publisher{rdb: rdb, channel: channel}
}

// Channel canal de un destinatario.
func (p *Publisher) Channel(recipientID int64) string {
	return Key(p.channel, strconv.FormatInt(recipientID, 10))
}

// Publish sin suscriptores no es un error: el registro persistido queda como bandeja.
func (p *Publisher) Publish(ctx context.Context, recipientID int64, title, message, severity string) error {
	payload, err := json.Marshal(Message{
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Severity:    severity,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("serializar notificación: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.Channel(recipientID), payload).Err(); err != nil {
		return fmt.Errorf("publicar notificación: %w", err)
	}
	return nil
}
