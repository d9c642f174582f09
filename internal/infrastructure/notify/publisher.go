package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jhoicas/stock-consolidator/internal/application/tracking"
	"github.com/jhoicas/stock-consolidator/pkg/config"
)

var (
	_ tracking.Publisher = (*BreakerPublisher)(nil)
	_ tracking.Publisher = LogPublisher{}
)

// ErrCircuitOpen el transporte está marcado como caído y se rechaza sin intentarlo.
var ErrCircuitOpen = errors.New("transporte de notificaciones no disponible (circuito abierto)")

// BreakerPublisher envuelve un transporte con un circuit breaker: tras BreakerFailures fallos
// consecutivos deja de llamarlo durante BreakerTimeout.
type BreakerPublisher struct {
	next    tracking.Publisher
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerPublisher construye el envoltorio.
func NewBreakerPublisher(next tracking.Publisher, cfg config.NotifyConfig, log zerolog.Logger) *BreakerPublisher {
	failures := uint32(5)
	if cfg.BreakerFailures > 0 {
		failures = uint32(cfg.BreakerFailures)
	}
	settings := gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("cambio de estado del circuit breaker")
		},
	}
	return &BreakerPublisher{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (p *BreakerPublisher) Publish(ctx context.Context, recipientID int64, title, message, severity string) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.next.Publish(ctx, recipientID, title, message, severity)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

// State estado actual del breaker.
func (p *BreakerPublisher) State() string {
	return p.breaker.State().String()
}

// LogPublisher transporte sin Redis: solo deja constancia en el log.
type LogPublisher struct {
	Log zerolog.Logger
}

func (p LogPublisher) Publish(_ context.Context, recipientID int64, title, message, severity string) error {
	p.Log.Info().
		Int64("recipient_id", recipientID).
		Str("severity", severity).
		Str("title", title).
		Msg(message)
	return nil
}
