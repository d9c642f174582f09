package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/jhoicas/stock-consolidator/internal/domain"
)

// Task una iteración de un bucle.
type Task func(ctx context.Context) error

// Locker exclusión entre instancias. TryLock no bloquea: acquired=false si otra instancia lo tiene.
// held se cancela si el lock se pierde antes de llamar a unlock; la iteración corre bajo held.
type Locker interface {
	TryLock(ctx context.Context) (held context.Context, unlock func(), acquired bool, err error)
}

// Stats contadores de un bucle.
type Stats struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	Runs         int64         `json:"runs"`
	Skipped      int64         `json:"skipped"`
	Failures     int64         `json:"failures"`
	Running      bool          `json:"running"`
	LastStarted  time.Time     `json:"last_started"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

// Loop ejecuta una tarea cada intervalo sin solapar iteraciones: si la anterior sigue en curso,
// el tick se descarta y se espera al siguiente.
type Loop struct {
	name     string
	interval time.Duration
	task     Task
	locker   Locker
	log      zerolog.Logger
	guard    *semaphore.Weighted

	mu    sync.Mutex
	stats Stats
}

// Option configura un bucle.
type Option func(*Loop)

// WithLocker añade un lock distribuido alrededor de cada iteración.
func WithLocker(l Locker) Option {
	return func(loop *Loop) { loop.locker = l }
}

// NewLoop construye un bucle. interval debe ser positivo.
func NewLoop(name string, interval time.Duration, task Task, log zerolog.Logger, opts ...Option) *Loop {
	l := &Loop{
		name:     name,
		interval: interval,
		task:     task,
		log:      log.With().Str("loop", name).Logger(),
		guard:    semaphore.NewWeighted(1),
		stats:    Stats{Name: name, Interval: interval},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name nombre del bucle.
func (l *Loop) Name() string { return l.name }

// Run bloquea hasta que ctx se cancele. Una iteración en curso termina antes de volver.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return fmt.Errorf("%w: intervalo del bucle %s debe ser positivo", domain.ErrInvalidInput, l.name)
	}
	l.log.Info().Dur("interval", l.interval).Msg("bucle iniciado")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("bucle detenido")
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			continue
		}
		l.TryRun(ctx)
	}
}

// TryRun ejecuta una iteración si no hay otra en curso. false si se descartó.
func (l *Loop) TryRun(ctx context.Context) bool {
	return !errors.Is(l.RunOnce(ctx), domain.ErrBusy)
}

// RunOnce ejecuta la tarea del bucle fuera de su ritmo y devuelve su resultado.
func (l *Loop) RunOnce(ctx context.Context) error {
	return l.Do(ctx, l.task)
}

// Do ejecuta fn bajo la misma guarda que las iteraciones del bucle. Devuelve domain.ErrBusy
// si hay una iteración en curso o si otra instancia tiene el lock.
func (l *Loop) Do(ctx context.Context, fn Task) error {
	if !l.guard.TryAcquire(1) {
		l.skip()
		return domain.ErrBusy
	}
	defer l.guard.Release(1)

	if l.locker != nil {
		held, unlock, acquired, err := l.locker.TryLock(ctx)
		if err != nil {
			l.log.Warn().Err(err).Msg("lock distribuido no disponible")
			l.finish(time.Now(), err)
			return err
		}
		if !acquired {
			l.log.Debug().Msg("otra instancia tiene el lock")
			l.skip()
			return domain.ErrBusy
		}
		defer unlock()
		ctx = held
	}

	start := time.Now()
	l.mu.Lock()
	l.stats.Running = true
	l.stats.LastStarted = start
	l.mu.Unlock()

	err := fn(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		l.log.Error().Err(err).Msg("iteración fallida")
	}
	l.finish(start, err)
	return err
}

func (l *Loop) skip() {
	l.mu.Lock()
	l.stats.Skipped++
	l.mu.Unlock()
}

func (l *Loop) finish(start time.Time, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Runs++
	l.stats.Running = false
	l.stats.LastDuration = time.Since(start)
	l.stats.LastError = ""
	if err != nil {
		l.stats.Failures++
		l.stats.LastError = err.Error()
	}
}

// Stats copia de los contadores.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
