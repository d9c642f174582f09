package redis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	rsgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-consolidator/internal/application/scheduler"
)

var _ scheduler.Locker = (*Locker)(nil)

// Locker lock distribuido (redsync) alrededor de una iteración del scheduler. Mientras se
// retiene se renueva cada ttl/2; si una renovación falla el lock se da por perdido y el
// contexto devuelto por TryLock se cancela.
type Locker struct {
	rs   *redsync.Redsync
	name string
	ttl  time.Duration
	log  zerolog.Logger
}

// NewLocker crea el lock <prefix>:lock:<name>.
func NewLocker(rdb goredis.UniversalClient, prefix, name string, ttl time.Duration, log zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		rs:   redsync.New(rsgoredis.NewPool(rdb)),
		name: Key(prefix, "lock", name),
		ttl:  ttl,
		log:  log,
	}
}

// TryLock un único intento, sin reintentos.
func (l *Locker) TryLock(ctx context.Context) (context.Context, func(), bool, error) {
	mutex := l.rs.NewMutex(l.name, redsync.WithExpiry(l.ttl), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		if isLockContention(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	held, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(held, cancel, mutex, stop)
	}()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cancel()
			ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
				l.log.Warn().Err(err).Str("lock", l.name).Msg("liberar lock distribuido")
			}
		})
	}
	return held, unlock, true, nil
}

func (l *Locker) keepAlive(held context.Context, cancel context.CancelFunc, mutex *redsync.Mutex, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-held.Done():
			return
		case <-ticker.C:
		}
		ok, err := mutex.ExtendContext(held)
		if ok && err == nil {
			continue
		}
		l.log.Warn().Err(err).Str("lock", l.name).Msg("lock distribuido perdido, se cancela la iteración")
		cancel()
		return
	}
}

func isLockContention(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}
