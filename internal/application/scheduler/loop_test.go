package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-consolidator/internal/application/consolidation"
	"github.com/jhoicas/stock-consolidator/internal/application/scheduler"
	"github.com/jhoicas/stock-consolidator/internal/application/tracking"
	"github.com/jhoicas/stock-consolidator/internal/domain"
)

type fakeLocker struct {
	acquired bool
	lost     bool // el lock se pierde nada más adquirirlo
	err      error
	unlocks  int
}

func (f *fakeLocker) TryLock(ctx context.Context) (context.Context, func(), bool, error) {
	if f.err != nil || !f.acquired {
		return nil, nil, false, f.err
	}
	held, cancel := context.WithCancel(ctx)
	if f.lost {
		cancel()
	}
	return held, func() { cancel(); f.unlocks++ }, true, nil
}

func TestLoop_DescartaIteracionSolapada(t *testing.T) {
	release := make(chan struct{})
	loop := scheduler.NewLoop("test", time.Hour, func(context.Context) error {
		<-release
		return nil
	}, zerolog.Nop())

	done := make(chan bool)
	go func() { done <- loop.TryRun(context.Background()) }()
	require.Eventually(t, func() bool { return loop.Stats().Running }, time.Second, time.Millisecond)

	assert.False(t, loop.TryRun(context.Background()), "no se solapa con la iteración en curso")
	assert.ErrorIs(t, loop.Do(context.Background(), func(context.Context) error { return nil }), domain.ErrBusy)

	close(release)
	assert.True(t, <-done)
	stats := loop.Stats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(2), stats.Skipped)
	assert.False(t, stats.Running)
}

func TestLoop_RunSeDetieneAlCancelar(t *testing.T) {
	var runs atomic.Int64
	loop := scheduler.NewLoop("test", 2*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("el bucle no se detuvo")
	}
}

func TestLoop_FalloNoDetieneElBucle(t *testing.T) {
	var runs atomic.Int64
	loop := scheduler.NewLoop("test", 2*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("almacén caído")
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	stats := loop.Stats()
	assert.GreaterOrEqual(t, stats.Failures, int64(1))
	assert.Equal(t, "almacén caído", stats.LastError)
}

func TestLoop_IntervaloInvalido(t *testing.T) {
	loop := scheduler.NewLoop("test", 0, func(context.Context) error { return nil }, zerolog.Nop())
	assert.ErrorIs(t, loop.Run(context.Background()), domain.ErrInvalidInput)
}

func TestLoop_LockDistribuido(t *testing.T) {
	tests := []struct {
		name    string
		locker  *fakeLocker
		wantErr error
		ran     bool
	}{
		{"adquirido", &fakeLocker{acquired: true}, nil, true},
		{"ocupado por otra instancia", &fakeLocker{}, domain.ErrBusy, false},
		{"redis caído", &fakeLocker{err: domain.ErrStoreUnavailable}, domain.ErrStoreUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			loop := scheduler.NewLoop("test", time.Hour, func(context.Context) error {
				ran = true
				return nil
			}, zerolog.Nop(), scheduler.WithLocker(tt.locker))

			err := loop.Do(context.Background(), func(context.Context) error {
				ran = true
				return nil
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 1, tt.locker.unlocks)
			}
			assert.Equal(t, tt.ran, ran)
		})
	}
}

func TestLoop_LockPerdidoCancelaIteracion(t *testing.T) {
	locker := &fakeLocker{acquired: true, lost: true}
	loop := scheduler.NewLoop("test", time.Hour, nil, zerolog.Nop(), scheduler.WithLocker(locker))

	err := loop.Do(context.Background(), func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled, "la iteración corre bajo el contexto del lock")
	assert.Equal(t, 1, locker.unlocks)
	assert.Equal(t, int64(1), loop.Stats().Failures)
}

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) Sweep(context.Context) consolidation.SweepReport {
	f.calls++
	return consolidation.SweepReport{Pallets: 2, Applied: 5}
}

type fakeScanner struct{ err error }

func (f *fakeScanner) ScanForTransitions(context.Context) (tracking.ScanReport, error) {
	return tracking.ScanReport{Observed: 3, Notified: 1}, f.err
}

func TestConsolidationIteration_BarridoYEscaneo(t *testing.T) {
	sweeper := &fakeSweeper{}
	it := scheduler.NewConsolidationIteration(sweeper, &fakeScanner{}, zerolog.Nop())

	require.NoError(t, it.Run(context.Background()))
	sweep, scan := it.Last()
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 5, sweep.Applied)
	assert.Equal(t, 1, scan.Notified)

	failing := scheduler.NewConsolidationIteration(sweeper, &fakeScanner{err: errors.New("x")}, zerolog.Nop())
	assert.Error(t, failing.Run(context.Background()))
	assert.Equal(t, 2, sweeper.calls, "el barrido corre aunque el escaneo falle")
}

type fakeProcessor struct {
	n   int
	err error
}

func (f fakeProcessor) ProcessCompleted(context.Context) (int, error) { return f.n, f.err }

func TestAdjustmentTask(t *testing.T) {
	assert.NoError(t, scheduler.AdjustmentTask(fakeProcessor{n: 2}, zerolog.Nop())(context.Background()))
	assert.Error(t, scheduler.AdjustmentTask(fakeProcessor{err: errors.New("x")}, zerolog.Nop())(context.Background()))
}
