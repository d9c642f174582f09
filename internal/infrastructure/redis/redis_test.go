package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-consolidator/internal/domain"
	infraredis "github.com/jhoicas/stock-consolidator/internal/infrastructure/redis"
	"github.com/jhoicas/stock-consolidator/pkg/config"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := infraredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	mr.Close()
	_, err = infraredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "app:lock:sweep", infraredis.Key("app", "lock", "sweep"))
	assert.Equal(t, "lock", infraredis.Key("", "lock"))
}

func TestStateStore_GuardarCargarPurgar(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupRedis(t)
	store := infraredis.NewStateStore(rdb, "test")

	require.NoError(t, store.Save(ctx, 1, "PENDING"))
	require.NoError(t, store.Save(ctx, 2, "COMPLETED"))
	require.NoError(t, store.Save(ctx, 1, "PENDING_ERP"))

	states, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "PENDING_ERP", 2: "COMPLETED"}, states)
	assert.Equal(t, "PENDING_ERP", mr.HGet("test:transfer-states", "1"))

	require.NoError(t, store.Remove(ctx, 2))
	require.NoError(t, store.Remove(ctx))
	states, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "PENDING_ERP"}, states)
}

func TestStateStore_RedisCaido(t *testing.T) {
	mr, rdb := setupRedis(t)
	store := infraredis.NewStateStore(rdb, "test")
	mr.Close()

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestLocker_ExclusionEntreInstancias(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupRedis(t)
	a := infraredis.NewLocker(rdb, "test", "consolidation", time.Minute, zerolog.Nop())
	b := infraredis.NewLocker(rdb, "test", "consolidation", time.Minute, zerolog.Nop())

	_, unlock, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "la segunda instancia no obtiene el lock")

	unlock()
	_, unlockB, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	unlockB()
}

func TestLocker_SeRenuevaMientrasSeRetiene(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupRedis(t)
	ttl := 300 * time.Millisecond
	a := infraredis.NewLocker(rdb, "test", "consolidation", ttl, zerolog.Nop())
	b := infraredis.NewLocker(rdb, "test", "consolidation", ttl, zerolog.Nop())

	held, unlock, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	// miniredis solo expira con FastForward: dos avances que suman más que el TTL,
	// separados por tiempo real suficiente para que se renueve.
	mr.FastForward(200 * time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	mr.FastForward(200 * time.Millisecond)

	_, _, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "la iteración larga conserva el lock")
	assert.NoError(t, held.Err())
}

func TestLocker_PerdidaCancelaContexto(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupRedis(t)
	ttl := 300 * time.Millisecond
	a := infraredis.NewLocker(rdb, "test", "consolidation", ttl, zerolog.Nop())
	b := infraredis.NewLocker(rdb, "test", "consolidation", ttl, zerolog.Nop())

	held, unlock, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	mr.FastForward(time.Second)
	_, unlockB, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok, "expirado, otra instancia lo toma")
	defer unlockB()

	require.Eventually(t, func() bool { return held.Err() != nil }, 2*time.Second, 20*time.Millisecond,
		"la renovación fallida cancela la iteración en curso")
}

func TestPublisher_EntregaEnCanalDelUsuario(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupRedis(t)
	pub := infraredis.NewPublisher(rdb, "notifications")

	sub := rdb.Subscribe(ctx, pub.Channel(7))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, 7, "Traslado completado", "detalle", "success"))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, "notifications:7", msg.Channel)

	var payload infraredis.Message
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, int64(7), payload.RecipientID)
	assert.Equal(t, "success", payload.Severity)
}
