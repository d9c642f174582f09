package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-consolidator/internal/application/tracking"
	"github.com/jhoicas/stock-consolidator/internal/domain"
)

var _ tracking.StateStore = (*StateStore)(nil)

// StateStore último estado observado de cada traslado en un hash de Redis, de modo que
// un reinicio o una segunda instancia no repitan notificaciones.
type StateStore struct {
	rdb goredis.UniversalClient
	key string
}

// NewStateStore usa el hash <prefix>:transfer-states.
func NewStateStore(rdb goredis.UniversalClient, prefix string) *StateStore {
	return &StateStore{rdb: rdb, key: Key(prefix, "transfer-states")}
}

func (s *StateStore) Load(ctx context.Context) (map[int64]string, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: leer estados: %v", domain.ErrStoreUnavailable, err)
	}
	out := make(map[int64]string, len(raw))
	for field, state := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		out[id] = state
	}
	return out, nil
}

func (s *StateStore) Save(ctx context.Context, transferID int64, state string) error {
	if err := s.rdb.HSet(ctx, s.key, strconv.FormatInt(transferID, 10), state).Err(); err != nil {
		return fmt.Errorf("%w: guardar estado: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *StateStore) Remove(ctx context.Context, transferIDs ...int64) error {
	if len(transferIDs) == 0 {
		return nil
	}
	fields := make([]string, len(transferIDs))
	for i, id := range transferIDs {
		fields[i] = strconv.FormatInt(id, 10)
	}
	if err := s.rdb.HDel(ctx, s.key, fields...).Err(); err != nil {
		return fmt.Errorf("%w: purgar estados: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
