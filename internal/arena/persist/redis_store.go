package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuebet/pool-arena/internal/arena/state"
)

// RedisStore guarda snapshots de arena no Redis com TTL. Serve para um nó
// recém-reiniciado responder snapshot antes do primeiro autosave no banco.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisStore(c *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: c, TTL: ttl}
}

// key gera a chave Redis do snapshot de uma arena.
func key(arenaID string) string { return "arena:" + arenaID + ":state" }

// SaveArenaState serializa e grava o snapshot com TTL definido.
func (r *RedisStore) SaveArenaState(ctx context.Context, st state.ArenaState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(st.ArenaID), b, r.TTL).Err()
}

// LoadArenaState recupera o snapshot de uma arena.
func (r *RedisStore) LoadArenaState(ctx context.Context, arenaID string) (state.ArenaState, error) {
	raw, err := r.Client.Get(ctx, key(arenaID)).Result()
	if err == redis.Nil {
		return state.ArenaState{}, ErrNotFound
	}
	if err != nil {
		return state.ArenaState{}, fmt.Errorf("get arena state: %w", err)
	}
	var st state.ArenaState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return state.ArenaState{}, err
	}
	return st, nil
}
