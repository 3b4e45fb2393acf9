package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/state"
)

// RedisBridge replica deltas entre instâncias via Redis Pub/Sub: cada
// instância publica o que origina e repassa ao hub o que as outras
// publicaram. Mensagens da própria instância são ignoradas na volta.
type RedisBridge struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	log        *zap.Logger
}

type wireDelta struct {
	Origin string      `json:"origin"`
	Delta  state.Delta `json:"delta"`
}

func NewRedisBridge(rdb *redis.Client, channel string, log *zap.Logger) *RedisBridge {
	return &RedisBridge{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// BroadcastDelta implementa state.Broadcaster publicando no canal.
// Fire-and-forget: falha de publicação não bloqueia o caminho crítico.
func (b *RedisBridge) BroadcastDelta(d state.Delta) {
	payload, err := json.Marshal(wireDelta{Origin: b.instanceID, Delta: d})
	if err != nil {
		return
	}
	go func() {
		if err := b.rdb.Publish(context.Background(), b.channel, payload).Err(); err != nil {
			b.log.Warn("bridge publish failed", zap.Error(err))
		}
	}()
}

// Start inicia uma goroutine que escuta o canal e repassa deltas de outras
// instâncias aos assinantes locais do hub.
func (b *RedisBridge) Start(ctx context.Context, hub *Hub) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var wd wireDelta
				if err := json.Unmarshal([]byte(msg.Payload), &wd); err != nil {
					b.log.Warn("bridge unmarshal error", zap.Error(err))
					continue
				}
				if wd.Origin == b.instanceID {
					continue // já entregue localmente
				}
				hub.BroadcastDelta(wd.Delta)
			}
		}
	}()
}
