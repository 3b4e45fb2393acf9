package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/internal/arena/persist"
	skafka "github.com/cuebet/pool-arena/internal/shared/kafka"
	"github.com/cuebet/pool-arena/pkg/contracts/events"
)

// Processor consome o stream de auditoria do Kafka e materializa no Postgres.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log    *zap.Logger
	Reader *kafka.Reader
	Repo   *persist.Postgres
	DLQ    *kafka.Writer // opcional: mensagens indecifráveis

	OnConsumed func()       // métricas (counter++)
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e persistência das entradas.
func (p *Processor) Run(ctx context.Context) error {
	for {
		key, value, err := skafka.ReadNext(ctx, p.Reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var ev events.AuditRecorded
		if err := json.Unmarshal(value, &ev); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			p.toDLQ(ctx, key, value)
			continue
		}

		entry := ledger.AuditEntry{
			UserID:           ev.UserID,
			DeltaCredits:     ev.DeltaCredits,
			ResultingBalance: ev.ResultingBalance,
			Reason:           ev.Reason,
			RoundRef:         ev.RoundRef,
			At:               ev.Ts,
		}
		if err := p.Repo.SaveAuditEntry(ctx, entry); err != nil {
			// o repo já fez as retentativas dele; registra e segue
			p.Log.Warn("db insert failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("db_insert")
			}
			continue
		}
		if p.OnPersist != nil {
			p.OnPersist()
		}
	}
}

func (p *Processor) toDLQ(ctx context.Context, key, value []byte) {
	if p.DLQ == nil {
		return
	}
	if err := skafka.WriteJSON(ctx, p.DLQ, string(key), value); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
	}
}
