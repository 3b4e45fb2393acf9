package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/cuebet/pool-arena/internal/arena/ledger"
	skafka "github.com/cuebet/pool-arena/internal/shared/kafka"
	"github.com/cuebet/pool-arena/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do núcleo nos tópicos de liquidação e
// auditoria.
type KafkaPublisher struct {
	RoundWriter *kafka.Writer
	AuditWriter *kafka.Writer
}

func NewKafkaPublisher(roundWriter, auditWriter *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{RoundWriter: roundWriter, AuditWriter: auditWriter}
}

func (p *KafkaPublisher) PublishRoundResolved(ctx context.Context, e events.RoundResolved) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return skafka.WriteJSON(ctx, p.RoundWriter, e.ArenaID, b)
}

// SaveAuditEntry implementa ledger.AuditSink encaminhando cada mutação ao
// tópico de auditoria. O audit-worker materializa no Postgres.
func (p *KafkaPublisher) SaveAuditEntry(ctx context.Context, e ledger.AuditEntry) error {
	ev := events.AuditRecorded{
		UserID:           e.UserID,
		DeltaCredits:     e.DeltaCredits,
		ResultingBalance: e.ResultingBalance,
		Reason:           e.Reason,
		RoundRef:         e.RoundRef,
		Ts:               e.At,
	}
	b, _ := json.Marshal(ev)
	return skafka.WriteJSON(ctx, p.AuditWriter, e.UserID, b)
}
