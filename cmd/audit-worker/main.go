package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/persist"
	"github.com/cuebet/pool-arena/internal/audit/consumer"
	"github.com/cuebet/pool-arena/internal/shared/config"
	"github.com/cuebet/pool-arena/internal/shared/db"
	skafka "github.com/cuebet/pool-arena/internal/shared/kafka"
	"github.com/cuebet/pool-arena/internal/shared/logger"
	"github.com/cuebet/pool-arena/internal/shared/metrics"
)

var (
	consumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_worker_consumed_total",
		Help: "Entradas de auditoria consumidas do Kafka",
	})
	persisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_worker_persisted_total",
		Help: "Entradas de auditoria gravadas no Postgres",
	})
	failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_worker_errors_total",
		Help: "Falhas por fase",
	}, []string{"phase"})
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicAuditRecorded, "audit-worker")
	defer reader.Close()

	dlq := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicAuditRecordedDLQ)
	defer dlq.Close()

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       persist.NewPostgres(pg),
		DLQ:        dlq,
		OnConsumed: func() { consumed.Inc() },
		OnPersist:  func() { persisted.Inc() },
		OnError:    func(phase string) { failures.WithLabelValues(phase).Inc() },
	}

	log.Info("audit-worker consuming", zap.String("topic", cfg.TopicAuditRecorded))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("consumer", zap.Error(err))
	}
}
