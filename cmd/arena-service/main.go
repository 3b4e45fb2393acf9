package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/engine"
	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/internal/arena/persist"
	"github.com/cuebet/pool-arena/internal/arena/producer"
	"github.com/cuebet/pool-arena/internal/arena/state"
	"github.com/cuebet/pool-arena/internal/arena/ws"
	"github.com/cuebet/pool-arena/internal/shared/cache"
	"github.com/cuebet/pool-arena/internal/shared/config"
	"github.com/cuebet/pool-arena/internal/shared/db"
	skafka "github.com/cuebet/pool-arena/internal/shared/kafka"
	"github.com/cuebet/pool-arena/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers
	roundWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundResolved)
	auditWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicAuditRecorded)
	defer roundWriter.Close()
	defer auditWriter.Close()

	// deps
	pgRepo := persist.NewPostgres(pg)
	redisStore := persist.NewRedisStore(rdb, time.Hour)
	publ := producer.NewKafkaPublisher(roundWriter, auditWriter)

	// auditoria vai pro banco e pro stream; o espelho de conta grava o saldo
	// resultante de cada mutação. Retentativa é de cada sink.
	led := ledger.New(log, ledger.MultiSink{pgRepo, persist.AccountSink{Repo: pgRepo}, publ})
	defer led.Close()
	led.SetAccountLoader(pgRepo)

	core := state.NewSynchronizer(led, engine.NewDenominations(cfg.Denominations), log)
	core.SetPublisher(publ)
	core.SetSnapshotStore(redisStore)

	hub := ws.NewHub(core, log, func(r *http.Request) bool { return true })
	bridge := ws.NewRedisBridge(rdb, cfg.RedisPubSubChannel, log)
	bridge.Start(ctx, hub)
	hub.SetRemote(bridge)
	core.SetBroadcaster(state.MultiBroadcaster{hub, bridge})

	go core.RunTimerTicks(ctx)

	// housekeeping agendado: sessões sem heartbeat e autosave de snapshots
	cr := cron.New()
	cr.Schedule(cron.Every(30*time.Second), cron.FuncJob(func() {
		if n := hub.ReapStale(90 * time.Second); n > 0 {
			log.Info("stale sessions reaped", zap.Int("count", n))
		}
	}))
	cr.Schedule(cron.Every(time.Minute), cron.FuncJob(func() {
		saveCtx, saveCancel := context.WithTimeout(ctx, 10*time.Second)
		core.AutosaveSnapshots(saveCtx)
		saveCancel()
	}))
	cr.Start()
	defer cr.Stop()

	// HTTP público: WS + depósito administrativo
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/admin/deposit", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			UserID        string `json:"userId"`
			AmountCredits int64  `json:"amount_credits"`
			ExternalRef   string `json:"external_ref,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.UserID == "" || req.AmountCredits <= 0 {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		newBal, err := core.Deposit(req.UserID, req.AmountCredits, req.ExternalRef)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"userId": req.UserID, "new_balance": newBal})
	})

	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: mux,
	}

	// metrics/health
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.PingContext(r.Context()); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, metricsMux)
	}()

	log.Info("arena-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
