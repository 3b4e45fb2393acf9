package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/client"
	"github.com/cuebet/pool-arena/internal/arena/state"
	"github.com/cuebet/pool-arena/internal/arena/ws"
	"github.com/cuebet/pool-arena/internal/shared/config"
	"github.com/cuebet/pool-arena/internal/shared/logger"
)

// Métricas Prometheus para acompanhamento da carga simulada
var (
	simConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_ws_connections",
		Help: "Apostadores simulados conectados",
	})
	simWagersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_wagers_placed_total",
		Help: "Total de apostas enviadas pelo simulador",
	})
	simRoundsResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_rounds_resolved_total",
		Help: "Total de rodadas liquidadas pelo simulador",
	})
	simDeltasReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_deltas_received_total",
		Help: "Total de deltas recebidos do servidor",
	})
)

// seedBalance credita saldo inicial do apostador via endpoint administrativo.
func seedBalance(httpBase, userID string, amount int64, log *zap.Logger) {
	body, _ := json.Marshal(map[string]any{"userId": userID, "amount_credits": amount})
	resp, err := http.Post(httpBase+"/admin/deposit", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn("seed deposit failed", zap.String("userId", userID), zap.Error(err))
		return
	}
	resp.Body.Close()
}

// runBettor conecta um apostador simulado que coloca apostas aleatórias
// dentro do conjunto de denominações e às vezes cancela a última.
func runBettor(ctx context.Context, cfg config.Config, arenaID, userID string, log *zap.Logger) {
	c := client.New(cfg.ArenaWSURL, arenaID, userID, log)
	c.OnMessage = func(msg ws.ServerMsg) {
		if msg.Type == "delta" || msg.Type == "timerTick" {
			simDeltasReceived.Inc()
		}
	}

	simConnections.Inc()
	defer simConnections.Dec()
	go c.Start(ctx)

	ticker := time.NewTicker(time.Duration(2+rand.Intn(4)) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			side := "A"
			if rand.Intn(2) == 1 {
				side = "B"
			}
			slot := "current"
			if rand.Intn(5) == 0 {
				slot = "next"
			}
			amount := cfg.Denominations[rand.Intn(len(cfg.Denominations))]
			if err := c.PlaceWager(side, amount, slot); err != nil {
				continue
			}
			simWagersPlaced.Inc()

			// de vez em quando cancela a última aposta ainda na fila
			if rand.Intn(4) == 0 {
				view := c.View()
				mine := append(append([]state.WagerView{}, view.Queues.Current.A...), view.Queues.Current.B...)
				for i := len(mine) - 1; i >= 0; i-- {
					if mine[i].UserID == userID && !mine[i].Tentative {
						_ = c.CancelWager(mine[i].ID)
						break
					}
				}
			}
		}
	}
}

// runReferee conecta o "juiz" da arena: liquida uma rodada a cada intervalo,
// alternando o lado vencedor.
func runReferee(ctx context.Context, cfg config.Config, arenaID string, log *zap.Logger) {
	c := client.New(cfg.ArenaWSURL, arenaID, "referee-"+arenaID, log)
	go c.Start(ctx)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	winning := "A"
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ResolveRound(winning); err != nil {
				log.Warn("resolve failed", zap.String("arenaId", arenaID), zap.Error(err))
				continue
			}
			simRoundsResolved.Inc()
			if winning == "A" {
				winning = "B"
			} else {
				winning = "A"
			}
		}
	}
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	rand.Seed(time.Now().UnixNano())

	prometheus.MustRegister(simConnections, simWagersPlaced, simRoundsResolved, simDeltasReceived)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// base HTTP derivada do endpoint WS (ws://host:port/ws -> http://host:port)
	httpBase := httpBaseOf(cfg.ArenaWSURL)

	for a := 1; a <= cfg.SimArenas; a++ {
		arenaID := fmt.Sprintf("mesa-%d", a)
		for b := 1; b <= cfg.SimBettors; b++ {
			userID := fmt.Sprintf("sim-%s-u%d", arenaID, b)
			seedBalance(httpBase, userID, 5_000, log)
			go runBettor(ctx, cfg, arenaID, userID, log)
		}
		go runReferee(ctx, cfg, arenaID, log)
	}
	log.Info("arena simulator running",
		zap.Int("arenas", cfg.SimArenas),
		zap.Int("bettors_per_arena", cfg.SimBettors),
		zap.String("target", cfg.ArenaWSURL),
	)

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("arena simulator (metrics) running", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down arena simulator")
}

// httpBaseOf converte o endpoint WS na base HTTP equivalente.
func httpBaseOf(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "http://localhost:8080"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	base := scheme + "://" + u.Host
	return strings.TrimSuffix(base, "/")
}
