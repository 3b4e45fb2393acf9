package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Contadores do núcleo de apostas. Rotulados por arena onde fizer sentido.
var (
	WagersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_wagers_placed_total",
		Help: "Apostas aceitas e enfileiradas",
	}, []string{"arena"})

	WagersMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_wagers_matched_total",
		Help: "Pares casados (conta pares, não apostas)",
	}, []string{"arena"})

	WagersCanceled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_wagers_canceled_total",
		Help: "Apostas canceladas ainda na fila",
	}, []string{"arena"})

	WagersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_wagers_rejected_total",
		Help: "Apostas rejeitadas na validação",
	}, []string{"arena", "reason"})

	RoundsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_rounds_resolved_total",
		Help: "Rodadas liquidadas",
	}, []string{"arena"})

	SettlementCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_settlement_corrections_total",
		Help: "Divergências de payout corrigidas na verificação",
	}, []string{"arena"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_ws_active_connections",
		Help: "Conexões WebSocket ativas",
	})

	SnapshotsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_snapshots_served_total",
		Help: "Snapshots completos enviados a clientes",
	}, []string{"arena"})
)
