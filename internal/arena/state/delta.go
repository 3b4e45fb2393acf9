package state

import "github.com/cuebet/pool-arena/pkg/contracts/events"

// Delta é a atualização incremental broadcast a cada mutação de arena.
//
// Campos de coleção usam ponteiro como marcador explícito de presença:
// nil significa "sem mudança, preserve o local"; não-nil substitui o valor
// do cliente por inteiro, mesmo quando vem vazio (vazio = limpo
// autoritativamente). Nunca inferir intenção a partir de coleção vazia.
type Delta struct {
	ArenaID string `json:"arenaId"`
	Seq     uint64 `json:"seq"`

	Round        *int64                `json:"round,omitempty"`
	Sides        *SidesView            `json:"sides,omitempty"`
	BreakingSide *string               `json:"breaking_side,omitempty"`
	Queues       *QueueView            `json:"queues,omitempty"`
	MatchedPairs *[]PairView           `json:"matched_pairs,omitempty"`
	Timer        *TimerView            `json:"timer,omitempty"`
	Resolution   *events.RoundResolved `json:"resolution,omitempty"`

	// Balances carrega userId -> novo saldo. Por política de eco, saldo é
	// refletido em todas as sessões do próprio usuário, inclusive a de origem.
	Balances map[string]int64 `json:"balances,omitempty"`

	// OriginUserID identifica o autor da mutação para a política de eco.
	// Não trafega no broadcast.
	OriginUserID string `json:"-"`
}
