package state

import (
	"time"

	"github.com/cuebet/pool-arena/internal/arena/engine"
)

// WagerView é a projeção de uma aposta enviada aos clientes.
type WagerView struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	Side          string `json:"side"`
	AmountCredits int64  `json:"amount_credits"`
	Slot          string `json:"round_slot"`
	Status        string `json:"status"`
	// Tentative marca eco otimista aplicado localmente pelo cliente,
	// nunca vem do servidor.
	Tentative bool `json:"tentative,omitempty"`
}

// PairView é a projeção de um par casado.
type PairView struct {
	A             WagerView `json:"a"`
	B             WagerView `json:"b"`
	AmountCredits int64     `json:"amount_credits"`
}

// TimerView é o estado computado do relógio da arena.
type TimerView struct {
	Running bool  `json:"running"`
	Seconds int64 `json:"seconds"`
}

// SideInfo descreve um lado da mesa.
type SideInfo struct {
	Name  string `json:"name"`
	Games int    `json:"games"`
	Balls int    `json:"balls"`
}

// SidesView agrupa os dois lados.
type SidesView struct {
	A SideInfo `json:"a"`
	B SideInfo `json:"b"`
}

// SideQueues são as filas de um slot, por lado, em ordem de chegada.
type SideQueues struct {
	A []WagerView `json:"a"`
	B []WagerView `json:"b"`
}

// QueueView cobre os dois slots de rodada.
type QueueView struct {
	Current SideQueues `json:"current"`
	Next    SideQueues `json:"next"`
}

// ArenaState é o snapshot completo e autoritativo de uma arena.
// É o único caminho capaz de curar qualquer delta perdido no cliente.
type ArenaState struct {
	ArenaID       string     `json:"arenaId"`
	Seq           uint64     `json:"seq"`
	RoundNumber   int64      `json:"round_number"`
	Sides         SidesView  `json:"sides"`
	BreakingSide  string     `json:"breaking_side"`
	Queues        QueueView  `json:"queues"`
	MatchedPairs  []PairView `json:"matched_pairs"`
	Timer         TimerView  `json:"timer"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

func viewOfWager(w *engine.Wager) WagerView {
	return WagerView{
		ID:            w.ID,
		UserID:        w.UserID,
		Side:          string(w.Side),
		AmountCredits: w.AmountCredits,
		Slot:          string(w.Slot),
		Status:        string(w.Status),
	}
}

func viewOfPair(p *engine.MatchedPair) PairView {
	return PairView{
		A:             viewOfWager(p.A),
		B:             viewOfWager(p.B),
		AmountCredits: p.AmountCredits,
	}
}

func viewOfQueue(ws []*engine.Wager) []WagerView {
	out := make([]WagerView, 0, len(ws))
	for _, w := range ws {
		out = append(out, viewOfWager(w))
	}
	return out
}
