package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/clock"
	"github.com/cuebet/pool-arena/internal/arena/engine"
	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/internal/shared/metrics"
	"github.com/cuebet/pool-arena/pkg/contracts/events"
)

var ErrNotWagerOwner = errors.New("wager belongs to another user")

// Arena é a dona exclusiva do estado autoritativo de uma mesa. Toda mutação
// passa pelo mutex: duas colocações concorrentes nunca disputam o mesmo slot
// de match duas vezes. Leitura/broadcast acontece fora da seção crítica, mas
// sempre sobre uma mutação completamente aplicada.
type Arena struct {
	mu sync.Mutex

	id       string
	round    int64
	sides    SidesView
	breaking engine.Side

	book   *engine.Book
	clk    *clock.Clock
	led    *ledger.Ledger
	settle *engine.Settlement
	denoms engine.Denominations

	seq       uint64
	updatedAt time.Time
	log       *zap.Logger
}

func newArena(id string, led *ledger.Ledger, denoms engine.Denominations, log *zap.Logger) *Arena {
	return &Arena{
		id:       id,
		round:    1,
		sides:    SidesView{A: SideInfo{Name: "Lado A"}, B: SideInfo{Name: "Lado B"}},
		breaking: engine.SideA,
		book:     engine.NewBook(),
		clk:      clock.New(nil),
		led:      led,
		settle:   engine.NewSettlement(led, log),
		denoms:   denoms,
		log:      log.With(zap.String("arenaId", id)),
	}
}

// bump avança o relógio lógico da arena. Chamar com mu preso.
func (a *Arena) bump() uint64 {
	a.seq++
	a.updatedAt = time.Now()
	return a.seq
}

func (a *Arena) roundRef() string { return fmt.Sprintf("%s#%d", a.id, a.round) }

// PlaceOutcome é o resultado de uma colocação de aposta.
type PlaceOutcome struct {
	Wager   WagerView
	Matched *PairView // nil quando ficou na fila
	Balance int64
	Delta   Delta
}

// PlaceWager valida denominação e saldo, faz o escrow, enfileira e tenta o
// match FIFO contra a fila oposta. Erros de validação voltam síncronos ao
// chamador e não geram broadcast.
func (a *Arena) PlaceWager(userID string, side engine.Side, amount int64, slot engine.RoundSlot) (*PlaceOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !side.Valid() {
		return nil, engine.ErrInvalidSide
	}
	if !slot.Valid() {
		slot = engine.SlotCurrent
	}
	if !a.denoms.Allows(amount) {
		metrics.WagersRejected.WithLabelValues(a.id, "invalid_amount").Inc()
		return nil, engine.ErrInvalidAmount
	}

	wagerID := uuid.NewString()
	entry, newBal, err := a.led.Escrow(userID, wagerID, amount, a.roundRef())
	if err != nil {
		metrics.WagersRejected.WithLabelValues(a.id, "insufficient_credits").Inc()
		return nil, err
	}

	w := &engine.Wager{
		ID:            wagerID,
		UserID:        userID,
		Side:          side,
		AmountCredits: amount,
		Slot:          slot,
		Status:        engine.StatusQueued,
		EscrowID:      entry.ID,
		PlacedAt:      time.Now(),
	}
	a.book.Append(w)
	metrics.WagersPlaced.WithLabelValues(a.id).Inc()

	out := &PlaceOutcome{Balance: newBal}
	if pair, ok := a.book.Match(w); ok {
		pv := viewOfPair(pair)
		out.Matched = &pv
		metrics.WagersMatched.WithLabelValues(a.id).Inc()
	}
	out.Wager = viewOfWager(w)

	queues := a.queueViewLocked()
	pairs := a.pairViewLocked()
	out.Delta = Delta{
		ArenaID:      a.id,
		Seq:          a.bump(),
		Queues:       &queues,
		MatchedPairs: &pairs,
		Balances:     map[string]int64{userID: newBal},
		OriginUserID: userID,
	}
	return out, nil
}

// CancelOutcome é o resultado de um cancelamento.
type CancelOutcome struct {
	Wager   WagerView
	Balance int64
	Delta   Delta
}

// CancelWager só funciona enquanto a aposta está na fila. Se um match
// concorrente chegou antes na seção exclusiva, o cancelamento perde e
// recebe ErrNotCancelable.
func (a *Arena) CancelWager(userID, wagerID string) (*CancelOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if w, ok := a.book.FindQueued(wagerID); ok && w.UserID != userID {
		return nil, ErrNotWagerOwner
	}
	w, err := a.book.CancelQueued(wagerID)
	if err != nil {
		return nil, err
	}

	newBal, err := a.led.Release(w.EscrowID, a.roundRef())
	if err != nil {
		return nil, fmt.Errorf("release escrow %s: %w", w.EscrowID, err)
	}
	metrics.WagersCanceled.WithLabelValues(a.id).Inc()

	queues := a.queueViewLocked()
	return &CancelOutcome{
		Wager:   viewOfWager(w),
		Balance: newBal,
		Delta: Delta{
			ArenaID:      a.id,
			Seq:          a.bump(),
			Queues:       &queues,
			Balances:     map[string]int64{userID: newBal},
			OriginUserID: userID,
		},
	}, nil
}

// ResolveOutcome é o desfecho da liquidação de uma rodada.
type ResolveOutcome struct {
	Resolution events.RoundResolved
	Delta      Delta
}

// ResolveRound liquida a rodada corrente, promove o slot "next" para a nova
// rodada corrente e zera o relógio. A promoção é um relabel atômico dentro
// da mesma seção crítica da liquidação.
func (a *Arena) ResolveRound(winning engine.Side) (*ResolveOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.settle.Resolve(a.id, a.round, a.book, winning)
	if err != nil {
		return nil, err
	}
	metrics.RoundsResolved.WithLabelValues(a.id).Inc()
	for i := 0; i < res.Corrections; i++ {
		metrics.SettlementCorrections.WithLabelValues(a.id).Inc()
	}

	resolved := events.RoundResolved{
		ArenaID:     a.id,
		RoundNumber: a.round,
		WinningSide: string(winning),
		Payouts:     res.Payouts,
		Refunds:     res.Refunds,
		TsUnixMs:    time.Now().UnixMilli(),
	}

	// contagem de partidas do lado vencedor
	if winning == engine.SideA {
		a.sides.A.Games++
	} else {
		a.sides.B.Games++
	}

	a.round++
	a.book.PromoteNext()
	a.clk.Reset()

	balances := make(map[string]int64, len(res.Payouts)+len(res.Refunds))
	for _, p := range res.Payouts {
		balances[p.UserID] = p.NewBalance
	}
	for _, r := range res.Refunds {
		balances[r.UserID] = r.NewBalance
	}

	round := a.round
	queues := a.queueViewLocked()
	pairs := a.pairViewLocked()
	timer := a.timerViewLocked()
	sides := a.sides
	return &ResolveOutcome{
		Resolution: resolved,
		Delta: Delta{
			ArenaID:      a.id,
			Seq:          a.bump(),
			Round:        &round,
			Sides:        &sides,
			Queues:       &queues,
			MatchedPairs: &pairs,
			Timer:        &timer,
			Resolution:   &resolved,
			Balances:     balances,
		},
	}, nil
}

// UpdateTable muda nomes, placares e o lado da saída. Operação nomeada no
// lugar de atribuição de campo ad-hoc.
func (a *Arena) UpdateTable(sides SidesView, breaking engine.Side) (Delta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !breaking.Valid() {
		return Delta{}, engine.ErrInvalidSide
	}
	a.sides = sides
	a.breaking = breaking

	sv := a.sides
	bs := string(a.breaking)
	return Delta{
		ArenaID:      a.id,
		Seq:          a.bump(),
		Sides:        &sv,
		BreakingSide: &bs,
	}, nil
}

// TimerStart / TimerPause / TimerReset transicionam o relógio autoritativo.
func (a *Arena) TimerStart() Delta { return a.timerOp(func() { a.clk.Start() }) }
func (a *Arena) TimerPause() Delta { return a.timerOp(func() { a.clk.Pause() }) }
func (a *Arena) TimerReset() Delta { return a.timerOp(func() { a.clk.Reset() }) }

func (a *Arena) timerOp(apply func()) Delta {
	a.mu.Lock()
	defer a.mu.Unlock()
	apply()
	tv := a.timerViewLocked()
	return Delta{ArenaID: a.id, Seq: a.bump(), Timer: &tv}
}

// TimerHeartbeat responde o resync imediato sem esperar o próximo tick.
func (a *Arena) TimerHeartbeat() TimerView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timerViewLocked()
}

// TimerTick emite o estado do relógio quando está correndo; usada pelo loop
// de 1 Hz do sincronizador.
func (a *Arena) TimerTick() (Delta, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.clk.Running() {
		return Delta{}, false
	}
	tv := a.timerViewLocked()
	return Delta{ArenaID: a.id, Seq: a.bump(), Timer: &tv}, true
}

// Snapshot monta o estado completo e autoritativo da arena.
func (a *Arena) Snapshot() ArenaState {
	a.mu.Lock()
	defer a.mu.Unlock()
	metrics.SnapshotsServed.WithLabelValues(a.id).Inc()
	return ArenaState{
		ArenaID:       a.id,
		Seq:           a.seq,
		RoundNumber:   a.round,
		Sides:         a.sides,
		BreakingSide:  string(a.breaking),
		Queues:        a.queueViewLocked(),
		MatchedPairs:  a.pairViewLocked(),
		Timer:         a.timerViewLocked(),
		LastUpdatedAt: a.updatedAt,
	}
}

// restore semeia round e metadados persistidos. Filas e pares não são
// restaurados: apostas vivem acopladas ao escrow em memória.
func (a *Arena) restore(st ArenaState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st.RoundNumber > 0 {
		a.round = st.RoundNumber
	}
	a.sides = st.Sides
	if s := engine.Side(st.BreakingSide); s.Valid() {
		a.breaking = s
	}
}

func (a *Arena) queueViewLocked() QueueView {
	return QueueView{
		Current: SideQueues{
			A: viewOfQueue(a.book.Queued(engine.SlotCurrent, engine.SideA)),
			B: viewOfQueue(a.book.Queued(engine.SlotCurrent, engine.SideB)),
		},
		Next: SideQueues{
			A: viewOfQueue(a.book.Queued(engine.SlotNext, engine.SideA)),
			B: viewOfQueue(a.book.Queued(engine.SlotNext, engine.SideB)),
		},
	}
}

func (a *Arena) pairViewLocked() []PairView {
	pairs := a.book.Pairs(engine.SlotCurrent)
	out := make([]PairView, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, viewOfPair(p))
	}
	for _, p := range a.book.Pairs(engine.SlotNext) {
		out = append(out, viewOfPair(p))
	}
	return out
}

func (a *Arena) timerViewLocked() TimerView {
	return TimerView{Running: a.clk.Running(), Seconds: a.clk.Seconds()}
}
