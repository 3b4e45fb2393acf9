package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/engine"
	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/pkg/contracts/events"
)

// Broadcaster propaga deltas aos assinantes. O fan-out é fire-and-forget e
// nunca pode bloquear o caminho crítico de matching/liquidação.
type Broadcaster interface {
	BroadcastDelta(d Delta)
}

// MultiBroadcaster entrega o delta a vários destinos (hub local + ponte).
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) BroadcastDelta(d Delta) {
	for _, bc := range m {
		bc.BroadcastDelta(d)
	}
}

// ResolutionPublisher publica o evento de liquidação no stream externo.
type ResolutionPublisher interface {
	PublishRoundResolved(ctx context.Context, e events.RoundResolved) error
}

// SnapshotStore é o colaborador de persistência de snapshots de arena.
type SnapshotStore interface {
	SaveArenaState(ctx context.Context, st ArenaState) error
	LoadArenaState(ctx context.Context, arenaID string) (ArenaState, error)
}

// Synchronizer mantém uma Arena por arenaId e propaga cada mutação validada
// como delta escopado. Isolamento entre arenas é estrutural: cada delta sai
// etiquetado e cada assinante recebe só o tópico da arena que assina.
type Synchronizer struct {
	mu     sync.RWMutex
	arenas map[string]*Arena

	led    *ledger.Ledger
	denoms engine.Denominations
	bc     Broadcaster
	pub    ResolutionPublisher
	store  SnapshotStore
	log    *zap.Logger
}

func NewSynchronizer(led *ledger.Ledger, denoms engine.Denominations, log *zap.Logger) *Synchronizer {
	return &Synchronizer{
		arenas: make(map[string]*Arena),
		led:    led,
		denoms: denoms,
		log:    log,
	}
}

// SetBroadcaster liga o fan-out (o hub é criado depois do sincronizador).
func (s *Synchronizer) SetBroadcaster(bc Broadcaster) { s.bc = bc }

// SetPublisher liga o stream externo de liquidações.
func (s *Synchronizer) SetPublisher(pub ResolutionPublisher) { s.pub = pub }

// SetSnapshotStore liga o colaborador de persistência de snapshots.
func (s *Synchronizer) SetSnapshotStore(store SnapshotStore) { s.store = store }

// Arena retorna (ou cria) a arena do id, semeando de snapshot persistido
// quando disponível.
func (s *Synchronizer) Arena(arenaID string) *Arena {
	s.mu.RLock()
	a, ok := s.arenas[arenaID]
	s.mu.RUnlock()
	if ok {
		return a
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok = s.arenas[arenaID]; ok {
		return a
	}
	a = newArena(arenaID, s.led, s.denoms, s.log)
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if st, err := s.store.LoadArenaState(ctx, arenaID); err == nil {
			a.restore(st)
		}
		cancel()
	}
	s.arenas[arenaID] = a
	return a
}

func (s *Synchronizer) broadcast(d Delta) {
	if s.bc != nil {
		s.bc.BroadcastDelta(d)
	}
}

// PlaceWager aplica a colocação na arena e propaga o delta resultante.
func (s *Synchronizer) PlaceWager(arenaID, userID string, side engine.Side, amount int64, slot engine.RoundSlot) (*PlaceOutcome, error) {
	out, err := s.Arena(arenaID).PlaceWager(userID, side, amount, slot)
	if err != nil {
		return nil, err
	}
	s.broadcast(out.Delta)
	return out, nil
}

// CancelWager aplica o cancelamento e propaga o delta resultante.
func (s *Synchronizer) CancelWager(arenaID, userID, wagerID string) (*CancelOutcome, error) {
	out, err := s.Arena(arenaID).CancelWager(userID, wagerID)
	if err != nil {
		return nil, err
	}
	s.broadcast(out.Delta)
	return out, nil
}

// ResolveRound liquida a rodada, propaga o delta e publica o evento no
// stream externo fora do caminho crítico.
func (s *Synchronizer) ResolveRound(arenaID string, winning engine.Side) (*ResolveOutcome, error) {
	out, err := s.Arena(arenaID).ResolveRound(winning)
	if err != nil {
		return nil, err
	}
	s.broadcast(out.Delta)
	s.PublishResolution(out.Resolution)
	return out, nil
}

// PublishResolution envia o evento de liquidação ao stream externo em
// goroutine própria; falha de publicação nunca segura a liquidação.
func (s *Synchronizer) PublishResolution(e events.RoundResolved) {
	if s.pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.pub.PublishRoundResolved(ctx, e); err != nil {
			s.log.Warn("publish round_resolved failed",
				zap.String("arenaId", e.ArenaID), zap.Error(err))
		}
	}()
}

// UpdateTable aplica a mutação de mesa e propaga o delta.
func (s *Synchronizer) UpdateTable(arenaID string, sides SidesView, breaking engine.Side) (Delta, error) {
	d, err := s.Arena(arenaID).UpdateTable(sides, breaking)
	if err != nil {
		return Delta{}, err
	}
	s.broadcast(d)
	return d, nil
}

// Timer* repassam as transições do relógio e propagam o delta.
func (s *Synchronizer) TimerStart(arenaID string) Delta {
	d := s.Arena(arenaID).TimerStart()
	s.broadcast(d)
	return d
}

func (s *Synchronizer) TimerPause(arenaID string) Delta {
	d := s.Arena(arenaID).TimerPause()
	s.broadcast(d)
	return d
}

func (s *Synchronizer) TimerReset(arenaID string) Delta {
	d := s.Arena(arenaID).TimerReset()
	s.broadcast(d)
	return d
}

// TimerHeartbeat responde o estado computado do relógio, sob demanda.
func (s *Synchronizer) TimerHeartbeat(arenaID string) TimerView {
	return s.Arena(arenaID).TimerHeartbeat()
}

// Snapshot responde o estado completo da arena para reconciliação.
func (s *Synchronizer) Snapshot(arenaID string) ArenaState {
	return s.Arena(arenaID).Snapshot()
}

// Deposit credita saldo por operação administrativa e ecoa o novo saldo.
func (s *Synchronizer) Deposit(userID string, amount int64, ref string) (int64, error) {
	return s.led.Deposit(userID, amount, ref)
}

// Balance consulta o saldo disponível do usuário.
func (s *Synchronizer) Balance(userID string) int64 {
	return s.led.GetOrCreate(userID)
}

// RunTimerTicks emite o tick de 1 Hz de cada arena com relógio correndo.
func (s *Synchronizer) RunTimerTicks(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			arenas := make([]*Arena, 0, len(s.arenas))
			for _, a := range s.arenas {
				arenas = append(arenas, a)
			}
			s.mu.RUnlock()
			for _, a := range arenas {
				if d, ok := a.TimerTick(); ok {
					s.broadcast(d)
				}
			}
		}
	}
}

// AutosaveSnapshots persiste o snapshot de cada arena viva. Agendada por cron.
func (s *Synchronizer) AutosaveSnapshots(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.mu.RLock()
	arenas := make([]*Arena, 0, len(s.arenas))
	for _, a := range s.arenas {
		arenas = append(arenas, a)
	}
	s.mu.RUnlock()

	for _, a := range arenas {
		if err := s.store.SaveArenaState(ctx, a.Snapshot()); err != nil {
			s.log.Warn("snapshot autosave failed", zap.String("arenaId", a.id), zap.Error(err))
		}
	}
}
