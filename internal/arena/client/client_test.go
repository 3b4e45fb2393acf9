package client

import (
	"testing"

	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/state"
	"github.com/cuebet/pool-arena/internal/arena/ws"
	"github.com/cuebet/pool-arena/pkg/contracts/events"
)

func newSyncedClient(t *testing.T) *Client {
	t.Helper()
	c := New("ws://localhost/ws", "mesa-1", "u1", zap.NewNop())
	c.apply(ws.ServerMsg{Type: "arenaSnapshot", ArenaID: "mesa-1", Snapshot: &state.ArenaState{
		ArenaID:     "mesa-1",
		Seq:         1,
		RoundNumber: 3,
	}})
	if c.State() != state.Synchronized {
		t.Fatalf("mirror should be synchronized after snapshot, got %v", c.State())
	}
	return c
}

// timerTick de heartbeat carrega só o relógio, sem delta embutido.
func TestTimerTickWithoutDeltaUpdatesClock(t *testing.T) {
	c := newSyncedClient(t)

	c.apply(ws.ServerMsg{
		Type:    "timerTick",
		ArenaID: "mesa-1",
		Timer:   &state.TimerView{Running: true, Seconds: 42},
	})

	got := c.View().Timer
	if !got.Running || got.Seconds != 42 {
		t.Fatalf("heartbeat reply did not reach the mirror: %+v", got)
	}
}

func TestTimerTickPrefersEmbeddedDelta(t *testing.T) {
	c := newSyncedClient(t)

	c.apply(ws.ServerMsg{
		Type:    "timerTick",
		ArenaID: "mesa-1",
		Delta: &state.Delta{
			ArenaID: "mesa-1",
			Seq:     2,
			Timer:   &state.TimerView{Running: true, Seconds: 7},
		},
	})

	v := c.View()
	if v.Timer.Seconds != 7 || v.Seq != 2 {
		t.Fatalf("embedded delta should win: %+v", v)
	}
}

// A resposta de roundResolved para quem liquidou traz o delta da nova
// rodada junto da resolução.
func TestRoundResolvedReplyAdvancesMirror(t *testing.T) {
	c := newSyncedClient(t)

	round := int64(4)
	c.apply(ws.ServerMsg{
		Type:       "roundResolved",
		ArenaID:    "mesa-1",
		Resolution: &events.RoundResolved{ArenaID: "mesa-1", RoundNumber: 3, WinningSide: "A"},
		Delta: &state.Delta{
			ArenaID: "mesa-1",
			Seq:     2,
			Round:   &round,
			Queues:  &state.QueueView{},
		},
	})

	v := c.View()
	if v.RoundNumber != 4 || v.Seq != 2 {
		t.Fatalf("resolution delta not applied: round=%d seq=%d", v.RoundNumber, v.Seq)
	}
}
