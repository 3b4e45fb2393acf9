package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cuebet/pool-arena/internal/arena/state"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestSaveAndLoadArenaState(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	st := state.ArenaState{
		ArenaID:      "mesa-1",
		Seq:          42,
		RoundNumber:  3,
		BreakingSide: "B",
		Sides:        state.SidesView{A: state.SideInfo{Name: "Carlos", Games: 2}, B: state.SideInfo{Name: "Ana", Games: 1}},
		Queues: state.QueueView{
			Current: state.SideQueues{A: []state.WagerView{{ID: "w1", UserID: "u1", Side: "A", AmountCredits: 100, Slot: "current", Status: "QUEUED"}}},
		},
		Timer: state.TimerView{Running: true, Seconds: 37},
	}
	if err := store.SaveArenaState(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.LoadArenaState(ctx, "mesa-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Seq != 42 || got.RoundNumber != 3 || got.BreakingSide != "B" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.Sides.A.Name != "Carlos" || got.Sides.A.Games != 2 {
		t.Fatalf("sides mismatch: %+v", got.Sides)
	}
	if len(got.Queues.Current.A) != 1 || got.Queues.Current.A[0].ID != "w1" {
		t.Fatalf("queue mismatch: %+v", got.Queues)
	}
	if !got.Timer.Running || got.Timer.Seconds != 37 {
		t.Fatalf("timer mismatch: %+v", got.Timer)
	}
}

func TestLoadMissingArenaState(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.LoadArenaState(context.Background(), "mesa-inexistente"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotExpiresWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveArenaState(ctx, state.ArenaState{ArenaID: "mesa-1", Seq: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	if _, err := store.LoadArenaState(ctx, "mesa-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.SaveArenaState(ctx, state.ArenaState{ArenaID: "mesa-1", Seq: 1, RoundNumber: 1})
	store.SaveArenaState(ctx, state.ArenaState{ArenaID: "mesa-1", Seq: 5, RoundNumber: 2})

	got, err := store.LoadArenaState(ctx, "mesa-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Seq != 5 || got.RoundNumber != 2 {
		t.Fatalf("expected latest snapshot, got %+v", got)
	}
}
