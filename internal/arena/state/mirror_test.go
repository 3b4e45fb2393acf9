package state

import "testing"

func syncedMirror(t *testing.T, arenaID string) *Mirror {
	t.Helper()
	m := NewMirror(arenaID)
	m.Connect()
	m.OnConnected()
	if !m.ApplySnapshot(ArenaState{ArenaID: arenaID, Seq: 1, RoundNumber: 1}) {
		t.Fatal("seed snapshot must apply")
	}
	return m
}

func TestMirrorLifecycle(t *testing.T) {
	m := NewMirror("mesa-1")
	if m.State != Disconnected {
		t.Fatalf("expected Disconnected, got %s", m.State)
	}
	m.Connect()
	if m.State != Connecting {
		t.Fatalf("expected Connecting, got %s", m.State)
	}
	m.OnConnected()
	if !m.NeedsSnapshot() {
		t.Fatal("after connect the mirror must await a snapshot")
	}
	m.ApplySnapshot(ArenaState{ArenaID: "mesa-1"})
	if m.State != Synchronized {
		t.Fatalf("expected Synchronized, got %s", m.State)
	}
	m.Disconnect()
	if m.State != Disconnected {
		t.Fatalf("expected Disconnected, got %s", m.State)
	}
}

func TestStaleRecoversOnlyViaSnapshot(t *testing.T) {
	m := syncedMirror(t, "mesa-1")
	m.MarkStale()
	if m.State != Stale {
		t.Fatalf("expected Stale, got %s", m.State)
	}

	// delta chegando em Stale é descartado: a recuperação é só por snapshot
	round := int64(5)
	if m.ApplyDelta(Delta{ArenaID: "mesa-1", Seq: 9, Round: &round}) {
		t.Fatal("stale mirror must not apply deltas")
	}

	m.Recover()
	if !m.NeedsSnapshot() {
		t.Fatal("recover must re-enter AwaitingSnapshot")
	}
	if !m.ApplySnapshot(ArenaState{ArenaID: "mesa-1", Seq: 10, RoundNumber: 5}) {
		t.Fatal("snapshot must apply after recover")
	}
	if m.View.RoundNumber != 5 {
		t.Fatalf("expected round 5, got %d", m.View.RoundNumber)
	}
}

func TestMarkStaleIgnoredBeforeSynchronized(t *testing.T) {
	m := NewMirror("mesa-1")
	m.Connect()
	m.MarkStale()
	if m.State != Connecting {
		t.Fatalf("MarkStale must only act on Synchronized, got %s", m.State)
	}
}

func TestDeltaFromOtherArenaIsDiscarded(t *testing.T) {
	m := syncedMirror(t, "mesa-1")
	before := m.View

	round := int64(9)
	if m.ApplyDelta(Delta{ArenaID: "mesa-2", Seq: 3, Round: &round}) {
		t.Fatal("delta tagged with another arenaId must be discarded")
	}
	if m.View.RoundNumber != before.RoundNumber || m.View.Seq != before.Seq {
		t.Fatal("foreign delta must not mutate the mirror")
	}
}

func TestSnapshotFromOtherArenaIsDiscarded(t *testing.T) {
	m := syncedMirror(t, "mesa-1")
	if m.ApplySnapshot(ArenaState{ArenaID: "mesa-2", RoundNumber: 7}) {
		t.Fatal("snapshot for another arena must be discarded")
	}
	if m.View.RoundNumber != 1 {
		t.Fatalf("foreign snapshot must not mutate the mirror, got round %d", m.View.RoundNumber)
	}
}

func TestAbsentFieldsPreserveLocalState(t *testing.T) {
	m := syncedMirror(t, "mesa-1")
	m.View.Queues.Current.A = []WagerView{{ID: "w1", UserID: "u1", AmountCredits: 100}}
	m.View.MatchedPairs = []PairView{{}}

	// delta só de relógio: coleções ficam intactas
	tv := TimerView{Running: true, Seconds: 12}
	if !m.ApplyDelta(Delta{ArenaID: "mesa-1", Seq: 2, Timer: &tv}) {
		t.Fatal("timer delta must apply")
	}
	if len(m.View.Queues.Current.A) != 1 || len(m.View.MatchedPairs) != 1 {
		t.Fatal("absent delta fields must not touch local collections")
	}
	if !m.View.Timer.Running || m.View.Timer.Seconds != 12 {
		t.Fatalf("timer must update, got %+v", m.View.Timer)
	}
}

func TestPresentEmptyCollectionClearsLocalState(t *testing.T) {
	m := syncedMirror(t, "mesa-1")
	m.View.MatchedPairs = []PairView{{}, {}}

	// presença com coleção vazia significa "limpe", nunca "preserve"
	empty := []PairView{}
	if !m.ApplyDelta(Delta{ArenaID: "mesa-1", Seq: 2, MatchedPairs: &empty}) {
		t.Fatal("delta must apply")
	}
	if len(m.View.MatchedPairs) != 0 {
		t.Fatalf("present empty collection must clear, got %d pairs", len(m.View.MatchedPairs))
	}
}

func TestTentativeEchoIsReplacedNotMerged(t *testing.T) {
	m := syncedMirror(t, "mesa-1")

	m.PlaceTentative(WagerView{ID: "local-1", UserID: "u1", Side: "A", AmountCredits: 100, Slot: "current"})
	if m.TentativeCount() != 1 {
		t.Fatalf("expected 1 tentative echo, got %d", m.TentativeCount())
	}
	if len(m.View.Queues.Current.A) != 1 || !m.View.Queues.Current.A[0].Tentative {
		t.Fatal("tentative echo must appear flagged in the local queue")
	}

	// o delta autoritativo traz a mesma aposta com id do servidor: substitui
	authoritative := QueueView{Current: SideQueues{A: []WagerView{{ID: "srv-9", UserID: "u1", Side: "A", AmountCredits: 100, Slot: "current"}}}}
	if !m.ApplyDelta(Delta{ArenaID: "mesa-1", Seq: 2, Queues: &authoritative}) {
		t.Fatal("queue delta must apply")
	}
	if m.TentativeCount() != 0 {
		t.Fatal("authoritative queue replace must drop tentative echoes")
	}
	if got := len(m.View.Queues.Current.A); got != 1 {
		t.Fatalf("expected the single authoritative wager, got %d", got)
	}
	if w := m.View.Queues.Current.A[0]; w.ID != "srv-9" || w.Tentative {
		t.Fatalf("local echo must not survive the replace: %+v", w)
	}
}

func TestSnapshotDropsTentativeEchoes(t *testing.T) {
	m := syncedMirror(t, "mesa-1")
	m.PlaceTentative(WagerView{ID: "local-1", UserID: "u1", Side: "B", AmountCredits: 50, Slot: "current"})

	m.ApplySnapshot(ArenaState{ArenaID: "mesa-1", Seq: 4, RoundNumber: 1})
	if m.TentativeCount() != 0 {
		t.Fatal("snapshot must drop tentative echoes")
	}
	if len(m.View.Queues.Current.B) != 0 {
		t.Fatal("snapshot is authoritative over local echoes")
	}
}
