package engine

import (
	"errors"
	"fmt"
	"testing"
)

func queuedWager(id string, side Side, amount int64, slot RoundSlot) *Wager {
	return &Wager{
		ID:            id,
		UserID:        "user-" + id,
		Side:          side,
		AmountCredits: amount,
		Slot:          slot,
		Status:        StatusQueued,
		EscrowID:      "esc-" + id,
	}
}

func TestMatchIsFIFOByQueuePosition(t *testing.T) {
	b := NewBook()

	// fila do lado A: [10, 50, 10]
	first := queuedWager("a1", SideA, 10, SlotCurrent)
	b.Append(first)
	b.Append(queuedWager("a2", SideA, 50, SlotCurrent))
	third := queuedWager("a3", SideA, 10, SlotCurrent)
	b.Append(third)

	incoming := queuedWager("b1", SideB, 10, SlotCurrent)
	b.Append(incoming)

	pair, ok := b.Match(incoming)
	if !ok {
		t.Fatal("expected a match")
	}
	if pair.A.ID != first.ID {
		t.Fatalf("expected match with head wager a1, got %s", pair.A.ID)
	}

	// sobra [50, 10] na ordem original
	left := b.Queued(SlotCurrent, SideA)
	if len(left) != 2 || left[0].AmountCredits != 50 || left[1].ID != third.ID {
		t.Fatalf("unexpected remaining queue: %+v", left)
	}
	if len(b.Queued(SlotCurrent, SideB)) != 0 {
		t.Fatal("incoming wager should leave its queue on match")
	}
	if pair.A.Status != StatusMatched || pair.B.Status != StatusMatched {
		t.Fatal("matched wagers must change status")
	}
}

func TestNoMatchLeavesWagerAtTail(t *testing.T) {
	b := NewBook()
	b.Append(queuedWager("a1", SideA, 100, SlotCurrent))

	w := queuedWager("b1", SideB, 50, SlotCurrent)
	b.Append(w)
	if _, ok := b.Match(w); ok {
		t.Fatal("amounts differ, match must not happen")
	}

	q := b.Queued(SlotCurrent, SideB)
	if len(q) != 1 || q[0].ID != "b1" {
		t.Fatalf("wager should stay queued, got %+v", q)
	}
}

func TestMatchIgnoresOtherSlot(t *testing.T) {
	b := NewBook()
	b.Append(queuedWager("a1", SideA, 100, SlotNext))

	w := queuedWager("b1", SideB, 100, SlotCurrent)
	b.Append(w)
	if _, ok := b.Match(w); ok {
		t.Fatal("wagers in different round slots must not match")
	}
}

func TestCancelQueued(t *testing.T) {
	b := NewBook()
	b.Append(queuedWager("a1", SideA, 100, SlotCurrent))

	w, err := b.CancelQueued("a1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if w.Status != StatusCanceled {
		t.Fatalf("expected canceled status, got %s", w.Status)
	}
	if len(b.Queued(SlotCurrent, SideA)) != 0 {
		t.Fatal("canceled wager must leave the queue")
	}
}

func TestCancelMatchedIsRejected(t *testing.T) {
	b := NewBook()
	b.Append(queuedWager("a1", SideA, 100, SlotCurrent))
	incoming := queuedWager("b1", SideB, 100, SlotCurrent)
	b.Append(incoming)
	if _, ok := b.Match(incoming); !ok {
		t.Fatal("setup: match expected")
	}

	if _, err := b.CancelQueued("a1"); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}
}

func TestCancelUnknownWager(t *testing.T) {
	b := NewBook()
	if _, err := b.CancelQueued("nope"); !errors.Is(err, ErrUnknownWager) {
		t.Fatalf("expected ErrUnknownWager, got %v", err)
	}
}

func TestPromoteNextKeepsOrderAndPairs(t *testing.T) {
	b := NewBook()
	b.Append(queuedWager("c1", SideA, 100, SlotCurrent))
	for i := 0; i < 3; i++ {
		b.Append(queuedWager(fmt.Sprintf("n%d", i), SideA, 50, SlotNext))
	}
	nextIncoming := queuedWager("nb", SideB, 50, SlotNext)
	b.Append(nextIncoming)
	if _, ok := b.Match(nextIncoming); !ok {
		t.Fatal("setup: next-slot match expected")
	}

	b.PromoteNext()

	q := b.Queued(SlotCurrent, SideA)
	if len(q) != 3 || q[0].ID != "c1" || q[1].ID != "n1" || q[2].ID != "n2" {
		t.Fatalf("promotion must append next after current preserving order: %+v", q)
	}
	for _, w := range q {
		if w.Slot != SlotCurrent {
			t.Fatalf("wager %s not relabeled to current", w.ID)
		}
	}
	if len(b.Pairs(SlotCurrent)) != 1 || len(b.Pairs(SlotNext)) != 0 {
		t.Fatal("matched pair must move to current on promotion")
	}
}
