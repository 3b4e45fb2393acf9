package clock

import (
	"testing"
	"time"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time          { return f.t }
func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestStartPauseAccumulates(t *testing.T) {
	f := &fakeNow{t: time.Unix(1_000, 0)}
	c := New(f.now)

	if c.Running() || c.Seconds() != 0 {
		t.Fatal("new clock must be paused at zero")
	}

	c.Start()
	f.advance(10 * time.Second)
	if got := c.Seconds(); got != 10 {
		t.Fatalf("expected 10s running, got %d", got)
	}

	c.Pause()
	f.advance(30 * time.Second)
	if got := c.Seconds(); got != 10 {
		t.Fatalf("paused clock must hold at 10s, got %d", got)
	}

	// retomar mantém o acumulado
	c.Start()
	f.advance(5 * time.Second)
	if got := c.Seconds(); got != 15 {
		t.Fatalf("expected 15s after resume, got %d", got)
	}
}

func TestResetZeroesAndPauses(t *testing.T) {
	f := &fakeNow{t: time.Unix(1_000, 0)}
	c := New(f.now)

	c.Start()
	f.advance(42 * time.Second)
	c.Reset()

	if c.Running() {
		t.Fatal("reset must pause the clock")
	}
	if got := c.Seconds(); got != 0 {
		t.Fatalf("reset must zero the accumulated time, got %d", got)
	}
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	f := &fakeNow{t: time.Unix(1_000, 0)}
	c := New(f.now)

	c.Start()
	f.advance(5 * time.Second)
	c.Start() // não pode reancorar o startedAt
	f.advance(5 * time.Second)

	if got := c.Seconds(); got != 10 {
		t.Fatalf("expected 10s, got %d", got)
	}
}
