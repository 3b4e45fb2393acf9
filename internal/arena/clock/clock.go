package clock

import "time"

// Clock é o relógio autoritativo de rodada de uma arena.
// Dois estados: Paused(accumulated) e Running(accumulated, startedAt).
// Intencionalmente não persiste entre restarts do processo.
type Clock struct {
	running     bool
	accumulated time.Duration
	startedAt   time.Time

	now func() time.Time // injetável para teste
}

func New(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Start entra em Running mantendo o acumulado existente.
func (c *Clock) Start() {
	if c.running {
		return
	}
	c.running = true
	c.startedAt = c.now()
}

// Pause dobra o tempo corrido no acumulado e entra em Paused.
func (c *Clock) Pause() {
	if !c.running {
		return
	}
	c.accumulated += c.now().Sub(c.startedAt)
	c.running = false
}

// Reset zera o acumulado e entra em Paused.
func (c *Clock) Reset() {
	c.running = false
	c.accumulated = 0
}

// Running informa se o relógio está correndo.
func (c *Clock) Running() bool { return c.running }

// Seconds retorna o tempo computado: acumulado mais o corrido desde o start.
func (c *Clock) Seconds() int64 {
	elapsed := c.accumulated
	if c.running {
		elapsed += c.now().Sub(c.startedAt)
	}
	return int64(elapsed / time.Second)
}
