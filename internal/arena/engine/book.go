package engine

// Book guarda as filas de apostas por slot de rodada e por lado, mais os
// pares já casados. Não tem lock próprio: é posse exclusiva da arena, que
// serializa todas as mutações.
type Book struct {
	queues map[RoundSlot]map[Side][]*Wager
	pairs  map[RoundSlot][]*MatchedPair
}

func NewBook() *Book {
	b := &Book{
		queues: make(map[RoundSlot]map[Side][]*Wager),
		pairs:  make(map[RoundSlot][]*MatchedPair),
	}
	for _, slot := range []RoundSlot{SlotCurrent, SlotNext} {
		b.queues[slot] = map[Side][]*Wager{SideA: {}, SideB: {}}
		b.pairs[slot] = []*MatchedPair{}
	}
	return b
}

// Append coloca a aposta no fim da fila, preservando ordem de chegada.
func (b *Book) Append(w *Wager) {
	b.queues[w.Slot][w.Side] = append(b.queues[w.Slot][w.Side], w)
}

// Match procura na fila oposta do mesmo slot, da cabeça para o fim, a
// primeira aposta de valor igual — FIFO por posição na fila, não por
// proximidade de horário. Achando, remove as duas e forma o par.
func (b *Book) Match(incoming *Wager) (*MatchedPair, bool) {
	opposite := b.queues[incoming.Slot][incoming.Side.Opposite()]
	for i, candidate := range opposite {
		if candidate.AmountCredits != incoming.AmountCredits {
			continue
		}

		b.queues[incoming.Slot][incoming.Side.Opposite()] = append(opposite[:i], opposite[i+1:]...)
		b.removeQueued(incoming)

		candidate.Status = StatusMatched
		incoming.Status = StatusMatched

		pair := &MatchedPair{AmountCredits: incoming.AmountCredits}
		if incoming.Side == SideA {
			pair.A, pair.B = incoming, candidate
		} else {
			pair.A, pair.B = candidate, incoming
		}
		b.pairs[incoming.Slot] = append(b.pairs[incoming.Slot], pair)
		return pair, true
	}
	return nil, false
}

// removeQueued tira a aposta da própria fila, se ainda estiver lá.
func (b *Book) removeQueued(w *Wager) {
	q := b.queues[w.Slot][w.Side]
	for i, cur := range q {
		if cur.ID == w.ID {
			b.queues[w.Slot][w.Side] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// FindQueued localiza uma aposta ainda enfileirada sem removê-la.
func (b *Book) FindQueued(wagerID string) (*Wager, bool) {
	for _, slot := range []RoundSlot{SlotCurrent, SlotNext} {
		for _, side := range []Side{SideA, SideB} {
			for _, w := range b.queues[slot][side] {
				if w.ID == wagerID {
					return w, true
				}
			}
		}
	}
	return nil, false
}

// CancelQueued remove uma aposta ainda na fila. Apostas casadas não são
// canceláveis.
func (b *Book) CancelQueued(wagerID string) (*Wager, error) {
	for _, slot := range []RoundSlot{SlotCurrent, SlotNext} {
		for _, side := range []Side{SideA, SideB} {
			q := b.queues[slot][side]
			for i, w := range q {
				if w.ID != wagerID {
					continue
				}
				b.queues[slot][side] = append(q[:i], q[i+1:]...)
				w.Status = StatusCanceled
				return w, nil
			}
		}
	}
	if b.findMatched(wagerID) != nil {
		return nil, ErrNotCancelable
	}
	return nil, ErrUnknownWager
}

func (b *Book) findMatched(wagerID string) *MatchedPair {
	for _, slot := range []RoundSlot{SlotCurrent, SlotNext} {
		for _, p := range b.pairs[slot] {
			if p.A.ID == wagerID || p.B.ID == wagerID {
				return p
			}
		}
	}
	return nil
}

// PromoteNext move tudo de "next" para "current" na virada de rodada.
// Relabel atômico: sem re-matching, ordem das filas preservada.
func (b *Book) PromoteNext() {
	for _, side := range []Side{SideA, SideB} {
		promoted := b.queues[SlotNext][side]
		for _, w := range promoted {
			w.Slot = SlotCurrent
		}
		b.queues[SlotCurrent][side] = append(b.queues[SlotCurrent][side], promoted...)
		b.queues[SlotNext][side] = []*Wager{}
	}
	for _, p := range b.pairs[SlotNext] {
		p.A.Slot = SlotCurrent
		p.B.Slot = SlotCurrent
	}
	b.pairs[SlotCurrent] = append(b.pairs[SlotCurrent], b.pairs[SlotNext]...)
	b.pairs[SlotNext] = []*MatchedPair{}
}

// Queued retorna a fila de um slot/lado na ordem de chegada.
func (b *Book) Queued(slot RoundSlot, side Side) []*Wager {
	q := b.queues[slot][side]
	out := make([]*Wager, len(q))
	copy(out, q)
	return out
}

// QueuedAll retorna todas as apostas ainda enfileiradas de um slot.
func (b *Book) QueuedAll(slot RoundSlot) []*Wager {
	var out []*Wager
	for _, side := range []Side{SideA, SideB} {
		out = append(out, b.queues[slot][side]...)
	}
	return out
}

// Pairs retorna os pares casados de um slot.
func (b *Book) Pairs(slot RoundSlot) []*MatchedPair {
	ps := b.pairs[slot]
	out := make([]*MatchedPair, len(ps))
	copy(out, ps)
	return out
}

// ClearCurrent descarta filas e pares da rodada liquidada.
func (b *Book) ClearCurrent() {
	b.queues[SlotCurrent] = map[Side][]*Wager{SideA: {}, SideB: {}}
	b.pairs[SlotCurrent] = []*MatchedPair{}
}
