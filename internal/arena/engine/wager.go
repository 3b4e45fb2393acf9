package engine

import (
	"errors"
	"time"
)

var (
	ErrInvalidAmount = errors.New("amount not in allowed denomination set")
	ErrInvalidSide   = errors.New("invalid side")
	ErrNotCancelable = errors.New("wager is no longer cancelable")
	ErrUnknownWager  = errors.New("wager not found")
)

type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Opposite retorna o lado contrário da mesa.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) Valid() bool { return s == SideA || s == SideB }

type RoundSlot string

const (
	SlotCurrent RoundSlot = "current"
	SlotNext    RoundSlot = "next"
)

func (r RoundSlot) Valid() bool { return r == SlotCurrent || r == SlotNext }

type WagerStatus string

const (
	StatusQueued   WagerStatus = "QUEUED"
	StatusMatched  WagerStatus = "MATCHED"
	StatusSettled  WagerStatus = "SETTLED"
	StatusRefunded WagerStatus = "REFUNDED"
	StatusCanceled WagerStatus = "CANCELED"
)

// Wager é a aposta de um usuário em um lado da rodada.
// Imutável depois de casada.
type Wager struct {
	ID            string
	UserID        string
	Side          Side
	AmountCredits int64
	Slot          RoundSlot
	Status        WagerStatus
	EscrowID      string
	PlacedAt      time.Time
}

// MatchedPair trava duas apostas de mesmo valor em lados opostos até a
// liquidação.
type MatchedPair struct {
	A             *Wager
	B             *Wager
	AmountCredits int64
}

// BySide retorna a aposta do par no lado pedido.
func (p *MatchedPair) BySide(s Side) *Wager {
	if s == SideA {
		return p.A
	}
	return p.B
}

// Denominations é o conjunto de valores de ficha aceitos.
type Denominations map[int64]struct{}

func NewDenominations(allowed []int64) Denominations {
	d := make(Denominations, len(allowed))
	for _, v := range allowed {
		d[v] = struct{}{}
	}
	return d
}

func (d Denominations) Allows(amount int64) bool {
	_, ok := d[amount]
	return ok
}
