package ws

import (
	"github.com/cuebet/pool-arena/internal/arena/state"
	"github.com/cuebet/pool-arena/pkg/contracts/events"
)

// ClientMsg representa uma mensagem recebida do cliente WebSocket.
// Toda mensagem carrega arenaId; mensagens de arena diferente da assinada
// são descartadas.
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | placeWager | cancelWager | resolveRound | requestSnapshot | updateTable | timerStart | timerPause | timerReset | timerHeartbeat | ping
	ArenaID string `json:"arenaId"` // obrigatório em tudo menos ping

	// placeWager
	Side          string `json:"side,omitempty"` // "A" | "B"
	AmountCredits int64  `json:"amount_credits,omitempty"`
	RoundSlot     string `json:"round_slot,omitempty"` // "current" | "next"

	// cancelWager
	WagerID string `json:"wagerId,omitempty"`

	// resolveRound
	WinningSide string `json:"winning_side,omitempty"`

	// updateTable
	Sides        *state.SidesView `json:"sides,omitempty"`
	BreakingSide string           `json:"breaking_side,omitempty"`
}

// ServerMsg representa uma mensagem enviada ao cliente WebSocket.
type ServerMsg struct {
	Type    string `json:"type"` // delta | arenaSnapshot | wagerQueued | wagerMatched | wagerCanceled | ledgerUpdated | roundResolved | timerTick | error | pong
	ArenaID string `json:"arenaId,omitempty"`

	Delta      *state.Delta          `json:"delta,omitempty"`
	Snapshot   *state.ArenaState     `json:"snapshot,omitempty"`
	Wager      *state.WagerView      `json:"wager,omitempty"`
	Pair       *state.PairView       `json:"pair,omitempty"`
	Resolution *events.RoundResolved `json:"resolution,omitempty"`
	Timer      *state.TimerView      `json:"timer,omitempty"`

	// ledgerUpdated
	UserID     string `json:"userId,omitempty"`
	NewBalance int64  `json:"new_balance,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
