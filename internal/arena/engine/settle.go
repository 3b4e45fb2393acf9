package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/pkg/contracts/events"
)

// Settlement liquida rodadas: paga vencedores, finaliza escrow dos perdedores
// e devolve apostas não pareadas.
type Settlement struct {
	led *ledger.Ledger
	log *zap.Logger
}

func NewSettlement(led *ledger.Ledger, log *zap.Logger) *Settlement {
	return &Settlement{led: led, log: log}
}

// Result é o desfecho de uma rodada liquidada.
type Result struct {
	WinningSide Side
	Payouts     []events.Payout
	Refunds     []events.Refund
	Corrections int
}

// plannedPayout é o payout calculado no primeiro passeio pelos pares.
type plannedPayout struct {
	winner *Wager
	loser  *Wager
	amount int64
}

// Resolve fecha a rodada corrente do book. Para cada par casado o vencedor
// recebe o próprio valor mais o valor do oponente; o escrow do perdedor é
// finalizado como gasto. Toda aposta ainda enfileirada é devolvida íntegra,
// independente de lado.
//
// Antes de aplicar, os payouts são recomputados por um segundo passeio
// independente pela lista de pares; divergência é sobrescrita pelo valor
// recomputado e registrada como correção na auditoria. Nunca confiar num
// único caminho de cálculo para movimentar crédito.
func (s *Settlement) Resolve(arenaID string, round int64, book *Book, winning Side) (*Result, error) {
	if !winning.Valid() {
		return nil, ErrInvalidSide
	}
	roundRef := fmt.Sprintf("%s#%d", arenaID, round)
	pairs := book.Pairs(SlotCurrent)

	// primeiro caminho: payout = valor do vencedor + valor do oponente
	planned := make([]plannedPayout, 0, len(pairs))
	for _, p := range pairs {
		winner := p.BySide(winning)
		loser := p.BySide(winning.Opposite())
		planned = append(planned, plannedPayout{
			winner: winner,
			loser:  loser,
			amount: winner.AmountCredits + loser.AmountCredits,
		})
	}

	// segundo caminho: re-percorre os pares e recomputa o esperado por aposta
	expected := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		expected[p.A.ID] = p.AmountCredits * 2
		expected[p.B.ID] = p.AmountCredits * 2
	}

	res := &Result{WinningSide: winning}
	for _, pp := range planned {
		amount := pp.amount
		if want := expected[pp.winner.ID]; amount != want {
			s.log.Warn("settlement payout mismatch, overriding with recomputed value",
				zap.String("arenaId", arenaID),
				zap.String("wagerId", pp.winner.ID),
				zap.Int64("planned", amount),
				zap.Int64("recomputed", want))
			s.led.RecordCorrection(pp.winner.UserID, want-amount, roundRef)
			amount = want
			res.Corrections++
		}

		if err := s.led.Finalize(pp.winner.EscrowID, roundRef); err != nil {
			return nil, fmt.Errorf("finalize winner escrow %s: %w", pp.winner.EscrowID, err)
		}
		if err := s.led.Finalize(pp.loser.EscrowID, roundRef); err != nil {
			return nil, fmt.Errorf("finalize loser escrow %s: %w", pp.loser.EscrowID, err)
		}
		newBal, err := s.led.Payout(pp.winner.UserID, amount, roundRef)
		if err != nil {
			return nil, fmt.Errorf("payout wager %s: %w", pp.winner.ID, err)
		}

		pp.winner.Status = StatusSettled
		pp.loser.Status = StatusSettled
		res.Payouts = append(res.Payouts, events.Payout{
			UserID:         pp.winner.UserID,
			WagerID:        pp.winner.ID,
			AmountCredits:  amount,
			NewBalance:     newBal,
			MatchedWagerID: pp.loser.ID,
		})
	}

	// apostas sem par são devolvidas na íntegra
	for _, w := range book.QueuedAll(SlotCurrent) {
		newBal, err := s.led.Release(w.EscrowID, roundRef)
		if err != nil {
			return nil, fmt.Errorf("refund wager %s: %w", w.ID, err)
		}
		w.Status = StatusRefunded
		res.Refunds = append(res.Refunds, events.Refund{
			UserID:        w.UserID,
			WagerID:       w.ID,
			AmountCredits: w.AmountCredits,
			NewBalance:    newBal,
		})
	}

	book.ClearCurrent()
	return res, nil
}
