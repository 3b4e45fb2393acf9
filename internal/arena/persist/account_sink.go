package persist

import (
	"context"

	"github.com/cuebet/pool-arena/internal/arena/ledger"
)

// AccountRepo grava o saldo corrente de um usuário.
type AccountRepo interface {
	SaveUserAccount(ctx context.Context, userID string, balance int64) error
}

// AccountSink espelha cada mutação do ledger no saldo persistido da conta.
// Cada entrada de auditoria já carrega o saldo resultante, então basta
// sobrescrever. Roda dentro da goroutine do sink do ledger, que entrega as
// entradas em ordem.
type AccountSink struct {
	Repo AccountRepo
}

func (s AccountSink) SaveAuditEntry(ctx context.Context, e ledger.AuditEntry) error {
	return s.Repo.SaveUserAccount(ctx, e.UserID, e.ResultingBalance)
}
