package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/internal/arena/state"
)

var ErrNotFound = errors.New("not found")

// Postgres implementa os colaboradores de persistência: trilha de auditoria,
// contas de usuário e snapshot final de arena. O estado autoritativo continua
// em memória; falha aqui nunca derruba leitura/escrita do núcleo.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// SaveAuditEntry persiste uma entrada de auditoria. O colaborador é o
// responsável pela retentativa: três tentativas com backoff curto.
func (p *Postgres) SaveAuditEntry(ctx context.Context, e ledger.AuditEntry) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO wager_audit (user_id, delta_credits, resulting_balance, reason, round_ref, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			e.UserID, e.DeltaCredits, e.ResultingBalance, e.Reason, e.RoundRef, e.At,
		)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("save audit entry: %w", err)
}

// LoadUserAccount retorna o saldo persistido de um usuário.
func (p *Postgres) LoadUserAccount(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance_credits FROM user_accounts WHERE user_id=$1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return balance, err
}

// SaveUserAccount grava o saldo corrente com lock pessimista na linha.
func (p *Postgres) SaveUserAccount(ctx context.Context, userID string, balance int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM user_accounts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO user_accounts(user_id, balance_credits, version) VALUES($1,$2,1)`,
			userID, balance); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if _, err = tx.ExecContext(ctx,
			`UPDATE user_accounts SET balance_credits=$1, version=version+1 WHERE user_id=$2`,
			balance, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveArenaState persiste o snapshot de arena como jsonb.
func (p *Postgres) SaveArenaState(ctx context.Context, st state.ArenaState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO arena_states (arena_id, state, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (arena_id) DO UPDATE SET state=$2::jsonb, updated_at=$3`,
		st.ArenaID, string(raw), time.Now(),
	)
	return err
}

// LoadArenaState recupera o último snapshot persistido de uma arena.
func (p *Postgres) LoadArenaState(ctx context.Context, arenaID string) (state.ArenaState, error) {
	var raw string
	err := p.db.QueryRowContext(ctx,
		`SELECT state FROM arena_states WHERE arena_id=$1`, arenaID).Scan(&raw)
	if err == sql.ErrNoRows {
		return state.ArenaState{}, ErrNotFound
	}
	if err != nil {
		return state.ArenaState{}, err
	}
	var st state.ArenaState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return state.ArenaState{}, err
	}
	return st, nil
}
