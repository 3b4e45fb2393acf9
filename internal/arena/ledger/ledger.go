package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownEscrow       = errors.New("escrow entry not found")
	ErrEscrowFinalized     = errors.New("escrow entry already finalized")
)

type EscrowStatus string

const (
	EscrowPending   EscrowStatus = "PENDING"
	EscrowCommitted EscrowStatus = "COMMITTED"
	EscrowReleased  EscrowStatus = "RELEASED"
)

// EscrowEntry representa créditos debitados do saldo mas ainda não finalizados.
// Criado na colocação da aposta; liquidado (COMMITTED) ou devolvido (RELEASED).
type EscrowEntry struct {
	ID            string
	UserID        string
	WagerID       string
	AmountCredits int64
	Status        EscrowStatus
	CreatedAt     time.Time
}

// AuditEntry registra cada mutação do ledger. Append-only.
type AuditEntry struct {
	UserID           string
	DeltaCredits     int64
	ResultingBalance int64
	Reason           string // "deposit" | "escrow" | "release" | "finalize" | "payout" | "settlement_correction"
	RoundRef         string
	At               time.Time
}

// AuditSink é o colaborador de persistência da trilha de auditoria.
// Retentativas em caso de falha são responsabilidade do colaborador.
type AuditSink interface {
	SaveAuditEntry(ctx context.Context, e AuditEntry) error
}

// AccountLoader hidrata o saldo persistido de contas ainda não vistas nesta
// instância. Erro (inclusive conta inexistente) resulta em saldo zero.
type AccountLoader interface {
	LoadUserAccount(ctx context.Context, userID string) (int64, error)
}

// Ledger mantém saldos e entradas de escrow em memória, fonte única de verdade.
// Invariante de conservação: Σ saldo + Σ escrow PENDING só muda via Deposit.
type Ledger struct {
	mu       sync.Mutex
	log      *zap.Logger
	balances map[string]int64
	escrows  map[string]*EscrowEntry
	journal  []AuditEntry
	loader   AccountLoader

	auditCh chan AuditEntry
	done    chan struct{}
}

func New(log *zap.Logger, sink AuditSink) *Ledger {
	l := &Ledger{
		log:      log,
		balances: make(map[string]int64),
		escrows:  make(map[string]*EscrowEntry),
		auditCh:  make(chan AuditEntry, 1024),
		done:     make(chan struct{}),
	}
	go l.forwardAudits(sink)
	return l
}

// forwardAudits entrega entradas ao sink fora da seção crítica.
// Nunca bloqueia operações do ledger.
func (l *Ledger) forwardAudits(sink AuditSink) {
	for {
		select {
		case <-l.done:
			return
		case e := <-l.auditCh:
			if sink == nil {
				continue
			}
			if err := sink.SaveAuditEntry(context.Background(), e); err != nil {
				l.log.Warn("audit sink write failed",
					zap.String("userId", e.UserID),
					zap.String("reason", e.Reason),
					zap.Error(err))
			}
		}
	}
}

func (l *Ledger) Close() { close(l.done) }

// SetAccountLoader liga o colaborador de hidratação de contas persistidas.
// Chamar antes de servir tráfego.
func (l *Ledger) SetAccountLoader(loader AccountLoader) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loader = loader
}

// hydrate garante a conta em memória, buscando o saldo persistido na
// primeira vez que o usuário aparece. A busca roda fora da seção crítica.
func (l *Ledger) hydrate(userID string) int64 {
	l.mu.Lock()
	if bal, ok := l.balances[userID]; ok {
		l.mu.Unlock()
		return bal
	}
	loader := l.loader
	l.mu.Unlock()

	var bal int64
	if loader != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		b, err := loader.LoadUserAccount(ctx, userID)
		cancel()
		if err == nil {
			bal = b
		} else {
			l.log.Debug("account hydrate miss", zap.String("userId", userID), zap.Error(err))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[userID]; ok {
		return b // hidratação concorrente chegou antes
	}
	l.balances[userID] = bal
	return bal
}

// record anota a mutação no journal e encaminha ao sink. Chamar com mu preso.
func (l *Ledger) record(userID string, delta int64, reason, roundRef string) AuditEntry {
	e := AuditEntry{
		UserID:           userID,
		DeltaCredits:     delta,
		ResultingBalance: l.balances[userID],
		Reason:           reason,
		RoundRef:         roundRef,
		At:               time.Now(),
	}
	l.journal = append(l.journal, e)
	select {
	case l.auditCh <- e:
	default:
		l.log.Warn("audit channel full, entry kept in journal only",
			zap.String("userId", userID), zap.String("reason", reason))
	}
	return e
}

// GetOrCreate garante a existência da conta e retorna o saldo atual,
// hidratando do armazenamento persistente na primeira vez.
func (l *Ledger) GetOrCreate(userID string) int64 {
	return l.hydrate(userID)
}

// Balance retorna o saldo disponível. Escrow já foi debitado na reserva,
// então disponível == saldo.
func (l *Ledger) Balance(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

// Deposit credita saldo por ação administrativa externa. Única operação
// que altera o total conservado.
func (l *Ledger) Deposit(userID string, amount int64, ref string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.hydrate(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
	l.record(userID, amount, "deposit", ref)
	return l.balances[userID], nil
}

// Escrow debita o saldo e cria uma entrada PENDING vinculada à aposta.
func (l *Ledger) Escrow(userID, wagerID string, amount int64, roundRef string) (*EscrowEntry, int64, error) {
	if amount <= 0 {
		return nil, 0, ErrInvalidAmount
	}
	l.hydrate(userID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[userID] < amount {
		return nil, l.balances[userID], ErrInsufficientCredits
	}

	l.balances[userID] -= amount
	entry := &EscrowEntry{
		ID:            uuid.NewString(),
		UserID:        userID,
		WagerID:       wagerID,
		AmountCredits: amount,
		Status:        EscrowPending,
		CreatedAt:     time.Now(),
	}
	l.escrows[entry.ID] = entry
	l.record(userID, -amount, "escrow", roundRef)
	return entry, l.balances[userID], nil
}

// Release devolve integralmente uma entrada PENDING ao saldo do dono.
// Idempotente por entrada: liberar duas vezes não duplica a devolução.
func (l *Ledger) Release(entryID, roundRef string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.escrows[entryID]
	if !ok {
		return 0, ErrUnknownEscrow
	}
	switch entry.Status {
	case EscrowReleased:
		return l.balances[entry.UserID], nil // já devolvido
	case EscrowCommitted:
		return l.balances[entry.UserID], ErrEscrowFinalized
	}

	entry.Status = EscrowReleased
	l.balances[entry.UserID] += entry.AmountCredits
	l.record(entry.UserID, entry.AmountCredits, "release", roundRef)
	return l.balances[entry.UserID], nil
}

// Finalize marca a entrada como gasta na liquidação. O débito já ocorreu
// na reserva; aqui só muda o estado e registra auditoria.
func (l *Ledger) Finalize(entryID, roundRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.escrows[entryID]
	if !ok {
		return ErrUnknownEscrow
	}
	switch entry.Status {
	case EscrowCommitted:
		return nil // idempotente
	case EscrowReleased:
		return ErrEscrowFinalized
	}

	entry.Status = EscrowCommitted
	l.record(entry.UserID, 0, "finalize", roundRef)
	return nil
}

// Payout credita o prêmio de liquidação ao vencedor.
func (l *Ledger) Payout(userID string, amount int64, roundRef string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
	l.record(userID, amount, "payout", roundRef)
	return l.balances[userID], nil
}

// RecordCorrection registra na auditoria uma divergência de payout corrigida
// pela verificação da liquidação. delta é a diferença sobrescrita; o saldo já
// reflete o valor recomputado, então nada muda aqui.
func (l *Ledger) RecordCorrection(userID string, delta int64, roundRef string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(userID, delta, "settlement_correction", roundRef)
}

// PendingTotal soma o escrow ainda não liquidado nem devolvido.
func (l *Ledger) PendingTotal() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, e := range l.escrows {
		if e.Status == EscrowPending {
			total += e.AmountCredits
		}
	}
	return total
}

// ConservationTotal retorna Σ saldos + Σ escrow PENDING. Constante sob
// matching e liquidação; muda apenas por Deposit.
func (l *Ledger) ConservationTotal() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, b := range l.balances {
		total += b
	}
	for _, e := range l.escrows {
		if e.Status == EscrowPending {
			total += e.AmountCredits
		}
	}
	return total
}

// Journal retorna uma cópia da trilha de auditoria em memória.
func (l *Ledger) Journal() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.journal))
	copy(out, l.journal)
	return out
}
