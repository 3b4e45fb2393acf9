package events

import "time"

// Evento publicado no tópico "audit_recorded" a cada mutação do ledger.
// O audit-worker consome e persiste no Postgres.
type AuditRecorded struct {
	UserID           string    `json:"user_id"`
	DeltaCredits     int64     `json:"delta_credits"`
	ResultingBalance int64     `json:"resulting_balance"`
	Reason           string    `json:"reason"` // "escrow" | "release" | "finalize" | "payout" | "deposit" | "settlement_correction"
	RoundRef         string    `json:"round_ref,omitempty"`
	Ts               time.Time `json:"ts"`
}
