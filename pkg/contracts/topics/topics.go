package topics

const (
	// Liquidação de rodadas
	RoundResolved = "round_resolved"

	// Trilha de auditoria do ledger
	AuditRecorded = "audit_recorded"

	// DLQs
	RoundResolvedDLQ = "round_resolved_dlq"
	AuditRecordedDLQ = "audit_recorded_dlq"
)
