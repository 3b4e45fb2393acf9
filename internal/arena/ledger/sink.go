package ledger

import "context"

// MultiSink encaminha cada entrada de auditoria a todos os sinks.
// Uma falha não impede a entrega aos demais; o primeiro erro é retornado.
type MultiSink []AuditSink

func (m MultiSink) SaveAuditEntry(ctx context.Context, e AuditEntry) error {
	var first error
	for _, s := range m {
		if err := s.SaveAuditEntry(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
