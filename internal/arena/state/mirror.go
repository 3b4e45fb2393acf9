package state

// SyncState é a máquina de estados de uma assinatura cliente-arena.
//
//	Disconnected → Connecting → AwaitingSnapshot → Synchronized
//	Synchronized → Stale (perda de visibilidade ou timeout) → AwaitingSnapshot
//
// A única ação de recuperação é requestSnapshot: o snapshot completo é
// sempre autoritativo sobre qualquer estado local, otimista ou não.
type SyncState int

const (
	Disconnected SyncState = iota
	Connecting
	AwaitingSnapshot
	Synchronized
	Stale
)

func (s SyncState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case AwaitingSnapshot:
		return "awaiting_snapshot"
	case Synchronized:
		return "synchronized"
	case Stale:
		return "stale"
	default:
		return "disconnected"
	}
}

// Mirror é o espelho somente-leitura que um cliente mantém de uma arena.
// Nunca muta estado autoritativo; só aplica snapshots e deltas do servidor,
// mais ecos otimistas marcados como tentativos.
type Mirror struct {
	ArenaID string
	State   SyncState
	View    ArenaState

	tentative []WagerView
}

func NewMirror(arenaID string) *Mirror {
	return &Mirror{ArenaID: arenaID, State: Disconnected}
}

// Connect inicia a conexão; o próximo passo é pedir o snapshot.
func (m *Mirror) Connect() {
	m.State = Connecting
}

// OnConnected entra em AwaitingSnapshot. NeedsSnapshot passa a responder
// true até o snapshot chegar.
func (m *Mirror) OnConnected() {
	m.State = AwaitingSnapshot
}

// NeedsSnapshot diz se a ação de recuperação (requestSnapshot) está pendente.
func (m *Mirror) NeedsSnapshot() bool {
	return m.State == AwaitingSnapshot
}

// MarkStale registra perda de visibilidade ou timeout.
func (m *Mirror) MarkStale() {
	if m.State == Synchronized {
		m.State = Stale
	}
}

// Recover dispara a única ação de recuperação: voltar a AwaitingSnapshot e
// pedir o snapshot completo.
func (m *Mirror) Recover() {
	if m.State == Stale || m.State == Connecting {
		m.State = AwaitingSnapshot
	}
}

// Disconnect zera a assinatura.
func (m *Mirror) Disconnect() {
	m.State = Disconnected
	m.tentative = nil
}

// ApplySnapshot substitui o espelho inteiro pelo estado autoritativo.
// Snapshots de outra arena são descartados. Ecos tentativos são largados:
// o snapshot é a verdade.
func (m *Mirror) ApplySnapshot(st ArenaState) bool {
	if st.ArenaID != m.ArenaID {
		return false
	}
	m.View = st
	m.tentative = nil
	m.State = Synchronized
	return true
}

// ApplyDelta aplica uma atualização incremental. Mensagens de arena
// diferente da assinada são descartadas (isolamento de arena). Campos com
// marcador de presença substituem a coleção local por inteiro — vazio
// significa limpo, nunca "preserve o local".
func (m *Mirror) ApplyDelta(d Delta) bool {
	if d.ArenaID != m.ArenaID || m.State != Synchronized {
		return false
	}

	if d.Round != nil {
		m.View.RoundNumber = *d.Round
	}
	if d.Sides != nil {
		m.View.Sides = *d.Sides
	}
	if d.BreakingSide != nil {
		m.View.BreakingSide = *d.BreakingSide
	}
	if d.Queues != nil {
		// substituição, não merge: apaga também qualquer eco tentativo
		m.View.Queues = *d.Queues
		m.tentative = nil
	}
	if d.MatchedPairs != nil {
		m.View.MatchedPairs = *d.MatchedPairs
	}
	if d.Timer != nil {
		m.View.Timer = *d.Timer
	}
	if d.Seq > 0 {
		m.View.Seq = d.Seq
	}
	return true
}

// PlaceTentative aplica o eco otimista local de uma colocação. A entrada é
// marcada como tentativa e será substituída (não mesclada) pelo próximo
// delta ou snapshot autoritativo.
func (m *Mirror) PlaceTentative(w WagerView) {
	w.Tentative = true
	m.tentative = append(m.tentative, w)
	q := &m.View.Queues.Current
	if w.Slot == "next" {
		q = &m.View.Queues.Next
	}
	if w.Side == "A" {
		q.A = append(q.A, w)
	} else {
		q.B = append(q.B, w)
	}
}

// TentativeCount informa quantos ecos otimistas aguardam confirmação.
func (m *Mirror) TentativeCount() int { return len(m.tentative) }
