package ws

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/engine"
	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/internal/arena/state"
	"github.com/cuebet/pool-arena/internal/shared/metrics"
)

// session é uma conexão autenticada assinando exatamente uma arena por vez.
// O isolamento entre arenas é estrutural: a sessão só recebe o tópico da
// arena assinada.
type session struct {
	conn    *websocket.Conn
	userID  string
	arenaID string

	wmu sync.Mutex // serializa escritas na conexão

	// lastSeen guarda unix-nano: o loop de leitura escreve enquanto o
	// reaper lê de outra goroutine.
	lastSeen atomic.Int64
}

func (s *session) send(msg ServerMsg) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.WriteJSON(msg)
}

// Hub gerencia conexões WebSocket e assinaturas por arena.
// subs: mapeia arenaId para o conjunto de sessões inscritas.
type Hub struct {
	upgrader websocket.Upgrader
	core     *state.Synchronizer
	log      *zap.Logger

	// remote replica deltas originados aqui para as outras instâncias.
	remote state.Broadcaster

	mu     sync.RWMutex
	subs   map[string]map[*session]struct{}
	byUser map[string]map[*session]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(core *state.Synchronizer, log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		core:     core,
		log:      log,
		subs:     make(map[string]map[*session]struct{}),
		byUser:   make(map[string]map[*session]struct{}),
	}
}

// SetRemote liga a ponte entre instâncias (criada depois do hub).
func (h *Hub) SetRemote(bc state.Broadcaster) { h.remote = bc }

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// O userId vem resolvido pelo colaborador de autenticação na borda HTTP
// (aqui, query string já validada).
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := &session{conn: conn, userID: userID}
	sess.lastSeen.Store(time.Now().UnixNano())

	h.mu.Lock()
	if _, ok := h.byUser[userID]; !ok {
		h.byUser[userID] = make(map[*session]struct{})
	}
	h.byUser[userID][sess] = struct{}{}
	h.mu.Unlock()
	metrics.ActiveConnections.Inc()

	defer func() {
		h.drop(sess)
		conn.Close()
		metrics.ActiveConnections.Dec()
	}()

	// saldo corrente na abertura; hidrata a conta persistida na primeira vez
	sess.send(ServerMsg{Type: "ledgerUpdated", UserID: userID, NewBalance: h.core.Balance(userID)})

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		sess.lastSeen.Store(time.Now().UnixNano())
		h.dispatch(sess, msg)
	}
}

// dispatch aplica uma mensagem do cliente. Erros de validação voltam
// síncronos só para a conexão de origem, nunca em broadcast.
func (h *Hub) dispatch(sess *session, msg ClientMsg) {
	if msg.Type == "ping" {
		sess.send(ServerMsg{Type: "pong"})
		return
	}
	if msg.Type == "subscribe" {
		h.subscribe(sess, msg.ArenaID)
		return
	}

	// isolamento de arena: mensagem de arena não assinada é descartada
	if msg.ArenaID == "" || msg.ArenaID != sess.arenaID {
		h.log.Debug("arena mismatch, message discarded",
			zap.String("userId", sess.userID),
			zap.String("subscribed", sess.arenaID),
			zap.String("got", msg.ArenaID))
		return
	}

	switch msg.Type {
	case "placeWager":
		h.placeWager(sess, msg)
	case "cancelWager":
		h.cancelWager(sess, msg)
	case "resolveRound":
		h.resolveRound(sess, msg)
	case "requestSnapshot":
		snap := h.core.Snapshot(sess.arenaID)
		sess.send(ServerMsg{Type: "arenaSnapshot", ArenaID: snap.ArenaID, Snapshot: &snap})
	case "updateTable":
		if msg.Sides == nil {
			sess.send(errMsg("invalid_payload", "sides required"))
			return
		}
		if _, err := h.core.UpdateTable(sess.arenaID, *msg.Sides, engine.Side(msg.BreakingSide)); err != nil {
			sess.send(errMsg("invalid_side", err.Error()))
		}
	case "timerStart":
		h.core.TimerStart(sess.arenaID)
	case "timerPause":
		h.core.TimerPause(sess.arenaID)
	case "timerReset":
		h.core.TimerReset(sess.arenaID)
	case "timerHeartbeat":
		tv := h.core.TimerHeartbeat(sess.arenaID)
		sess.send(ServerMsg{Type: "timerTick", ArenaID: sess.arenaID, Timer: &tv})
	}
}

func (h *Hub) subscribe(sess *session, arenaID string) {
	if arenaID == "" {
		sess.send(errMsg("invalid_payload", "arenaId required"))
		return
	}
	h.mu.Lock()
	if sess.arenaID != "" {
		if set, ok := h.subs[sess.arenaID]; ok {
			delete(set, sess)
			if len(set) == 0 {
				delete(h.subs, sess.arenaID)
			}
		}
	}
	sess.arenaID = arenaID
	if _, ok := h.subs[arenaID]; !ok {
		h.subs[arenaID] = make(map[*session]struct{})
	}
	h.subs[arenaID][sess] = struct{}{}
	h.mu.Unlock()

	// assinatura nova nunca espera deltas: recebe o snapshot completo
	snap := h.core.Snapshot(arenaID)
	sess.send(ServerMsg{Type: "arenaSnapshot", ArenaID: arenaID, Snapshot: &snap})
}

// As operações com eco otimista chamam a arena direto: o fan-out local
// exclui a sessão de origem e a replicação remota vai pela ponte. O
// caminho via Synchronizer faria broadcast sem distinguir a origem.
func (h *Hub) placeWager(sess *session, msg ClientMsg) {
	out, err := h.core.Arena(sess.arenaID).PlaceWager(sess.userID, engine.Side(msg.Side), msg.AmountCredits, engine.RoundSlot(msg.RoundSlot))
	if err != nil {
		sess.send(errMsg(codeFor(err), err.Error()))
		return
	}
	if out.Matched != nil {
		sess.send(ServerMsg{Type: "wagerMatched", ArenaID: sess.arenaID, Wager: &out.Wager, Pair: out.Matched})
	} else {
		sess.send(ServerMsg{Type: "wagerQueued", ArenaID: sess.arenaID, Wager: &out.Wager})
	}
	h.fanOut(out.Delta, sess)
	h.forwardRemote(out.Delta)
}

func (h *Hub) cancelWager(sess *session, msg ClientMsg) {
	out, err := h.core.Arena(sess.arenaID).CancelWager(sess.userID, msg.WagerID)
	if err != nil {
		sess.send(errMsg(codeFor(err), err.Error()))
		return
	}
	sess.send(ServerMsg{Type: "wagerCanceled", ArenaID: sess.arenaID, Wager: &out.Wager})
	h.fanOut(out.Delta, sess)
	h.forwardRemote(out.Delta)
}

func (h *Hub) resolveRound(sess *session, msg ClientMsg) {
	out, err := h.core.Arena(sess.arenaID).ResolveRound(engine.Side(msg.WinningSide))
	if err != nil {
		sess.send(errMsg(codeFor(err), err.Error()))
		return
	}
	// o delta vai junto: quem liquidou também precisa do estado da nova rodada
	sess.send(ServerMsg{Type: "roundResolved", ArenaID: sess.arenaID, Resolution: &out.Resolution, Delta: &out.Delta})
	h.fanOut(out.Delta, sess)
	h.forwardRemote(out.Delta)
	h.core.PublishResolution(out.Resolution)
}

func (h *Hub) forwardRemote(d state.Delta) {
	if h.remote != nil {
		h.remote.BroadcastDelta(d)
	}
}

// fanOut aplica a política de eco:
//   - o delta de coleções vai para todos os outros assinantes da arena; a
//     origem já aplicou o valor otimista e reconcilia no próximo delta ou
//     snapshot;
//   - saldos vão para todas as sessões do próprio usuário, inclusive a de
//     origem, como mensagens ledgerUpdated.
func (h *Hub) fanOut(d state.Delta, origin *session) {
	h.mu.RLock()
	targets := make([]*session, 0)
	for s := range h.subs[d.ArenaID] {
		if s != origin {
			targets = append(targets, s)
		}
	}
	var balanceTargets []*session
	for userID := range d.Balances {
		for s := range h.byUser[userID] {
			balanceTargets = append(balanceTargets, s)
		}
	}
	h.mu.RUnlock()

	dc := d
	for _, s := range targets {
		s.send(ServerMsg{Type: "delta", ArenaID: d.ArenaID, Delta: &dc})
	}
	for _, s := range balanceTargets {
		s.send(ServerMsg{
			Type:       "ledgerUpdated",
			UserID:     s.userID,
			NewBalance: d.Balances[s.userID],
		})
	}
}

// BroadcastDelta implementa state.Broadcaster para deltas sem conexão de
// origem local (ticks de timer, deltas vindos da ponte Redis).
func (h *Hub) BroadcastDelta(d state.Delta) {
	h.fanOut(d, nil)
}

// drop remove a sessão de todas as estruturas ao desconectar.
func (h *Hub) drop(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sess.arenaID]; ok {
		delete(set, sess)
		if len(set) == 0 {
			delete(h.subs, sess.arenaID)
		}
	}
	if set, ok := h.byUser[sess.userID]; ok {
		delete(set, sess)
		if len(set) == 0 {
			delete(h.byUser, sess.userID)
		}
	}
}

// ReapStale encerra sessões sem heartbeat dentro da janela. Conexão sem
// heartbeat é tratada como perdida; o cliente reconcilia via snapshot ao
// reconectar. Varre byUser: toda sessão autenticada vive lá, mesmo as que
// nunca assinaram arena.
func (h *Hub) ReapStale(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle).UnixNano()

	h.mu.RLock()
	var stale []*session
	for _, set := range h.byUser {
		for s := range set {
			if s.lastSeen.Load() < cutoff {
				stale = append(stale, s)
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range stale {
		s.conn.Close() // o defer do HandleWS remove a sessão
	}
	return len(stale)
}

func errMsg(code, message string) ServerMsg {
	return ServerMsg{Type: "error", Code: code, Message: message}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, engine.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, engine.ErrNotCancelable):
		return "not_cancelable"
	case errors.Is(err, engine.ErrUnknownWager):
		return "unknown_wager"
	case errors.Is(err, engine.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, state.ErrNotWagerOwner):
		return "not_wager_owner"
	default:
		return "internal"
	}
}
