package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/engine"
	"github.com/cuebet/pool-arena/internal/arena/ledger"
	"github.com/cuebet/pool-arena/internal/arena/state"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	led := ledger.New(zap.NewNop(), nil)
	t.Cleanup(led.Close)
	core := state.NewSynchronizer(led, engine.NewDenominations([]int64{10, 25, 50, 100, 250, 500}), zap.NewNop())
	hub := NewHub(core, zap.NewNop(), func(r *http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

// dialSession conecta e consome o ledgerUpdated inicial de abertura.
func dialSession(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var hello ServerMsg
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read opening message: %v", err)
	}
	if hello.Type != "ledgerUpdated" || hello.UserID != userID {
		t.Fatalf("expected opening ledgerUpdated for %s, got %+v", userID, hello)
	}
	return conn
}

func TestConnectSendsCurrentBalance(t *testing.T) {
	_, srv := newTestHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg ServerMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "ledgerUpdated" || msg.UserID != "u1" || msg.NewBalance != 0 {
		t.Fatalf("unexpected opening message: %+v", msg)
	}
}

// O reaper roda em goroutine própria enquanto o loop de leitura renova o
// heartbeat da sessão. Sob -race isso pega acesso não sincronizado ao
// carimbo de atividade.
func TestHeartbeatConcurrentWithReaper(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dialSession(t, srv, "u1")

	done := make(chan struct{})
	reaped := make(chan int, 1)
	go func() {
		total := 0
		for {
			select {
			case <-done:
				reaped <- total
				return
			default:
				total += hub.ReapStale(time.Hour)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		if err := conn.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
		var msg ServerMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("pong %d: %v", i, err)
		}
		if msg.Type != "pong" {
			t.Fatalf("expected pong, got %+v", msg)
		}
	}
	close(done)

	if total := <-reaped; total != 0 {
		t.Fatalf("active session reaped %d times", total)
	}
}

// Sessão autenticada que nunca assinou arena também expira por inatividade.
func TestReapStaleCoversUnsubscribedSessions(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dialSession(t, srv, "u1")

	time.Sleep(50 * time.Millisecond)
	if n := hub.ReapStale(time.Millisecond); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ServerMsg
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("expected closed connection, got %+v", msg)
	}
}

func TestReapStaleSparesActiveSessions(t *testing.T) {
	hub, srv := newTestHub(t)
	dialSession(t, srv, "parado")
	active := dialSession(t, srv, "ativo")

	time.Sleep(50 * time.Millisecond)
	if err := active.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var msg ServerMsg
	if err := active.ReadJSON(&msg); err != nil || msg.Type != "pong" {
		t.Fatalf("pong: %v %+v", err, msg)
	}

	if n := hub.ReapStale(40 * time.Millisecond); n != 1 {
		t.Fatalf("expected only the idle session reaped, got %d", n)
	}

	// a sessão ativa continua respondendo
	if err := active.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
		t.Fatalf("ping after sweep: %v", err)
	}
	if err := active.ReadJSON(&msg); err != nil || msg.Type != "pong" {
		t.Fatalf("pong after sweep: %v %+v", err, msg)
	}
}
