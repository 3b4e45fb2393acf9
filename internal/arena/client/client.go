package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/state"
	"github.com/cuebet/pool-arena/internal/arena/ws"
)

// Client é um cliente WebSocket que assina uma arena e mantém um espelho
// local sincronizado. Em caso de desconexão, reconecta com backoff e a
// recuperação é sempre a mesma: assinar de novo e pedir o snapshot completo.
type Client struct {
	URL     string // endpoint WS do serviço de arena
	ArenaID string
	UserID  string
	Log     *zap.Logger

	Mirror *state.Mirror

	// OnMessage, quando definido, recebe cada mensagem do servidor depois
	// de aplicada ao espelho.
	OnMessage func(msg ws.ServerMsg)

	mu   sync.Mutex
	conn *websocket.Conn

	// mirMu protege o espelho: o loop de leitura aplica mensagens enquanto
	// o chamador consulta View().
	mirMu sync.Mutex
}

func New(wsURL, arenaID, userID string, log *zap.Logger) *Client {
	return &Client{
		URL:     wsURL,
		ArenaID: arenaID,
		UserID:  userID,
		Log:     log.With(zap.String("arenaId", arenaID), zap.String("userId", userID)),
		Mirror:  state.NewMirror(arenaID),
	}
}

// Start inicia o loop de conexão e escuta. Em caso de queda, marca o
// espelho como desatualizado e tenta reconectar.
func (c *Client) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping arena client")
			c.withMirror(func() { c.Mirror.Disconnect() })
			return
		default:
			if err := c.connectAndListen(ctx); err != nil {
				c.Log.Warn("connection closed", zap.Error(err))
				c.withMirror(func() { c.Mirror.MarkStale() })
				time.Sleep(3 * time.Second)
			}
		}
	}
}

// connectAndListen estabelece a conexão, assina a arena e processa as
// mensagens até a conexão cair.
func (c *Client) connectAndListen(ctx context.Context) error {
	c.withMirror(func() { c.Mirror.Connect() })

	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("userId", c.UserID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.Log.Info("connected to arena WS", zap.String("url", c.URL))

	c.withMirror(func() {
		c.Mirror.OnConnected()
		c.Mirror.Recover()
	})
	if err := c.Send(ws.ClientMsg{Type: "subscribe", ArenaID: c.ArenaID}); err != nil {
		return err
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var msg ws.ServerMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Log.Warn("invalid message", zap.Error(err))
			continue
		}
		c.apply(msg)
		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}

// apply reflete a mensagem no espelho local. Snapshots curam qualquer
// estado; deltas só entram quando o espelho está sincronizado.
func (c *Client) apply(msg ws.ServerMsg) {
	switch msg.Type {
	case "arenaSnapshot":
		if msg.Snapshot != nil {
			c.withMirror(func() { c.Mirror.ApplySnapshot(*msg.Snapshot) })
		}
	case "delta", "roundResolved":
		if msg.Delta != nil {
			c.withMirror(func() { c.Mirror.ApplyDelta(*msg.Delta) })
		}
	case "timerTick":
		// respostas de heartbeat trazem só o relógio, sem delta
		c.withMirror(func() {
			switch {
			case msg.Delta != nil:
				c.Mirror.ApplyDelta(*msg.Delta)
			case msg.Timer != nil:
				c.Mirror.ApplyDelta(state.Delta{ArenaID: c.ArenaID, Timer: msg.Timer})
			}
		})
	case "error":
		c.Log.Warn("server rejected request",
			zap.String("code", msg.Code), zap.String("message", msg.Message))
	}
}

// Send envia uma mensagem ao servidor. Seguro para uso concorrente.
func (c *Client) Send(msg ws.ClientMsg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteJSON(msg)
}

// PlaceWager coloca uma aposta e aplica o eco otimista no espelho. O eco é
// substituído pelo próximo delta autoritativo do servidor.
func (c *Client) PlaceWager(side string, amount int64, slot string) error {
	err := c.Send(ws.ClientMsg{
		Type:          "placeWager",
		ArenaID:       c.ArenaID,
		Side:          side,
		AmountCredits: amount,
		RoundSlot:     slot,
	})
	if err != nil {
		return err
	}
	c.withMirror(func() {
		c.Mirror.PlaceTentative(state.WagerView{
			UserID:        c.UserID,
			Side:          side,
			AmountCredits: amount,
			Slot:          slot,
			Status:        "QUEUED",
		})
	})
	return nil
}

// CancelWager pede o cancelamento de uma aposta ainda na fila.
func (c *Client) CancelWager(wagerID string) error {
	return c.Send(ws.ClientMsg{Type: "cancelWager", ArenaID: c.ArenaID, WagerID: wagerID})
}

// ResolveRound declara o lado vencedor e liquida a rodada corrente.
func (c *Client) ResolveRound(winningSide string) error {
	return c.Send(ws.ClientMsg{Type: "resolveRound", ArenaID: c.ArenaID, WinningSide: winningSide})
}

// RequestSnapshot dispara a ação de recuperação manual.
func (c *Client) RequestSnapshot() error {
	c.withMirror(func() { c.Mirror.Recover() })
	return c.Send(ws.ClientMsg{Type: "requestSnapshot", ArenaID: c.ArenaID})
}

// View devolve uma cópia do estado espelhado, segura para uso concorrente.
func (c *Client) View() state.ArenaState {
	c.mirMu.Lock()
	defer c.mirMu.Unlock()
	return c.Mirror.View
}

// State devolve o estado corrente da máquina de sincronização.
func (c *Client) State() state.SyncState {
	c.mirMu.Lock()
	defer c.mirMu.Unlock()
	return c.Mirror.State
}

func (c *Client) withMirror(fn func()) {
	c.mirMu.Lock()
	defer c.mirMu.Unlock()
	fn()
}
