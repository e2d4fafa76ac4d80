package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientMsg é o protocolo de controle do cliente WebSocket.
type clientMsg struct {
	Type   string `json:"type"` // subscribe | unsubscribe | ping
	GameID string `json:"game_id,omitempty"`
}

// wsClient embrulha a conexão com um lock de escrita; gorilla/websocket não
// tolera escritas concorrentes.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por jogo. Cada cliente pode
// se inscrever em múltiplos jogos; clientes com erro de escrita são
// removidos de todas as assinaturas.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	// gameID -> conjunto de clientes inscritos
	subs map[string]map[*wsClient]struct{}

	// Métricas de conexão, ligadas no main.
	OnConnect    func()
	OnDisconnect func()
}

// NewHub cria o hub com política customizada de origem (CORS).
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*wsClient]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket: subscribe e
// unsubscribe por game_id e resposta a pings.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn}
	defer conn.Close()

	h.log.Info("ws client connected", zap.String("remote", r.RemoteAddr))
	if h.OnConnect != nil {
		h.OnConnect()
	}
	defer func() {
		h.removeEverywhere(client)
		h.log.Info("ws client disconnected", zap.String("remote", r.RemoteAddr))
		if h.OnDisconnect != nil {
			h.OnDisconnect()
		}
	}()

	for {
		var msg clientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.GameID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.GameID]; !ok {
				h.subs[msg.GameID] = make(map[*wsClient]struct{})
			}
			h.subs[msg.GameID][client] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.GameID]; ok {
				delete(m, client)
				if len(m) == 0 {
					delete(h.subs, msg.GameID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = client.writeJSON(map[string]string{"type": "pong"})
		}
	}
}

// Broadcast envia o evento para todos os clientes inscritos no jogo.
// Clientes com falha de escrita são descartados.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.subs[ev.GameID]))
	for c := range h.subs[ev.GameID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(payload); err != nil {
			h.log.Warn("ws write failed, dropping client", zap.Error(err))
			h.removeEverywhere(c)
			_ = c.conn.Close()
		}
	}
}

// Run consome eventos do barramento e os retransmite até o contexto ou o
// canal encerrarem.
func (h *Hub) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

func (h *Hub) removeEverywhere(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for gameID, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, gameID)
		}
	}
}
