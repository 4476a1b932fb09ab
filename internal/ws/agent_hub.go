package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// AgentMessage is pushed to the locked client that owns an attempt. The
// poll-based status endpoint remains the fallback for clients that miss it.
type AgentMessage struct {
	Type    string `json:"type"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

const AgentTerminate = "terminate"

type agentNotification struct {
	attemptID string
	payload   []byte
}

// AgentHub tracks at most one live connection per attempt.
type AgentHub struct {
	register   chan *agentClient
	unregister chan *agentClient
	notify     chan agentNotification
	clients    map[string]*agentClient
}

func NewAgentHub() *AgentHub {
	return &AgentHub{
		register:   make(chan *agentClient),
		unregister: make(chan *agentClient),
		notify:     make(chan agentNotification, 256),
		clients:    make(map[string]*agentClient),
	}
}

func (h *AgentHub) Run() {
	for {
		select {
		case client := <-h.register:
			if existing, ok := h.clients[client.attemptID]; ok {
				existing.conn.Close()
			}
			h.clients[client.attemptID] = client
		case client := <-h.unregister:
			if stored, ok := h.clients[client.attemptID]; ok && stored == client {
				delete(h.clients, client.attemptID)
			}
		case msg := <-h.notify:
			if client, ok := h.clients[msg.attemptID]; ok {
				select {
				case client.send <- msg.payload:
				default:
					client.conn.Close()
					delete(h.clients, msg.attemptID)
				}
			}
		}
	}
}

// Notify pushes message to the client holding attemptID, if connected.
func (h *AgentHub) Notify(attemptID string, message AgentMessage) {
	if h == nil {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	h.notify <- agentNotification{
		attemptID: attemptID,
		payload:   data,
	}
}

type agentClient struct {
	hub       *AgentHub
	conn      *websocket.Conn
	send      chan []byte
	attemptID string
}

func newAgentClient(hub *AgentHub, conn *websocket.Conn, attemptID string) *agentClient {
	return &agentClient{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 64),
		attemptID: attemptID,
	}
}

func (c *agentClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *agentClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
