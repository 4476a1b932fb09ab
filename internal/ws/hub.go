package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Event is pushed to live dashboards. Every pipeline mutation produces one
// event which the hub delivers to observers of the owning session's channel
// and to observers of the global channel.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	AttemptID string         `json:"attempt_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Event types carried on the push channel.
const (
	EventStudentJoined    = "student-joined"
	EventStudentLeft      = "student-left"
	EventViolation        = "violation"
	EventStudentHeartbeat = "student-heartbeat"
)

type observerMessage struct {
	sessionID string
	payload   []byte
}

// Hub handles websocket observers watching attempt/violation events.
// Observers subscribe either to a single session's channel or to the global
// channel; delivery is best-effort, at-least-once, with no replay.
type Hub struct {
	register   chan *observer
	unregister chan *observer
	broadcast  chan observerMessage
	observers  map[*observer]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *observer),
		unregister: make(chan *observer),
		broadcast:  make(chan observerMessage, 256),
		observers:  make(map[*observer]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case o := <-h.register:
			h.observers[o] = struct{}{}
		case o := <-h.unregister:
			if _, ok := h.observers[o]; ok {
				delete(h.observers, o)
				close(o.send)
				o.conn.Close()
			}
		case msg := <-h.broadcast:
			for o := range h.observers {
				if !o.global && o.sessionID != msg.sessionID {
					continue
				}
				select {
				case o.send <- msg.payload:
				default:
					delete(h.observers, o)
					close(o.send)
					o.conn.Close()
				}
			}
		}
	}
}

// Publish pushes evt to all observers of the owning session and of the
// global channel. Safe on a nil hub.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ws: failed to marshal event: %v", err)
		return
	}
	h.broadcast <- observerMessage{
		sessionID: evt.SessionID,
		payload:   data,
	}
}

type observer struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	global    bool
}

func newObserver(hub *Hub, conn *websocket.Conn, sessionID string) *observer {
	return &observer{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		sessionID: sessionID,
		global:    sessionID == "",
	}
}

func (o *observer) readPump() {
	defer func() {
		o.hub.unregister <- o
	}()
	o.conn.SetReadLimit(512)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		o.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (o *observer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := o.conn.NextWriter(websocket.TextMessage)
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
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
