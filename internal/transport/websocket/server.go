package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Dashboard origin is enforced by the reverse proxy in deployment.
		return true
	},
}

// Hub fans queued events out to every open socket of the addressed user.
// Sessions attach and detach under the lock; delivery never blocks on a slow
// consumer.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]map[*session]struct{}

	events chan *Message
}

type session struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	out    chan *Message
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[int64]map[*session]struct{}),
		events:   make(chan *Message, 256),
	}
}

// Run dispatches queued events until ctx is cancelled, then closes every open
// socket so the pump goroutines unwind and detach themselves.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.events:
			h.deliver(msg)
		}
	}
}

// Broadcast queues an event for every open socket of the user. Never blocks;
// when the queue is full the event is dropped.
func (h *Hub) Broadcast(userID int64, msg *Message) {
	msg.UserID = userID
	select {
	case h.events <- msg:
	default:
		log.Printf("event queue full, dropping %s for user %d", msg.Type, userID)
	}
}

func (h *Hub) deliver(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions[msg.UserID] {
		select {
		case s.out <- msg:
		default:
			// slow consumer, drop the event rather than stall the hub
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var open []*session
	for _, set := range h.sessions {
		for s := range set {
			open = append(open, s)
		}
	}
	h.mu.RUnlock()

	// close outside the lock; detach runs from the read pumps
	for _, s := range open {
		_ = s.conn.Close()
	}
}

func (h *Hub) attach(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.userID] == nil {
		h.sessions[s.userID] = make(map[*session]struct{})
	}
	h.sessions[s.userID][s] = struct{}{}
}

func (h *Hub) detach(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[s.userID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.out)
	if len(set) == 0 {
		delete(h.sessions, s.userID)
	}
}

// HandleWebSocket upgrades the request and starts the session pumps. The
// caller has already authenticated userID.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	s := &session{
		hub:    h,
		conn:   conn,
		userID: userID,
		out:    make(chan *Message, 64),
	}
	h.attach(s)

	go s.writeLoop()
	go s.readLoop()
}

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = pongTimeout * 9 / 10
)

// readLoop discards inbound frames; its job is pong bookkeeping and noticing
// the peer going away.
func (s *session) readLoop() {
	defer func() {
		s.hub.detach(s)
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
