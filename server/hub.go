package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brettbedarf/webtree/internal/util"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

// subscriber is one websocket connection receiving tree updates
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans committed snapshots out to a session's subscribers
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

// add registers conn and queues the message built by initial as its first
// message. initial runs under the hub lock, so no broadcast can slip in
// between reading the current tree and registering the subscriber.
func (h *hub) add(conn *websocket.Conn, initial func() ([]byte, error)) (*subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg, err := initial()
	if err != nil {
		return nil, err
	}
	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	s.send <- msg
	h.subs[s] = struct{}{}
	return s, nil
}

// remove unregisters s; safe to call more than once
func (h *hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// broadcast queues msg for every subscriber without blocking. A subscriber
// whose buffer is full is dropped; it can reconnect and fetch the tree again.
func (h *hub) broadcast(msg []byte) {
	logger := util.GetLogger("hub.broadcast")

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			logger.Warn().Str("remote", s.conn.RemoteAddr().String()).Msg("Dropping slow subscriber")
			delete(h.subs, s)
			close(s.send)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}

// writePump drains s.send into the connection until the channel is closed
func (s *subscriber) writePump() {
	defer s.conn.Close()
	for msg := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
