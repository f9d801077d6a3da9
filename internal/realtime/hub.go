package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const writeTimeout = 5 * time.Second

func UserRoom(userID string) string { return "user:" + userID }

func PostRoom(postID string) string { return "post:" + postID }

// Event es el frame JSON intercambiado en ambos sentidos.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

type peer struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	userID string
}

func newPeer(conn *websocket.Conn, userID string) *peer {
	return &peer{conn: conn, userID: userID}
}

func (p *peer) write(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return websocket.JSON.Send(p.conn, ev)
}

// Hub mantiene la membresía de salas y reparte eventos.
type Hub struct {
	logger *zap.Logger

	mu    sync.Mutex
	rooms map[string]map[*peer]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, rooms: make(map[string]map[*peer]struct{})}
}

func (h *Hub) join(room string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*peer]struct{})
		h.rooms[room] = members
	}
	members[p] = struct{}{}
}

func (h *Hub) leave(room string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, p)
}

func (h *Hub) leaveAll(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.removeLocked(room, p)
	}
}

func (h *Hub) removeLocked(room string, p *peer) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, p)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Members cuenta las conexiones en una sala.
func (h *Hub) Members(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Emit envía el evento a todas las conexiones de la sala. Los errores de
// escritura se loguean; la conexión rota se limpia al cerrar su loop.
func (h *Hub) Emit(room, name string, payload any) {
	ev, err := newEvent(name, payload)
	if err != nil {
		h.logger.Error("marshal realtime event failed", zap.String("event", name), zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]*peer, 0, len(h.rooms[room]))
	for p := range h.rooms[room] {
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		if err := p.write(ev); err != nil {
			h.logger.Warn("realtime emit failed",
				zap.String("room", room),
				zap.String("event", name),
				zap.String("user_id", p.userID),
				zap.Error(err),
			)
		}
	}
}
