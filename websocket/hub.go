package websocket

import (
	"context"
	"sync"

	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/metrics"
	"github.com/google/uuid"
)

// Conn is the write side of a socket. *websocket.Conn from gofiber/contrib satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Envelope is the frame exchanged with clients in both directions.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

const (
	TargetUser = "user"
	TargetRole = "role"
	TargetRoom = "room"
	TargetAll  = "all"
)

// Delivery addresses one envelope. It is what travels over the cross-instance bus.
type Delivery struct {
	Target   string    `json:"target"`
	Key      string    `json:"key,omitempty"`
	ExceptID uuid.UUID `json:"exceptId,omitempty"`
	Envelope Envelope  `json:"envelope"`
}

// Bus fans deliveries out to every instance, this one included.
type Bus interface {
	Publish(ctx context.Context, d Delivery) error
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Role   string
	conn   Conn

	writeMu sync.Mutex
	rooms   map[string]struct{}
}

func NewClient(userID uuid.UUID, role string, conn Conn) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		rooms:  make(map[string]struct{}),
	}
}

// Send writes directly to this connection.
func (c *Client) Send(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func RoleRoom(role string) string { return "role:" + role }

type Hub struct {
	log logger.Logger
	bus Bus

	mu      sync.RWMutex
	clients map[*Client]struct{}
	users   map[uuid.UUID]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliveries chan Delivery
	done       chan struct{}
}

// NewHub builds a hub. bus may be nil for single-instance deployments.
func NewHub(log logger.Logger, bus Bus) *Hub {
	return &Hub{
		log:        log,
		bus:        bus,
		clients:    make(map[*Client]struct{}),
		users:      make(map[uuid.UUID]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan Delivery, 256),
		done:       make(chan struct{}),
	}
}

// Start subscribes to the bus, when present, and runs the hub loop until ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	var remote <-chan Delivery
	if h.bus != nil {
		ch, err := h.bus.Subscribe(ctx)
		if err != nil {
			return err
		}
		remote = ch
	}
	go h.run(ctx, remote)
	return nil
}

func (h *Hub) run(ctx context.Context, remote <-chan Delivery) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case d := <-h.deliveries:
			h.deliver(d)
		case d, ok := <-remote:
			if !ok {
				remote = nil
				continue
			}
			h.deliver(d)
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[*Client]struct{})
	}
	h.users[c.UserID][c] = struct{}{}
	h.joinLocked(c, RoleRoom(c.Role))
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.log.Debug("Client registered", map[string]interface{}{"userId": c.UserID.String(), "role": c.Role})
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	if set := h.users[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()

	_ = c.conn.Close()
	metrics.WSConnections.Dec()
	h.log.Debug("Client unregistered", map[string]interface{}{"userId": c.UserID.String()})
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	h.joinLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// JoinUserRoom subscribes every local connection of userID to room.
func (h *Hub) JoinUserRoom(userID uuid.UUID, room string) {
	h.mu.Lock()
	for c := range h.users[userID] {
		h.joinLocked(c, room)
	}
	h.mu.Unlock()
}

func (h *Hub) LeaveUserRoom(userID uuid.UUID, room string) {
	h.mu.Lock()
	for c := range h.users[userID] {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()
}

func (h *Hub) joinLocked(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if set := h.rooms[room]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) SendToUser(userID uuid.UUID, event string, data interface{}) {
	h.emit(Delivery{Target: TargetUser, Key: userID.String(), Envelope: Envelope{Event: event, Data: data}})
}

func (h *Hub) SendToRole(role string, event string, data interface{}) {
	h.emit(Delivery{Target: TargetRole, Key: role, Envelope: Envelope{Event: event, Data: data}})
}

func (h *Hub) SendToRoom(room string, event string, data interface{}) {
	h.emit(Delivery{Target: TargetRoom, Key: room, Envelope: Envelope{Event: event, Data: data}})
}

// SendToRoomExcept skips every connection of the given user.
func (h *Hub) SendToRoomExcept(room string, except uuid.UUID, event string, data interface{}) {
	h.emit(Delivery{Target: TargetRoom, Key: room, ExceptID: except, Envelope: Envelope{Event: event, Data: data}})
}

func (h *Hub) Broadcast(event string, data interface{}) {
	h.emit(Delivery{Target: TargetAll, Envelope: Envelope{Event: event, Data: data}})
}

// emit never blocks the caller on socket writes. With a bus every instance,
// this one included, delivers from its subscription.
func (h *Hub) emit(d Delivery) {
	if h.bus != nil {
		if err := h.bus.Publish(context.Background(), d); err != nil {
			h.log.WithError(err).Warn("Bus publish failed, delivering locally", map[string]interface{}{"event": d.Envelope.Event})
		} else {
			return
		}
	}
	select {
	case h.deliveries <- d:
	default:
		h.log.Warn("Delivery queue full, dropping event", map[string]interface{}{"event": d.Envelope.Event, "target": d.Target})
	}
}

func (h *Hub) deliver(d Delivery) {
	targets := h.resolve(d)

	var failed []*Client
	for _, c := range targets {
		if d.ExceptID != uuid.Nil && c.UserID == d.ExceptID {
			continue
		}
		if err := c.Send(d.Envelope); err != nil {
			h.log.WithError(err).Warn("Write to client failed", map[string]interface{}{"userId": c.UserID.String()})
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.remove(c)
	}
}

func (h *Hub) resolve(d Delivery) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var set map[*Client]struct{}
	switch d.Target {
	case TargetUser:
		id, err := uuid.Parse(d.Key)
		if err != nil {
			return nil
		}
		set = h.users[id]
	case TargetRole:
		set = h.rooms[RoleRoom(d.Key)]
	case TargetRoom:
		set = h.rooms[d.Key]
	case TargetAll:
		set = h.clients
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ConnectedUsers lists users with at least one socket on this instance.
func (h *Hub) ConnectedUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(h.users))
	for id := range h.users {
		out = append(out, id)
	}
	return out
}

func (h *Hub) UsersByRole(role string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for c := range h.rooms[RoleRoom(role)] {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		out = append(out, c.UserID)
	}
	return out
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}
