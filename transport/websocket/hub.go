package websocket

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/matchbroker/lobby/broker"
	"github.com/wricardo/matchbroker/metrics"
)

const busPublishTimeout = 5 * time.Second

var errNoDispatcher = errors.New("no dispatcher configured")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Dispatcher executes client actions. *broker.Broker implements it.
type Dispatcher interface {
	Dispatch(connID string, action broker.Action, p broker.Payload) (interface{}, error)
}

// Bus carries global broadcasts to other instances.
type Bus interface {
	Publish(ctx context.Context, ev broker.Event) error
	Subscribe(ctx context.Context, fn func(broker.Event))
}

// Hub maintains the set of active clients and the named channels they joined.
// It implements broker.Transport.
type Hub struct {
	mu sync.RWMutex
	// Registered clients by connection ID
	clients map[string]*Client
	// Channel name -> member connection IDs
	channels map[string]map[string]struct{}
	// Connection ID -> joined channel names
	joined map[string]map[string]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	dispatcher   Dispatcher
	onDisconnect func(connID string)
	bus          Bus
	logger       *zap.Logger
}

var _ broker.Transport = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		channels:   make(map[string]map[string]struct{}),
		joined:     make(map[string]map[string]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// SetDispatcher sets the handler for inbound actions
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// OnDisconnect sets the function called after a connection is gone and has
// been removed from every channel
func (h *Hub) OnDisconnect(fn func(connID string)) {
	h.onDisconnect = fn
}

// SetBus enables cross-instance fanout of BroadcastAll
func (h *Hub) SetBus(b Bus) {
	h.bus = b
}

// Run starts the hub's event loop and blocks until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.bus != nil {
		go h.bus.Subscribe(ctx, h.broadcastLocal)
	}

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// ServeWS upgrades the request and registers the new connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		id:   uuid.NewString(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
	}
}

// ClientCount returns the number of registered connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Join adds connID to channelID, creating the channel if needed. A connection
// that is not registered, including one already dropped, is refused.
func (h *Hub) Join(connID, channelID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return false
	}

	if h.channels[channelID] == nil {
		h.channels[channelID] = make(map[string]struct{})
	}
	h.channels[channelID][connID] = struct{}{}

	if h.joined[connID] == nil {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][channelID] = struct{}{}
	return true
}

// Leave removes connID from channelID. Empty channels are deleted.
func (h *Hub) Leave(connID, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, channelID)
}

func (h *Hub) leaveLocked(connID, channelID string) {
	if members, ok := h.channels[channelID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.channels, channelID)
		}
	}
	if chans, ok := h.joined[connID]; ok {
		delete(chans, channelID)
		if len(chans) == 0 {
			delete(h.joined, connID)
		}
	}
}

// Members returns the sorted members of channelID, nil if it does not exist
func (h *Hub) Members(channelID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.channels[channelID]
	if !ok {
		return nil
	}
	return sortedKeys(members)
}

// ChannelsOf returns the sorted channels connID belongs to
func (h *Hub) ChannelsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.joined[connID])
}

// Channels returns every non-empty channel
func (h *Hub) Channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.channels))
	for ch := range h.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Broadcast sends ev to every member of channelID except exceptConnID
func (h *Hub) Broadcast(channelID, exceptConnID string, ev broker.Event) {
	data, err := encode(eventEnvelope(ev))
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.channels[channelID] {
		if connID == exceptConnID {
			continue
		}
		if client, ok := h.clients[connID]; ok {
			h.trySend(client, data)
		}
	}
}

// BroadcastAll sends ev to every local connection and publishes it on the
// bus when one is set
func (h *Hub) BroadcastAll(ev broker.Event) {
	h.broadcastLocal(ev)

	if h.bus == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), busPublishTimeout)
		defer cancel()
		if err := h.bus.Publish(ctx, ev); err != nil {
			h.logger.Warn("failed to publish lobby event", zap.Error(err))
		}
	}()
}

func (h *Hub) broadcastLocal(ev broker.Event) {
	data, err := encode(eventEnvelope(ev))
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		h.trySend(client, data)
	}
}

// deliver queues data for one connection
func (h *Hub) deliver(connID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.clients[connID]; ok {
		h.trySend(client, data)
	}
}

// trySend queues data without blocking. A client whose buffer is full is
// disconnected. Callers hold h.mu.
func (h *Hub) trySend(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("send buffer full, dropping connection", zap.String("conn", client.id))
		go h.leave(client)
	}
}

func (h *Hub) dispatch(connID string, req Request) (interface{}, error) {
	if h.dispatcher == nil {
		return nil, errNoDispatcher
	}
	p, err := decodePayload(req.Action, req.Payload)
	if err != nil {
		return nil, err
	}
	return h.dispatcher.Dispatch(connID, req.Action, p)
}

// leave asks the event loop to unregister client
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// registerClient adds a client, greets it and starts its pumps
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	metrics.Connections.Inc()
	h.logger.Debug("client registered", zap.String("conn", client.id), zap.Int("clients", total))

	client.reply(Envelope{Event: eventConnected, Data: Connected{ConnectionID: client.id}})

	if client.conn != nil {
		go client.writePump()
		go client.readPump()
	}
}

// unregisterClient removes a client from every channel, closes its queue
// and reports the disconnect
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.id]; !ok || current != client {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client.id)
	for channelID := range h.joined[client.id] {
		h.leaveLocked(client.id, channelID)
	}
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	metrics.Connections.Dec()
	h.logger.Debug("client unregistered", zap.String("conn", client.id), zap.Int("clients", total))

	if h.onDisconnect != nil {
		h.onDisconnect(client.id)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
		metrics.Connections.Dec()
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
