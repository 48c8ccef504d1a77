package broker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/matchbroker/lobby/room"
	"github.com/wricardo/matchbroker/metrics"
)

// Common errors
var (
	ErrInvalidGameID = errors.New("invalid game id")
	ErrUnknownAction = errors.New("unknown action")
	ErrNotConnected  = errors.New("connection is closed")
)

// Transport is the channel layer the broker drives. Leave and the broadcasts
// are fire-and-forget. Implementations must not call back into the broker from
// any of these methods.
type Transport interface {
	// Join reports false, and changes nothing, when connID is no longer
	// connected.
	Join(connID, channelID string) bool
	Leave(connID, channelID string)
	// Members returns the live members of a channel, nil if it does not exist.
	Members(channelID string) []string
	ChannelsOf(connID string) []string
	Channels() []string
	Broadcast(channelID, exceptConnID string, ev Event)
	BroadcastAll(ev Event)
}

// Match describes a room whose occupants both accepted.
type Match struct {
	GameID    string
	ChannelID string
	Players   []string
}

// MatchSink receives rooms once the broker stops tracking them.
type MatchSink interface {
	MatchFinalized(m Match)
	OpponentLeftGame(channelID string)
}

// GameCatalog reports which game ids are playable.
type GameCatalog interface {
	Exists(gameID string) bool
}

// Options configures a Broker. Every field is optional.
type Options struct {
	Sink    MatchSink
	Catalog GameCatalog
	Logger  *zap.Logger
	// Now overrides the clock used to stamp new channels.
	Now func() time.Time
}

// RoomView is a read-only snapshot of one tracked room.
type RoomView struct {
	GameID    string    `json:"gameId"`
	ChannelID string    `json:"channelId"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []string  `json:"members"`
}

type handoff struct {
	gameID   string
	notified bool
}

// Broker pairs connections into two-player rooms.
type Broker struct {
	mu        sync.RWMutex
	rooms     *room.Registry
	finalized map[string]*handoff
	lastStamp time.Time

	transport Transport
	sink      MatchSink
	catalog   GameCatalog
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a broker on top of transport.
func New(transport Transport, opts Options) *Broker {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Broker{
		rooms:     room.NewRegistry(),
		finalized: make(map[string]*handoff),
		transport: transport,
		sink:      opts.Sink,
		catalog:   opts.Catalog,
		logger:    logger,
		now:       now,
	}
}

// StartMatchmaking opens a new waiting room for gameID with connID inside.
func (b *Broker) StartMatchmaking(gameID, connID string) (room.Room, error) {
	if gameID == "" || (b.catalog != nil && !b.catalog.Exists(gameID)) {
		return room.Room{}, ErrInvalidGameID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	r := room.New(gameID, b.nextStamp())
	if !b.transport.Join(connID, r.ChannelID) {
		b.logger.Debug("matchmaking for closed connection", zap.String("conn", connID))
		return room.Room{}, ErrNotConnected
	}
	b.rooms.Append(r, room.Waiting)
	b.logger.Info("room created",
		zap.String("game", gameID),
		zap.String("channel", r.ChannelID),
		zap.String("conn", connID))

	b.mergeRoomsIfPossible(gameID)
	b.transport.BroadcastAll(roomListChanged())
	b.observe()
	return r, nil
}

// SomeoneWaiting reports whether a waiting room exists for gameID.
func (b *Broker) SomeoneWaiting(gameID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms.Filter(gameID, room.Waiting)) > 0
}

// RoomJoinable reports whether any room, waiting or accepting, exists for gameID.
func (b *Broker) RoomJoinable(gameID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms.Filter(gameID, room.Waiting)) > 0 ||
		len(b.rooms.Filter(gameID, room.Accepting)) > 0
}

// JoinRoom puts connID into the oldest waiting room for gameID. It does
// nothing when no such room is available.
func (b *Broker) JoinRoom(gameID, connID, playerName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.rooms.Filter(gameID, room.Waiting) {
		members := b.transport.Members(r.ChannelID)
		if len(members) == 0 {
			b.rooms.Remove(r.ChannelID)
			b.logger.Debug("dropped vacant waiting room", zap.String("channel", r.ChannelID))
			continue
		}
		if len(members) != 1 || members[0] == connID {
			continue
		}

		if !b.transport.Join(connID, r.ChannelID) {
			b.logger.Debug("join for closed connection", zap.String("conn", connID))
			return
		}
		b.rooms.SetState(r.ChannelID, room.Accepting)
		b.transport.Broadcast(r.ChannelID, connID, Event{
			Type:       EventOpponentJoined,
			PlayerName: playerName,
			GameID:     gameID,
			ChannelID:  r.ChannelID,
		})
		b.logger.Info("opponent joined",
			zap.String("channel", r.ChannelID),
			zap.String("conn", connID))
		b.transport.BroadcastAll(roomListChanged())
		b.observe()
		return
	}

	b.observe()
	b.logger.Debug("no waiting room to join", zap.String("game", gameID), zap.String("conn", connID))
}

// AcceptOpponent accepts the opponent in every full room connID occupies.
// It returns false when no room with two live members was found.
func (b *Broker) AcceptOpponent(connID, playerName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	accepted := false
	for _, ch := range b.roomChannelsOf(connID) {
		members := b.transport.Members(ch)
		if len(members) != 2 {
			continue
		}

		gameID, _, _ := room.ParseChannelID(ch)
		b.transport.Broadcast(ch, connID, Event{
			Type:       EventAccepted,
			PlayerName: playerName,
			GameID:     gameID,
			ChannelID:  ch,
		})
		accepted = true

		if e, ok := b.rooms.Find(ch); ok && e.State == room.Accepting {
			b.rooms.Remove(ch)
			b.finalize(e.Room, members)
			b.transport.BroadcastAll(roomListChanged())
		}
	}

	b.observe()
	return accepted
}

// RejectOpponent sends the opponent away from every room connID occupies and
// returns those rooms to the waiting pool. Finalized matches are left alone.
func (b *Broker) RejectOpponent(gameID, connID, playerName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	games := map[string]struct{}{gameID: {}}
	for _, ch := range b.roomChannelsOf(connID) {
		if _, done := b.finalized[ch]; done {
			b.logger.Info("reject ignored for finalized match",
				zap.String("channel", ch),
				zap.String("conn", connID))
			continue
		}
		r, _ := room.FromChannel(ch)
		b.transport.Broadcast(ch, connID, Event{
			Type:       EventRejected,
			PlayerName: playerName,
			GameID:     r.GameID,
			ChannelID:  ch,
		})
		for _, m := range b.transport.Members(ch) {
			if m != connID {
				b.transport.Leave(m, ch)
			}
		}
		b.rooms.InsertSorted(r, room.Waiting)
		games[r.GameID] = struct{}{}
		b.logger.Info("opponent rejected", zap.String("channel", ch), zap.String("conn", connID))
	}

	for g := range games {
		b.mergeRoomsIfPossible(g)
	}
	b.transport.BroadcastAll(roomListChanged())
	b.observe()
}

// LeaveWaitingRoom takes connID out of every room it occupies. Calling it for
// a connection that is in no room has no effect.
func (b *Broker) LeaveWaitingRoom(gameID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channels := b.roomChannelsOf(connID)
	if len(channels) == 0 {
		return
	}

	games := map[string]struct{}{gameID: {}}
	for _, ch := range channels {
		r, _ := room.FromChannel(ch)
		games[r.GameID] = struct{}{}
		members := b.transport.Members(ch)

		switch {
		case b.finalized[ch] != nil:
			b.leaveFinalized(ch, connID)
		case len(members) < 2:
			b.rooms.Remove(ch)
		default:
			b.transport.Broadcast(ch, connID, Event{
				Type:      EventOpponentLeft,
				GameID:    r.GameID,
				ChannelID: ch,
			})
			b.rooms.InsertSorted(r, room.Waiting)
		}
		b.transport.Leave(connID, ch)
		if b.finalized[ch] != nil && len(b.transport.Members(ch)) == 0 {
			delete(b.finalized, ch)
		}
		b.logger.Info("left room", zap.String("channel", ch), zap.String("conn", connID))
	}

	for g := range games {
		b.mergeRoomsIfPossible(g)
	}
	b.transport.BroadcastAll(roomListChanged())
	b.observe()
}

// NotifyGameDeleted closes every room of gameID.
func (b *Broker) NotifyGameDeleted(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.rooms.All() {
		if e.Room.GameID != gameID {
			continue
		}
		ch := e.Room.ChannelID
		b.transport.Broadcast(ch, "", Event{Type: EventGameDeleted, GameID: gameID, ChannelID: ch})
		for _, m := range b.transport.Members(ch) {
			b.transport.Leave(m, ch)
		}
		b.rooms.Remove(ch)
	}

	b.logger.Info("game deleted", zap.String("game", gameID))
	b.transport.BroadcastAll(roomListChanged())
	b.observe()
}

// Snapshot lists every tracked room in registry order.
func (b *Broker) Snapshot() []RoomView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.rooms.All()
	views := make([]RoomView, 0, len(entries))
	for _, e := range entries {
		members := b.transport.Members(e.Room.ChannelID)
		if members == nil {
			members = []string{}
		}
		views = append(views, RoomView{
			GameID:    e.Room.GameID,
			ChannelID: e.Room.ChannelID,
			State:     e.State.String(),
			CreatedAt: e.Room.CreatedAt(),
			Members:   members,
		})
	}
	return views
}

// nextStamp returns a creation time strictly after the previous one so
// channel ids never collide.
func (b *Broker) nextStamp() time.Time {
	t := b.now()
	if !t.After(b.lastStamp) {
		t = b.lastStamp.Add(time.Nanosecond)
	}
	b.lastStamp = t
	return t
}

func (b *Broker) roomChannelsOf(connID string) []string {
	var out []string
	for _, ch := range b.transport.ChannelsOf(connID) {
		if room.IsRoomChannel(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func (b *Broker) finalize(r room.Room, members []string) {
	b.finalized[r.ChannelID] = &handoff{gameID: r.GameID}
	metrics.MatchesFinalized.Inc()
	b.logger.Info("match finalized",
		zap.String("game", r.GameID),
		zap.String("channel", r.ChannelID),
		zap.Strings("players", members))

	if b.sink != nil {
		players := make([]string, len(members))
		copy(players, members)
		b.sink.MatchFinalized(Match{GameID: r.GameID, ChannelID: r.ChannelID, Players: players})
	}
}

// leaveFinalized tells the rest of a handed-off room that connID walked out.
func (b *Broker) leaveFinalized(ch, connID string) {
	h := b.finalized[ch]
	b.transport.Broadcast(ch, connID, Event{
		Type:      EventOpponentLeftTheGame,
		GameID:    h.gameID,
		ChannelID: ch,
	})
	b.notifyOpponentLeftGame(ch, h)
}

func (b *Broker) notifyOpponentLeftGame(ch string, h *handoff) {
	if h.notified {
		return
	}
	h.notified = true
	if b.sink != nil {
		b.sink.OpponentLeftGame(ch)
	}
}

func (b *Broker) observe() {
	metrics.Rooms.WithLabelValues(room.Waiting.String()).Set(float64(b.rooms.Count(room.Waiting)))
	metrics.Rooms.WithLabelValues(room.Accepting.String()).Set(float64(b.rooms.Count(room.Accepting)))
}
