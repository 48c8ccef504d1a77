package broker

import (
	"go.uber.org/zap"

	"github.com/wricardo/matchbroker/lobby/room"
	"github.com/wricardo/matchbroker/metrics"
)

// HandleDisconnect brings the registry back in line with live channel
// membership after connID went away. The transport must already have removed
// connID from its channels.
func (b *Broker) HandleDisconnect(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	metrics.Disconnects.Inc()
	b.logger.Debug("reconciling after disconnect", zap.String("conn", connID))

	// Waiting rooms whose only occupant vanished.
	for _, r := range b.rooms.ByState(room.Waiting) {
		if len(b.transport.Members(r.ChannelID)) == 0 {
			b.rooms.Remove(r.ChannelID)
			b.logger.Info("removed abandoned waiting room", zap.String("channel", r.ChannelID))
		}
	}

	// Accepting rooms that lost an occupant.
	for _, r := range b.rooms.ByState(room.Accepting) {
		members := b.transport.Members(r.ChannelID)
		switch {
		case len(members) == 0:
			b.rooms.Remove(r.ChannelID)
		case len(members) < 2:
			b.transport.Broadcast(r.ChannelID, "", Event{
				Type:      EventOpponentLeft,
				GameID:    r.GameID,
				ChannelID: r.ChannelID,
			})
			b.rooms.InsertSorted(r, room.Waiting)
			b.mergeRoomsIfPossible(r.GameID)
		}
	}

	// Room channels the registry no longer tracks.
	for _, ch := range b.transport.Channels() {
		if !room.IsRoomChannel(ch) {
			continue
		}
		if _, tracked := b.rooms.Find(ch); tracked {
			continue
		}
		if len(b.transport.Members(ch)) >= 2 {
			continue
		}

		h := b.finalized[ch]
		if h != nil && h.notified {
			continue
		}
		gameID, _, _ := room.ParseChannelID(ch)
		b.transport.Broadcast(ch, "", Event{
			Type:      EventOpponentLeftTheGame,
			GameID:    gameID,
			ChannelID: ch,
		})
		if h != nil {
			b.notifyOpponentLeftGame(ch, h)
		} else {
			b.finalized[ch] = &handoff{gameID: gameID, notified: true}
			b.logger.Warn("untracked room channel lost a member", zap.String("channel", ch))
		}
	}

	for ch := range b.finalized {
		if len(b.transport.Members(ch)) == 0 {
			delete(b.finalized, ch)
		}
	}

	b.transport.BroadcastAll(roomListChanged())
	b.observe()
}

// mergeRoomsIfPossible keeps the oldest waiting room of gameID and dissolves
// the rest, pointing their occupants at the survivor. Callers hold b.mu.
func (b *Broker) mergeRoomsIfPossible(gameID string) {
	waiting := b.rooms.Filter(gameID, room.Waiting)
	if len(waiting) < 2 {
		return
	}

	for _, r := range waiting[1:] {
		b.transport.Broadcast(r.ChannelID, "", Event{
			Type:      EventRoomReachable,
			GameID:    gameID,
			ChannelID: waiting[0].ChannelID,
		})
		for _, m := range b.transport.Members(r.ChannelID) {
			b.transport.Leave(m, r.ChannelID)
		}
		b.rooms.Remove(r.ChannelID)
		metrics.RoomsMerged.Inc()
		b.logger.Info("merged waiting room",
			zap.String("game", gameID),
			zap.String("dissolved", r.ChannelID),
			zap.String("kept", waiting[0].ChannelID))
	}
}
