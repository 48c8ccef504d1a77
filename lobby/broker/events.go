package broker

// EventType names an outbound notification.
type EventType string

const (
	EventOpponentJoined      EventType = "opponent-joined"
	EventOpponentLeft        EventType = "opponent-left"
	EventAccepted            EventType = "accepted"
	EventRejected            EventType = "rejected"
	EventRoomReachable       EventType = "room-reachable"
	EventRoomListChanged     EventType = "room-list-changed"
	EventGameDeleted         EventType = "game-deleted"
	EventOpponentLeftTheGame EventType = "opponent-left-the-game"
)

// Event is the payload delivered to clients for every broadcast.
type Event struct {
	Type       EventType `json:"type"`
	PlayerName string    `json:"playerName,omitempty"`
	GameID     string    `json:"gameId,omitempty"`
	ChannelID  string    `json:"channelId,omitempty"`
}

func roomListChanged() Event {
	return Event{Type: EventRoomListChanged}
}
