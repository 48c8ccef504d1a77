package room

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ChannelPrefix marks transport channels that back a matchmaking room.
const ChannelPrefix = "room:"

// State is the pool a room currently belongs to.
type State int

const (
	// Waiting rooms hold a single occupant looking for an opponent.
	Waiting State = iota + 1
	// Accepting rooms hold two occupants pending mutual agreement.
	Accepting
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Accepting:
		return "accepting"
	default:
		return "unknown"
	}
}

// Room is a pairing slot for two players of one game, backed by one channel.
type Room struct {
	GameID    string `json:"game_id"`
	ChannelID string `json:"channel_id"`
}

// New builds a room for gameID whose channel encodes createdAt.
func New(gameID string, createdAt time.Time) Room {
	return Room{GameID: gameID, ChannelID: NewChannelID(gameID, createdAt)}
}

// FromChannel rebuilds a room from its channel id.
func FromChannel(channelID string) (Room, bool) {
	gameID, _, ok := ParseChannelID(channelID)
	if !ok {
		return Room{}, false
	}
	return Room{GameID: gameID, ChannelID: channelID}, true
}

// CreatedAt returns the creation time embedded in the channel id.
func (r Room) CreatedAt() time.Time {
	_, t, _ := ParseChannelID(r.ChannelID)
	return t
}

// NewChannelID encodes gameID and t as room:<gameId>:<unixNano>.
func NewChannelID(gameID string, t time.Time) string {
	return fmt.Sprintf("%s%s:%d", ChannelPrefix, gameID, t.UnixNano())
}

// ParseChannelID splits a room channel id into its game id and timestamp.
// The timestamp follows the last colon, so game ids may contain colons.
func ParseChannelID(channelID string) (string, time.Time, bool) {
	if !strings.HasPrefix(channelID, ChannelPrefix) {
		return "", time.Time{}, false
	}
	rest := strings.TrimPrefix(channelID, ChannelPrefix)
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", time.Time{}, false
	}
	nanos, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return rest[:i], time.Unix(0, nanos), true
}

// IsRoomChannel reports whether channelID follows the room naming convention.
func IsRoomChannel(channelID string) bool {
	_, _, ok := ParseChannelID(channelID)
	return ok
}
