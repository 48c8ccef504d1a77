package broker

import (
	"fmt"

	"github.com/wricardo/matchbroker/metrics"
)

// Action is the name of an inbound client request.
type Action string

const (
	ActionStartMatchmaking Action = "start-matchmaking"
	ActionSomeoneWaiting   Action = "someone-waiting"
	ActionRoomJoinable     Action = "room-joinable"
	ActionLeaveWaitingRoom Action = "leave-waiting-room"
	ActionJoinRoom         Action = "join-room"
	ActionAcceptOpponent   Action = "accept-opponent"
	ActionRejectOpponent   Action = "reject-opponent"
)

// Payload carries the arguments of every action. Each action reads only the
// fields listed by RequiredFields.
type Payload struct {
	GameID     string `json:"gameId" validate:"required,max=128"`
	PlayerName string `json:"playerName" validate:"required,max=64"`
}

// RequiredFields returns the Payload fields action needs.
func (a Action) RequiredFields() []string {
	switch a {
	case ActionStartMatchmaking, ActionSomeoneWaiting, ActionRoomJoinable, ActionLeaveWaitingRoom:
		return []string{"GameID"}
	case ActionAcceptOpponent:
		return []string{"PlayerName"}
	case ActionJoinRoom, ActionRejectOpponent:
		return []string{"GameID", "PlayerName"}
	default:
		return nil
	}
}

// BareField names the Payload field filled when the payload arrives as a
// plain string instead of an object.
func (a Action) BareField() string {
	if a == ActionAcceptOpponent {
		return "PlayerName"
	}
	return "GameID"
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a.RequiredFields() != nil
}

// Dispatch runs action on behalf of connID. Queries and accept-opponent reply
// with a bool; the other actions reply with nil.
func (b *Broker) Dispatch(connID string, action Action, p Payload) (interface{}, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	metrics.Actions.WithLabelValues(string(action)).Inc()

	switch action {
	case ActionStartMatchmaking:
		if _, err := b.StartMatchmaking(p.GameID, connID); err != nil {
			return nil, err
		}
		return nil, nil
	case ActionSomeoneWaiting:
		return b.SomeoneWaiting(p.GameID), nil
	case ActionRoomJoinable:
		return b.RoomJoinable(p.GameID), nil
	case ActionLeaveWaitingRoom:
		b.LeaveWaitingRoom(p.GameID, connID)
	case ActionJoinRoom:
		b.JoinRoom(p.GameID, connID, p.PlayerName)
	case ActionAcceptOpponent:
		return b.AcceptOpponent(connID, p.PlayerName), nil
	case ActionRejectOpponent:
		b.RejectOpponent(p.GameID, connID, p.PlayerName)
	}
	return nil, nil
}
