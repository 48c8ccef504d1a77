// Package broker implements the matchmaking room broker.
//
// The broker pairs two concurrently connected clients of the same game into a
// room. It owns the room registry and is the only component allowed to change
// it; everything else talks to it through the action methods.
//
// Room lifecycle:
//
//	StartMatchmaking   -> Waiting   (one occupant)
//	JoinRoom           -> Accepting (two occupants)
//	AcceptOpponent     -> finalized, handed to the MatchSink
//	RejectOpponent     -> Waiting   (opponent forced out)
//	LeaveWaitingRoom   -> Waiting or removed
//
// Consistency:
//
// The registry can drift from the transport's live membership whenever a
// connection drops in the middle of an action. Every mutating action checks
// live membership before deciding whether a room is still occupied, and
// HandleDisconnect runs three reconciliation passes:
//
//  1. waiting rooms whose channel vanished are removed
//  2. accepting rooms that lost an occupant fall back to waiting
//  3. untracked room channels that lost an occupant get opponent-left-the-game
//
// The merge pass keeps at most one waiting room per game once actions settle.
// Redundant rooms are dissolved and their occupants receive room-reachable so
// they can retry JoinRoom against the survivor.
//
// Hand-off:
//
// Once both sides accept, the room leaves the registry and the MatchSink gets
// a MatchFinalized call. A later disconnect in that room is forwarded to the
// sink through OpponentLeftGame.
//
// Usage:
//
//	b := broker.New(hub, broker.Options{Sink: matches, Logger: logger})
//	hub.OnDisconnect(b.HandleDisconnect)
//
//	r, err := b.StartMatchmaking("chess", connID)
//	if errors.Is(err, broker.ErrInvalidGameID) {
//		// unknown game
//	}
//
// Concurrency:
//
// Mutations hold a write lock for their full duration, merge pass included.
// Queries take the read lock. The transport and the sink are called with the
// lock held and must never call back into the broker.
package broker
