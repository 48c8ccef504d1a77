// Package room defines matchmaking rooms and the registry that tracks them.
//
// A Room pairs two players of one game and is backed by a single transport
// channel. The channel id is the only identity a room has:
//
//	room:<gameId>:<unixNano>
//
// The timestamp doubles as the room's creation time, which the registry uses
// to keep rooms of the same game in first-come order.
//
// Pools:
//
// The broker tracks rooms in two logical pools. Waiting rooms hold one
// occupant looking for an opponent; accepting rooms hold two occupants who
// still have to agree on the match. Both pools live in one Registry and each
// entry carries its State, so moving a room between pools is a state change
// and a channel can never be listed twice.
//
// Usage:
//
//	reg := room.NewRegistry()
//	r := room.New("chess", time.Now())
//	reg.Append(r, room.Waiting)
//
//	// Oldest waiting room for the game
//	if rooms := reg.Filter("chess", room.Waiting); len(rooms) > 0 {
//		reg.SetState(rooms[0].ChannelID, room.Accepting)
//	}
//
//	// Back to waiting, keeping creation order
//	reg.InsertSorted(r, room.Waiting)
//
// Concurrency:
//
// Registry does no locking. It is owned by the broker, which serializes every
// access behind its own lock.
package room
