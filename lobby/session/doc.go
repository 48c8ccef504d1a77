// Package session keeps the ledger of finalized matches.
//
// Once both players of a room accept each other the broker stops tracking the
// room and hands it to a broker.MatchSink. Manager is that sink: it records a
// Match for the room and later flags it when the broker reports that one of
// the players left the game.
//
// Matches are identified by a uuid and indexed by the channel they are played
// on. The ledger is held in memory; an optional MatchPersistence archives
// every change, and FilePersistence stores one JSON file per match.
//
// Usage:
//
//	matches := session.NewManager(logger)
//	b := broker.New(hub, broker.Options{Sink: matches})
//
//	// Drop matches idle for more than a day
//	removed := matches.CleanupExpiredMatches(24 * time.Hour)
//
// Concurrency:
//
// Manager is safe for concurrent use. The broker calls it with its own lock
// held, so Manager never calls back into the broker.
package session
