// Package catalog provides the game catalog the broker matches players for.
//
// Each game is stored as one JSON file named after its id:
//
//	catalog/chess.json
//	{
//	  "id": "chess",
//	  "name": "Chess",
//	  "description": "Two players, one board",
//	  "min_players": 1,
//	  "max_players": 2
//	}
//
// max_players is always 2; min_players may be 1 for games that continue solo
// once an opponent leaves. Entries are validated with the validate package on
// load and on save, and invalid files are skipped by List.
//
// Usage:
//
//	games, err := catalog.NewManager("catalog")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	b := broker.New(hub, broker.Options{Catalog: games})
//
//	// Removing a game also closes its rooms
//	if err := games.Delete("chess"); err == nil {
//		b.NotifyGameDeleted("chess")
//	}
//
// Manager caches loaded games and is safe for concurrent use.
package catalog
