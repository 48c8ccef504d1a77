// Package api provides the HTTP REST API for matchbroker.
//
// The REST surface is for operators and tooling. Players never need it: all
// matchmaking happens over the WebSocket endpoint, which this package mounts
// at /ws.
//
// Endpoints:
//
// Lobby:
//   - GET /api/rooms - Snapshot of tracked rooms (?game=, ?state=waiting|accepting)
//   - GET /api/games/{id}/waiting - Whether a waiting room exists for the game
//   - GET /api/games/{id}/joinable - Whether any room, waiting or accepting, exists for the game
//
// Catalog:
//   - GET /api/games - List games
//   - POST /api/games - Create or replace a game
//   - GET /api/games/{id} - Get one game
//   - DELETE /api/games/{id} - Delete a game and dissolve its rooms
//
// Matches:
//   - GET /api/matches - List finalized matches (?game=, ?sort=created|accessed, ?order=, ?limit=)
//   - GET /api/matches/{id} - Get a match and refresh its access time
//   - DELETE /api/matches/{id} - Forget a match
//
// Other:
//   - GET /ws - WebSocket upgrade
//   - GET /healthz - Liveness with room and connection counts
//   - GET /metrics - Prometheus metrics
//
// Errors are returned as {"error": "message"} with a matching status code:
// 400 for invalid input, 404 for unknown games and matches.
package api
