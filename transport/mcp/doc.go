// Package mcp exposes the matchbroker REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one HTTP request to the
// REST API and the JSON answer is rendered as text for the agent.
//
// MCP Tools:
//   - list_rooms: Snapshot of tracked rooms, optionally by game or state
//   - someone_waiting: Whether any room for a game is waiting
//   - room_joinable: Whether any room for a game exists, waiting or accepting
//   - list_games: List the game catalog
//   - delete_game: Delete a game and dissolve its rooms
//   - list_matches: List finalized matches
//   - get_match: Details of one finalized match
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp handled with GetMCPServer().HandleMessage
//
// Matchmaking itself is not exposed here. Players join rooms over the
// WebSocket transport.
package mcp
