// Package websocket provides the WebSocket transport for matchbroker.
//
// The websocket package implements:
//   - Connection lifecycle with ping/pong keepalive
//   - Named broadcast channels with live membership
//   - Decoding and dispatch of client actions
//   - Disconnect reporting to the broker
//   - Optional cross-instance fanout of lobby events
//
// Architecture:
//
// A central Hub owns every connection. Each connection gets a read goroutine
// that decodes and dispatches actions one at a time, so a client's actions
// are handled in the order it sent them, and a write goroutine that drains
// its send queue. Registration and removal go through the hub's event loop;
// channel membership is guarded by a mutex so the broker can join, leave and
// broadcast synchronously.
//
// Message Protocol:
//
// Messages are JSON-encoded:
//   - Request:   {"id": "1", "action": "join-room", "payload": {"gameId": "chess", "playerName": "Yara"}}
//   - Reply:     {"id": "1", "event": "reply", "data": true}
//   - Error:     {"id": "1", "event": "error", "data": "gameId is required"}
//   - Broadcast: {"event": "opponent-joined", "data": {"type": "opponent-joined", "playerName": "Yara", ...}}
//
// Single-argument actions also accept a bare string payload, for example
// {"id": "2", "action": "someone-waiting", "payload": "chess"}.
//
// The first message on a new connection is
// {"event": "connected", "data": {"connectionId": "<uuid>"}}.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	b := broker.New(hub, broker.Options{Logger: logger})
//	hub.SetDispatcher(b)
//	hub.OnDisconnect(b.HandleDisconnect)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and is registered with the hub
// 2. Hub sends the connection id
// 3. Client sends actions, receives replies and broadcasts
// 4. On disconnect the hub removes the connection from every channel
// 5. The disconnect handler runs reconciliation in the broker
//
// A client that cannot keep up with its send queue is disconnected.
package websocket
