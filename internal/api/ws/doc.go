// Package ws streams display phase updates over WebSocket.
//
// Server → client frames:
//   - phase: the current phase on connect, then every transition
//   - signal: a presentation request such as the permission prompt
//   - pong, error, closed
//
// Client → server frames:
//   - ping: keep-alive
//   - retry: same as POST /events/retry
//
//	handler := ws.NewHandler(controller, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
