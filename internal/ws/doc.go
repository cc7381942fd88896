// Package ws implements the WebSocket hub that streams presentation views to
// dashboards.
//
// Hub is a present.Sink: every poller tick hands it the new View, which is
// encoded once and queued to each connected client. A client whose queue is
// full is disconnected rather than allowed to slow the poller.
//
// Hub.ServeHTTP upgrades an HTTP connection, sends the current view
// immediately, then streams every subsequent one. Hub.Run blocks until ctx
// is cancelled and then closes all connections.
//
// Message format sent to clients:
//
//	{
//	  "event": "view",
//	  "data":  { /* same schema as GET /api/v1/view */ }
//	}
//
// The upgrader accepts all origins; restrict at the reverse proxy if needed.
// The endpoint is mounted at /ws/stream.
package ws
