// Package server is the live preview server. It serves one document to any
// number of browsers and keeps every open page in step with the document
// as it changes.
//
// # Architecture
//
//   - Server: chi router, WebSocket upgrade, graceful shutdown
//   - Session: one connected browser; a page.Controller rendering through a
//     remote.Adapter that sends command batches over the socket
//   - SessionManager: the set of live sessions, used to broadcast reloads
//   - watcher: polls the document and reloads when its content changes
//
// # Routes
//
//	GET  /          HTML shell with the document pre-rendered and the client inlined
//	GET  /client.js the client on its own, for pages that embed it
//	GET  /ws        WebSocket session
//	POST /reload    refetch the document and update every session
//	GET  /metrics   Prometheus metrics
//	GET  /healthz   liveness and session count
//
// # Session Lifecycle
//
// The client opens /ws and sends a Hello frame. The server answers with a
// Hello carrying the session's ULID and a command batch flagged Reset that
// mounts the current document from scratch. From then on:
//
//  1. ReadLoop decodes Event frames and queues them
//  2. EventLoop follows links, submits forms and applies document updates
//     through the session's controller
//  3. The remote adapter flushes the resulting commands as one batch
//  4. WriteLoop sends heartbeat pings
//
// A reconciliation failure resets the client and remounts; a failed load
// leaves the page as it is and reports an Error frame.
package server
