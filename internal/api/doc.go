// Package api provides the JSON/SSE HTTP server for the chat relay.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → Logging → CORS → RateLimit → Routes
//
// The health probe (/healthz) bypasses the middleware stack via a
// top-level mux, ensuring it stays fast and unthrottled.
//
// # Endpoints
//
// Health probe (no middleware):
//   - GET /healthz - returns {"status":"ok","model":...}
//
// Threads:
//   - POST   /api/v1/threads            - create a thread
//   - GET    /api/v1/threads            - list threads (after/limit/order)
//   - GET    /api/v1/threads/{id}       - load a thread (creates on first access)
//   - GET    /api/v1/threads/{id}/items - list thread items (after/limit/order)
//   - DELETE /api/v1/threads/{id}       - delete a thread and its items
//
// Completion:
//   - POST /api/v1/threads/{id}/respond - run one turn, streamed over SSE
//
// Debug (only with EnableDebug):
//   - GET /api/v1/debug/threads - raw dump of every thread with items
//
// # Error Handling
//
// All error responses use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// A completion failure after streaming has begun is sent as an SSE event
// (event: error), not an HTTP error response, since SSE headers are
// already committed.
//
// # SSE Streaming
//
// Respond turns stream via Server-Sent Events with typed events:
//
//   - thread.item.added:   a new assistant item, full snapshot
//   - thread.item.updated: incremental text delta for an item
//   - thread.item.done:    final immutable item snapshot
//   - error:               turn-level failure
package api
