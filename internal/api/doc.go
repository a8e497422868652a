// Package api exposes the bench over HTTP and WebSocket: session
// control, reading queries, CSV export, metrics, and the live observer
// stream. The api layer holds no pipeline state; everything routes
// through the ingest coordinator.
package api
