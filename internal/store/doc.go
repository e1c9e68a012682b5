// Package store holds the data queue: a bounded window of recent readings for
// every configured data type, plus the metadata needed to turn those windows
// into display rows. The Store is safe for concurrent use; the main loop
// appends while the HTTP API and WebSocket hub take snapshots.
package store
