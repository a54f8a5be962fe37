// Package gateway wires the composer-gateway components together and runs
// the HTTP server.
//
// # Component graph
//
//	config -> store (SQLite)
//	       -> model registry
//	       -> token channel
//	       -> generation service (subprocess streamer)
//	       -> session hub (/ws)
//
// The token channel and every service are explicit instances created in New
// and torn down in Shutdown, in reverse dependency order: HTTP first so no
// new sessions arrive, then sessions, the channel, and the store.
package gateway
