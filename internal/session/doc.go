// Package session implements the per-connection gateway between a client and
// the generation subsystem.
//
// # Protocol
//
// On connect the session sends {command: "set_session"}. The client may then
// send:
//
//   - {command: "register_for_tune", tune_id: N} starts delta delivery for
//     tune N
//   - {command: "compose", data: {model, temp, seed, meter, key, start_abc}}
//     requests a new tune; a valid request is acknowledged with
//     {command: "add_tune", tune: {id, ...}} and implicitly registers
//
// As generation progresses the session pushes
// {command: "add_token", token, tune_id} frames, each carrying exactly the
// output the client has not seen yet.
//
// # Delta tracking
//
// The session keeps one offset per registered tune: the length of the
// accumulated text already delivered. Every channel event carries the full
// text; the delta is the suffix past the offset. Empty deltas send nothing,
// so repeated events are idempotent, and a client registered only for tune A
// can never be sent output of tune B.
//
// # Failure behavior
//
// Malformed messages, unknown commands, and invalid compose payloads are
// dropped without closing the connection. Disconnecting discards all session
// state but never cancels an in-flight generation.
package session
