// Package store provides tune persistence for composer-gateway.
//
// # Store Interface
//
// The Store interface abstracts a keyed record store for tunes:
//
//   - CreateTune: insert a record and assign its immutable ID
//   - GetTune / CountTunes: reads
//   - MarkStarted / UpdateABC / MarkFinished: generation lifecycle writes
//
// # Lifecycle invariants
//
// A tune's ID is assigned exactly once at creation. Its accumulated ABC is
// monotonically non-decreasing in length until rnn_finished is set, after
// which the record is immutable (writes return ErrFinished). rnn_started,
// when present, precedes rnn_finished.
//
// # Implementations
//
//   - SQLiteStore: production implementation using modernc.org/sqlite with
//     WAL mode and automatic schema creation
//   - MockStore: in-memory implementation for tests
package store
