// Package replication keeps one client's copy of the shared document in
// step with the remote store.
//
// ARCHITECTURE:
//
// Local State and Dirty Tracking:
// The Engine owns the in-memory Document, a dirty flag and a local version
// counter. Commit is the only way to change the document: it computes the
// next state from the current one, marks the engine dirty, bumps the
// version and queues a push carrying exactly the state it just committed.
//
// Single Remote Slot:
// Every remote operation (push or pull) holds one slot for its whole
// duration, so at most one is in flight. Pulls try the slot and skip when
// it is taken; pushes wait for it. Pushes requested while the slot is busy
// coalesce in a single pending entry where the newest version wins.
//
// Pull Safety:
// A heartbeat pull is skipped while dirty, and its result is discarded if
// the engine became dirty while the fetch was in flight. Until the first
// pull succeeds the engine is not initialized and refuses to push, so a
// fresh client never overwrites the shared record with its defaults.
//
// Change Detection:
// Pushes compare model.ContentHash against the hash of the last document
// known to match the remote. Dirty is cleared only when the acknowledged
// push carried the latest local version.
//
// Bridge Policy:
// When bridgeActive is false only an Owner may push, and a pulled false is
// forced onto non-Owner clients. A dropped non-Owner push marks its version
// as held: the engine stays dirty, but heartbeat pulls run again and the
// remote document replaces the held changes.
package replication
