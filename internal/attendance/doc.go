// Package attendance holds the attendance domain: pure state transitions
// over the replicated document and the Gateway that applies them.
//
// Transitions take a document the caller owns and may modify it in place;
// the Gateway always hands them a private copy from the engine. Permission
// checks live in the Gateway and run before any transition:
//
//   - worker status changes (single or bulk) require an active bridge unless
//     the actor is the Owner (ErrBridgeSuspended)
//   - toggling the bridge is reserved for the Owner (ErrOwnerOnly)
//
// Invalid input yields a *ValidationError and commits nothing.
package attendance
