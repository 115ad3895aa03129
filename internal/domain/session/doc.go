// Package session owns the operator's selection and the live session
// bound to it.
//
// A live session is one acquisition (stream or poll) of the screens the
// strategy covers for the selected monitor, feeding frames into the shared renderer. The
// manager guarantees at most one live session at a time:
//
//  1. Resolve the address against the current registry snapshot
//  2. Release the previous acquisition and wait for its workers
//  3. Reset the renderer surfaces
//  4. Acquire the new monitor
//
// Selecting the address already selected is a no-op while any of its
// screens is still being acquired; once all have ended it reconnects. Clear and Close tear
// the session down synchronously; no frame is painted once they return.
//
// Example Usage:
//
//	mgr := session.NewManager(registryMgr, strategy, renderer, log).WithMetrics(metrics)
//	defer mgr.Close()
//	sel, err := mgr.Select(ctx, "A1")
//	info := mgr.Info()
package session
